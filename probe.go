package pagecrop

import (
	"context"
	"fmt"
)

// probeFunc is evaluated inside the inspected page and returns its
// [Geometry] readings. Scroll position is rounded because fractional
// offsets occur on high-DPI displays.
const probeFunc = `() => {
	const html = document.documentElement;
	const body = document.body || html;
	return {
		clientWidth: html.clientWidth,
		clientHeight: html.clientHeight,
		scrollWidth: html.scrollWidth,
		scrollHeight: html.scrollHeight,
		offsetWidth: html.offsetWidth,
		offsetHeight: html.offsetHeight,
		bodyScrollWidth: body.scrollWidth,
		bodyScrollHeight: body.scrollHeight,
		bodyOffsetWidth: body.offsetWidth,
		bodyOffsetHeight: body.offsetHeight,
		scrollY: Math.round(window.scrollY || html.scrollTop || 0),
	};
}`

// ProbeScript is the expression form of the page measurement script.
const ProbeScript = "(" + probeFunc + ")()"

// Document is a page whose geometry can be measured.
type Document interface {
	Measure(ctx context.Context) (Geometry, error)
}

// ReplyFunc delivers a probe reply back to the orchestrator.
type ReplyFunc func(ctx context.Context, msg Message) error

// Probe answers getPageDetails requests for one page. It keeps no state
// between requests; every request measures the document again.
type Probe struct {
	tab   TabID
	doc   Document
	reply ReplyFunc
}

// NewProbe returns a probe for doc that answers through reply.
func NewProbe(tab TabID, doc Document, reply ReplyFunc) *Probe {
	return &Probe{tab: tab, doc: doc, reply: reply}
}

// HandleMessage reacts to msg. Messages other than getPageDetails are
// ignored. When measuring fails no reply is sent; the orchestrator's
// metrics timeout covers that case.
func (p *Probe) HandleMessage(ctx context.Context, msg Message) error {
	if msg.Msg != MsgGetPageDetails {
		return nil
	}
	g, err := p.doc.Measure(ctx)
	if err != nil {
		return fmt.Errorf("pagecrop: measuring page %s: %w", p.tab, err)
	}
	size := g.PageSize()
	return p.reply(ctx, Message{
		Msg:      MsgSetPageDetails,
		Tab:      p.tab,
		Size:     &size,
		Position: g.ScrollY,
	})
}
