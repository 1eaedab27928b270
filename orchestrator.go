package pagecrop

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/porticus-lab/go-page-crop/internal/raster"
)

// State is the position of an [Orchestrator] in its capture cycle.
type State int32

// Cycle states, in the order a successful cycle passes through them.
const (
	Idle State = iota
	ResolvingTab
	AwaitingPageDetails
	Capturing
	Compositing
	Cropping
	Exporting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case ResolvingTab:
		return "ResolvingTab"
	case AwaitingPageDetails:
		return "AwaitingPageDetails"
	case Capturing:
		return "Capturing"
	case Compositing:
		return "Compositing"
	case Cropping:
		return "Cropping"
	case Exporting:
		return "Exporting"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Report describes how one triggered cycle ended.
type Report struct {
	// Cycle numbers accepted cycles from 1. Rejected triggers report 0.
	Cycle uint64

	// Tab is the page that was captured, if one was resolved.
	Tab TabID

	// Canvas is the bounds of the composite surface, if one was allocated.
	Canvas image.Rectangle

	// Result is the exported image. Nil when the cycle aborted.
	Result *Result

	// Location is where the exporter put the image.
	Location string

	// Err is the abort reason, nil on success.
	Err error
}

// Orchestrator runs capture cycles against a [Host].
//
// All cycle state is owned by the goroutine executing [Orchestrator.Run].
// Only one cycle is in flight at a time: a trigger that arrives while a
// cycle is running is rejected with [ErrBusy], it is neither queued nor
// does it restart the running cycle.
type Orchestrator struct {
	host     Host
	cfg      config
	logger   *slog.Logger
	exporter Exporter

	inbox   chan envelope
	stopped chan struct{}
	running atomic.Bool
	state   atomic.Int32

	// seq is only touched by the Run goroutine.
	seq uint64
}

type envelope struct {
	msg   Message
	reply chan Report
	done  *Report
}

// cycle is the state of one in-flight capture.
type cycle struct {
	id      uint64
	tab     TabID
	ctx     context.Context
	cancel  context.CancelFunc
	reply   chan Report
	metrics *time.Timer
}

// NewOrchestrator returns an orchestrator driving host. Call
// [Orchestrator.Run] to start processing messages.
func NewOrchestrator(host Host, opts ...Option) *Orchestrator {
	cfg := newConfig(opts)
	exp := cfg.exporter
	if exp == nil {
		exp = &FileExporter{}
	}
	return &Orchestrator{
		host:     host,
		cfg:      cfg,
		logger:   cfg.logger,
		exporter: exp,
		inbox:    make(chan envelope, 16),
		stopped:  make(chan struct{}),
	}
}

// State returns the current cycle state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(s State) {
	o.state.Store(int32(s))
}

// advance moves a running cycle from one state to the next. It fails once
// the cycle was finished by the event loop, so an orphaned worker never
// overwrites Idle.
func (o *Orchestrator) advance(ctx context.Context, from, to State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !o.state.CompareAndSwap(int32(from), int32(to)) {
		return context.Canceled
	}
	return nil
}

// validSize checks a size reported by a page.
func validSize(s *PageSize) error {
	if s == nil {
		return errors.New("reply carries no size")
	}
	if s.Width < 0 || s.Height < 0 {
		return fmt.Errorf("negative page size %dx%d", s.Width, s.Height)
	}
	return nil
}

// Trigger starts a capture cycle and waits for it to finish. It returns
// [ErrBusy] if another cycle is in flight.
func (o *Orchestrator) Trigger(ctx context.Context) (Report, error) {
	reply := make(chan Report, 1)
	if err := o.post(ctx, envelope{msg: Message{Msg: MsgTakeScreenshot}, reply: reply}); err != nil {
		return Report{}, err
	}
	select {
	case r := <-reply:
		return r, r.Err
	case <-ctx.Done():
		return Report{}, ctx.Err()
	case <-o.stopped:
		select {
		case r := <-reply:
			return r, r.Err
		default:
			return Report{}, ErrOrchestratorStopped
		}
	}
}

// Deliver hands a message from the message channel to the orchestrator.
// It has the [Listener] signature so it can be registered with a host.
func (o *Orchestrator) Deliver(msg Message) {
	if err := o.post(context.Background(), envelope{msg: msg}); err != nil {
		o.logger.Warn("dropping message", "msg", msg.Msg, "error", err)
	}
}

func (o *Orchestrator) post(ctx context.Context, env envelope) error {
	select {
	case o.inbox <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-o.stopped:
		return ErrOrchestratorStopped
	}
}

// Run processes messages until ctx is done. A cycle still in flight when
// ctx ends is aborted with ctx's error.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return errors.New("pagecrop: orchestrator already running")
	}
	defer close(o.stopped)

	var (
		cur     *cycle
		timeout <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if cur != nil {
				o.finish(cur, Report{Err: ctx.Err()})
			}
			return ctx.Err()

		case <-timeout:
			timeout = nil
			if cur != nil && o.State() == AwaitingPageDetails {
				o.finish(cur, Report{Err: fmt.Errorf("%w: no reply within %s", ErrMetricsUnavailable, o.cfg.metricsTimeout)})
				cur = nil
			}

		case env := <-o.inbox:
			switch {
			case env.done != nil:
				if cur != nil && cur.id == env.done.Cycle {
					o.finish(cur, *env.done)
					cur = nil
				}

			case env.msg.Msg == MsgTakeScreenshot:
				if cur != nil {
					o.logger.Warn("capture rejected", "kind", errorKind(ErrBusy), "cycle", cur.id, "state", o.State())
					if env.reply != nil {
						env.reply <- Report{Err: ErrBusy}
					}
					continue
				}
				cur = o.start(ctx, env.reply)
				if cur != nil {
					timeout = cur.metrics.C
				}

			case env.msg.Msg == MsgSetPageDetails:
				if cur == nil || o.State() != AwaitingPageDetails || (env.msg.Tab != "" && env.msg.Tab != cur.tab) {
					o.logger.Debug("ignoring stale page details", "tab", env.msg.Tab, "state", o.State())
					continue
				}
				cur.metrics.Stop()
				timeout = nil
				if err := validSize(env.msg.Size); err != nil {
					o.finish(cur, Report{Err: fmt.Errorf("%w: %w", ErrMetricsUnavailable, err)})
					cur = nil
					continue
				}
				size := *env.msg.Size
				o.logger.Debug("page details received", "cycle", cur.id, "width", size.Width, "height", size.Height)
				o.setState(Capturing)
				go o.process(cur, size, env.msg.Position)

			default:
				o.logger.Debug("ignoring message", "msg", env.msg.Msg)
			}
		}
	}
}

// start resolves the active page and asks it for its size. It returns nil
// when the cycle aborted immediately.
func (o *Orchestrator) start(ctx context.Context, reply chan Report) *cycle {
	o.seq++
	c := &cycle{id: o.seq, reply: reply}
	if o.cfg.timeout > 0 {
		c.ctx, c.cancel = context.WithTimeout(ctx, o.cfg.timeout)
	} else {
		c.ctx, c.cancel = context.WithCancel(ctx)
	}

	o.setState(ResolvingTab)
	tab, err := o.host.ActiveTab(c.ctx)
	if err != nil {
		if !errors.Is(err, ErrNoActivePage) {
			err = fmt.Errorf("%w: %w", ErrNoActivePage, err)
		}
		o.finish(c, Report{Err: err})
		return nil
	}
	c.tab = tab

	o.setState(AwaitingPageDetails)
	if err := o.host.SendMessage(c.ctx, tab, Message{Msg: MsgGetPageDetails}); err != nil {
		o.finish(c, Report{Err: fmt.Errorf("%w: %w", ErrMetricsUnavailable, err)})
		return nil
	}
	c.metrics = time.NewTimer(o.cfg.metricsTimeout)
	o.logger.Debug("page details requested", "cycle", c.id, "tab", tab)
	return c
}

// process runs the capture, composite, crop and export steps of c and
// posts the outcome back to the event loop.
func (o *Orchestrator) process(c *cycle, size PageSize, scrollY int) {
	r := o.capture(c, size, scrollY)
	r.Cycle = c.id
	select {
	case o.inbox <- envelope{done: &r}:
	case <-o.stopped:
	}
}

func (o *Orchestrator) capture(c *cycle, size PageSize, scrollY int) Report {
	ctx := c.ctx
	policy := o.cfg.policy

	canvas := raster.NewCanvas(size.Width, size.Height)
	r := Report{Canvas: canvas.Rect}

	if policy.SettleDelay > 0 {
		t := time.NewTimer(policy.SettleDelay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			r.Err = ctx.Err()
			return r
		}
	}

	data, err := o.host.CaptureVisibleTab(ctx, c.tab)
	if err != nil {
		r.Err = fmt.Errorf("%w: %w", ErrCaptureUnavailable, err)
		return r
	}
	if len(data) == 0 {
		r.Err = ErrCaptureUnavailable
		return r
	}

	if r.Err = o.advance(ctx, Capturing, Compositing); r.Err != nil {
		return r
	}
	img, err := raster.Decode(data)
	if err != nil {
		r.Err = fmt.Errorf("%w: %w", ErrDecodeFailure, err)
		return r
	}
	policy.compositeOnto(canvas, img, scrollY)

	if r.Err = o.advance(ctx, Compositing, Cropping); r.Err != nil {
		return r
	}
	plan, err := policy.Plan(size)
	if err != nil {
		r.Err = err
		return r
	}
	cropped := plan.Crop(canvas)

	if r.Err = o.advance(ctx, Cropping, Exporting); r.Err != nil {
		return r
	}
	out, err := raster.EncodePNG(cropped)
	if err != nil {
		r.Err = fmt.Errorf("%w: %w", ErrExport, err)
		return r
	}
	if r.Err = ctx.Err(); r.Err != nil {
		return r
	}
	loc, err := o.exporter.Export(ctx, out, OutputFilename)
	if err != nil {
		r.Err = fmt.Errorf("%w: %w", ErrExport, err)
		return r
	}
	r.Result = &Result{data: out, Page: size, Plan: plan}
	r.Location = loc
	return r
}

// finish returns the orchestrator to Idle and reports the outcome of c.
func (o *Orchestrator) finish(c *cycle, r Report) {
	if c.metrics != nil {
		c.metrics.Stop()
	}
	c.cancel()
	o.setState(Idle)

	r.Cycle = c.id
	r.Tab = c.tab
	if r.Err != nil {
		o.logger.Error("capture aborted", "kind", errorKind(r.Err), "cycle", c.id, "tab", c.tab, "error", r.Err)
	} else {
		o.logger.Info("screenshot exported",
			"cycle", c.id,
			"tab", c.tab,
			"page", fmt.Sprintf("%dx%d", r.Result.Page.Width, r.Result.Page.Height),
			"crop", r.Result.Plan.Source,
			"location", r.Location,
		)
	}
	if c.reply != nil {
		c.reply <- r
	}
}
