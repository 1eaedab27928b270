package pagecrop

import (
	"context"
	"errors"
	"testing"
)

type stubDocument struct {
	geometry Geometry
	err      error
	calls    int
}

func (d *stubDocument) Measure(context.Context) (Geometry, error) {
	d.calls++
	return d.geometry, d.err
}

func TestProbe_RepliesWithPageDetails(t *testing.T) {
	doc := &stubDocument{geometry: Geometry{
		ClientWidth:  1024,
		ClientHeight: 768,
		ScrollWidth:  1000,
		ScrollHeight: 2400,
		OffsetHeight: 2390,
		ScrollY:      320,
	}}
	var got []Message
	p := NewProbe("tab-1", doc, func(_ context.Context, m Message) error {
		got = append(got, m)
		return nil
	})

	if err := p.HandleMessage(context.Background(), Message{Msg: MsgGetPageDetails}); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("replies = %d, want 1", len(got))
	}
	m := got[0]
	if m.Msg != MsgSetPageDetails || m.Tab != "tab-1" {
		t.Errorf("reply = %+v", m)
	}
	if m.Size == nil || *m.Size != (PageSize{Width: 1024, Height: 2400}) {
		t.Errorf("reply size = %+v, want 1024x2400", m.Size)
	}
	if m.Position != 320 {
		t.Errorf("reply position = %d, want 320", m.Position)
	}
}

func TestProbe_MeasuresEveryRequest(t *testing.T) {
	doc := &stubDocument{geometry: Geometry{ClientWidth: 10, ClientHeight: 10}}
	var sizes []PageSize
	p := NewProbe("tab-1", doc, func(_ context.Context, m Message) error {
		sizes = append(sizes, *m.Size)
		return nil
	})
	ctx := context.Background()

	p.HandleMessage(ctx, Message{Msg: MsgGetPageDetails})
	doc.geometry.ScrollHeight = 900
	p.HandleMessage(ctx, Message{Msg: MsgGetPageDetails})

	if len(sizes) != 2 || sizes[0].Height != 10 || sizes[1].Height != 900 {
		t.Errorf("sizes = %+v, want heights 10 then 900", sizes)
	}
}

func TestProbe_IgnoresOtherMessages(t *testing.T) {
	doc := &stubDocument{}
	p := NewProbe("tab-1", doc, func(context.Context, Message) error {
		t.Error("unexpected reply")
		return nil
	})
	for _, msg := range []string{MsgSetPageDetails, MsgTakeScreenshot, "scrollPage"} {
		if err := p.HandleMessage(context.Background(), Message{Msg: msg}); err != nil {
			t.Errorf("HandleMessage(%s): %v", msg, err)
		}
	}
	if doc.calls != 0 {
		t.Errorf("Measure called %d times, want 0", doc.calls)
	}
}

func TestProbe_NoReplyWhenMeasureFails(t *testing.T) {
	measureErr := errors.New("document unavailable")
	doc := &stubDocument{err: measureErr}
	p := NewProbe("tab-1", doc, func(context.Context, Message) error {
		t.Error("unexpected reply")
		return nil
	})
	err := p.HandleMessage(context.Background(), Message{Msg: MsgGetPageDetails})
	if !errors.Is(err, measureErr) {
		t.Fatalf("err = %v, want %v", err, measureErr)
	}
}
