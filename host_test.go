package pagecrop

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestHub_ActiveTab(t *testing.T) {
	h := newHub(discardLogger)
	ctx := context.Background()

	if _, err := h.ActiveTab(ctx); !errors.Is(err, ErrNoActivePage) {
		t.Fatalf("empty hub: err = %v, want ErrNoActivePage", err)
	}

	h.register("a", &fakePage{})
	h.register("b", &fakePage{})
	if id, _ := h.ActiveTab(ctx); id != "b" {
		t.Errorf("active = %q, want last registered %q", id, "b")
	}
	if err := h.Activate("a"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if id, _ := h.ActiveTab(ctx); id != "a" {
		t.Errorf("active = %q, want %q", id, "a")
	}
	if err := h.Activate("missing"); err == nil {
		t.Error("Activate(missing) succeeded")
	}

	h.unregister("a")
	if _, err := h.ActiveTab(ctx); !errors.Is(err, ErrNoActivePage) {
		t.Errorf("after closing active tab: err = %v, want ErrNoActivePage", err)
	}
}

func TestHub_SendMessageRoutesReply(t *testing.T) {
	h := newHub(discardLogger)
	h.register("tab-1", &fakePage{geometry: Geometry{ClientWidth: 640, ClientHeight: 480, ScrollHeight: 2000, ScrollY: 75}})

	replies := make(chan Message, 1)
	remove := h.AddListener(func(m Message) { replies <- m })
	defer remove()

	if err := h.SendMessage(context.Background(), "tab-1", Message{Msg: MsgGetPageDetails}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	select {
	case m := <-replies:
		if m.Msg != MsgSetPageDetails || m.Tab != "tab-1" {
			t.Errorf("reply = %+v", m)
		}
		if *m.Size != (PageSize{Width: 640, Height: 2000}) || m.Position != 75 {
			t.Errorf("reply size/position = %+v/%d", *m.Size, m.Position)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reply from probe")
	}
}

func TestHub_RemovedListenerGetsNothing(t *testing.T) {
	h := newHub(discardLogger)
	h.register("tab-1", &fakePage{geometry: Geometry{ClientWidth: 1, ClientHeight: 1}})

	removed := make(chan Message, 1)
	remove := h.AddListener(func(m Message) { removed <- m })
	remove()

	kept := make(chan Message, 1)
	defer h.AddListener(func(m Message) { kept <- m })()

	if err := h.SendMessage(context.Background(), "tab-1", Message{Msg: MsgGetPageDetails}); err != nil {
		t.Fatal(err)
	}
	select {
	case <-kept:
	case <-time.After(2 * time.Second):
		t.Fatal("no reply to remaining listener")
	}
	select {
	case <-removed:
		t.Error("removed listener received a reply")
	default:
	}
}

func TestHub_UnknownTab(t *testing.T) {
	h := newHub(discardLogger)
	ctx := context.Background()
	if err := h.SendMessage(ctx, "nope", Message{Msg: MsgGetPageDetails}); err == nil {
		t.Error("SendMessage to unknown tab succeeded")
	}
	if _, err := h.CaptureVisibleTab(ctx, "nope"); err == nil {
		t.Error("CaptureVisibleTab of unknown tab succeeded")
	}
}

func TestHub_CaptureVisibleTab(t *testing.T) {
	h := newHub(discardLogger)
	h.register("tab-1", &fakePage{capture: []byte("png")})
	data, err := h.CaptureVisibleTab(context.Background(), "tab-1")
	if err != nil || string(data) != "png" {
		t.Errorf("CaptureVisibleTab = %q, %v", data, err)
	}
}
