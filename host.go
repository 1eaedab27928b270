package pagecrop

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Host is the environment the orchestrator drives: it knows which page is
// active, carries messages to that page's probe, and captures its
// visible area.
type Host interface {
	// ActiveTab returns the page to capture, or [ErrNoActivePage].
	ActiveTab(ctx context.Context) (TabID, error)

	// SendMessage delivers msg to the probe of tab. It does not wait for
	// a reply; replies arrive through the host's listeners.
	SendMessage(ctx context.Context, tab TabID, msg Message) error

	// CaptureVisibleTab returns the visible area of tab as an encoded
	// image. An empty result means nothing could be captured.
	CaptureVisibleTab(ctx context.Context, tab TabID) ([]byte, error)
}

// Listener receives messages sent by page probes.
type Listener func(Message)

// tabPage is a tab known to a hub.
type tabPage interface {
	Document
	captureVisible(ctx context.Context) ([]byte, error)
}

// hub implements the message routing shared by the browser backends.
// Messages are serialised in both directions so probes and listeners only
// ever see what survives the wire format.
type hub struct {
	logger *slog.Logger

	mu        sync.Mutex
	active    TabID
	pages     map[TabID]tabPage
	listeners map[int]Listener
	nextID    int
}

func newHub(logger *slog.Logger) *hub {
	return &hub{
		logger:    logger,
		pages:     make(map[TabID]tabPage),
		listeners: make(map[int]Listener),
	}
}

// AddListener registers fn for every probe reply. The returned function
// removes it again.
func (h *hub) AddListener(fn Listener) (remove func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.listeners, id)
	}
}

func (h *hub) register(id TabID, p tabPage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pages[id] = p
	h.active = id
}

func (h *hub) unregister(id TabID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.pages, id)
	if h.active == id {
		h.active = ""
	}
}

// Activate makes id the page returned by ActiveTab.
func (h *hub) Activate(id TabID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.pages[id]; !ok {
		return fmt.Errorf("pagecrop: unknown tab %s", id)
	}
	h.active = id
	return nil
}

func (h *hub) lookup(id TabID) (tabPage, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.pages[id]
	return p, ok
}

// ActiveTab implements [Host].
func (h *hub) ActiveTab(ctx context.Context) (TabID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active == "" {
		return "", ErrNoActivePage
	}
	return h.active, nil
}

// SendMessage implements [Host].
func (h *hub) SendMessage(ctx context.Context, tab TabID, msg Message) error {
	p, ok := h.lookup(tab)
	if !ok {
		return fmt.Errorf("pagecrop: unknown tab %s", tab)
	}
	data, err := EncodeMessage(msg)
	if err != nil {
		return err
	}
	probe := NewProbe(tab, p, h.reply)
	go func() {
		m, err := DecodeMessage(data)
		if err != nil {
			h.logger.Warn("dropping message to page", "tab", tab, "error", err)
			return
		}
		if err := probe.HandleMessage(ctx, m); err != nil {
			h.logger.Warn("page probe failed", "tab", tab, "msg", m.Msg, "error", err)
		}
	}()
	return nil
}

func (h *hub) reply(ctx context.Context, msg Message) error {
	data, err := EncodeMessage(msg)
	if err != nil {
		return err
	}
	m, err := DecodeMessage(data)
	if err != nil {
		return err
	}
	h.mu.Lock()
	listeners := make([]Listener, 0, len(h.listeners))
	for _, fn := range h.listeners {
		listeners = append(listeners, fn)
	}
	h.mu.Unlock()
	for _, fn := range listeners {
		fn(m)
	}
	return nil
}

// CaptureVisibleTab implements [Host].
func (h *hub) CaptureVisibleTab(ctx context.Context, tab TabID) ([]byte, error) {
	p, ok := h.lookup(tab)
	if !ok {
		return nil, fmt.Errorf("pagecrop: unknown tab %s", tab)
	}
	return p.captureVisible(ctx)
}
