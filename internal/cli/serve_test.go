package cli

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-json-experiment/json"

	pagecrop "github.com/porticus-lab/go-page-crop"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeHost answers page-size requests directly and returns a fixed capture.
type fakeHost struct {
	mu      sync.Mutex
	size    pagecrop.PageSize
	capture []byte
	noTab   bool
	gate    chan struct{}
	deliver pagecrop.Listener
}

func (h *fakeHost) ActiveTab(context.Context) (pagecrop.TabID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.noTab {
		return "", pagecrop.ErrNoActivePage
	}
	return "tab-1", nil
}

func (h *fakeHost) SendMessage(_ context.Context, tab pagecrop.TabID, msg pagecrop.Message) error {
	h.mu.Lock()
	size := h.size
	deliver := h.deliver
	h.mu.Unlock()
	if msg.Msg == pagecrop.MsgGetPageDetails {
		go deliver(pagecrop.Message{Msg: pagecrop.MsgSetPageDetails, Tab: tab, Size: &size})
	}
	return nil
}

func (h *fakeHost) CaptureVisibleTab(ctx context.Context, _ pagecrop.TabID) ([]byte, error) {
	if h.gate != nil {
		select {
		case <-h.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return h.capture, nil
}

func viewportPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestServer(t *testing.T, host *fakeHost) (*httptest.Server, *pagecrop.Orchestrator) {
	t.Helper()
	o := pagecrop.NewOrchestrator(host,
		pagecrop.WithLogger(discardLogger),
		pagecrop.WithExporter(pagecrop.DiscardExporter{}),
	)
	host.deliver = o.Deliver

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		o.Run(ctx)
	}()

	srv := httptest.NewServer((&server{orch: o, logger: discardLogger}).routes())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return srv, o
}

func TestServer_Healthcheck(t *testing.T) {
	srv, _ := newTestServer(t, &fakeHost{})
	resp, err := http.Get(srv.URL + "/healthcheck")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "OK" {
		t.Errorf("healthcheck = %d %q", resp.StatusCode, body)
	}
}

func TestServer_State(t *testing.T) {
	srv, _ := newTestServer(t, &fakeHost{})
	resp, err := http.Get(srv.URL + "/api/state")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var got struct {
		State string `json:"state"`
	}
	if err := json.UnmarshalRead(resp.Body, &got); err != nil {
		t.Fatalf("decoding state: %v", err)
	}
	if got.State != "Idle" {
		t.Errorf("state = %q, want Idle", got.State)
	}
}

func TestServer_Screenshot(t *testing.T) {
	host := &fakeHost{
		size:    pagecrop.PageSize{Width: 1024, Height: 1600},
		capture: viewportPNG(t, 1024, 768),
	}
	srv, _ := newTestServer(t, host)

	resp, err := http.Post(srv.URL+"/api/screenshot", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if c := resp.Header.Get("X-Pagecrop-Cycle"); c != "1" {
		t.Errorf("cycle header = %q, want 1", c)
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 512, 512) {
		t.Errorf("image = %v, want 512x512", img.Bounds())
	}
}

func TestServer_ScreenshotErrors(t *testing.T) {
	tests := []struct {
		name   string
		host   *fakeHost
		status int
		kind   string
	}{
		{
			name:   "no active page",
			host:   &fakeHost{noTab: true},
			status: http.StatusNotFound,
			kind:   "NoActivePage",
		},
		{
			name:   "page too short",
			host:   &fakeHost{size: pagecrop.PageSize{Width: 300, Height: 120}},
			status: http.StatusUnprocessableEntity,
			kind:   "EmptyCrop",
		},
		{
			name:   "empty capture",
			host:   &fakeHost{size: pagecrop.PageSize{Width: 300, Height: 900}},
			status: http.StatusBadGateway,
			kind:   "CaptureUnavailable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.kind == "EmptyCrop" {
				tt.host.capture = viewportPNG(t, 300, 120)
			}
			srv, o := newTestServer(t, tt.host)
			resp, err := http.Post(srv.URL+"/api/screenshot", "", nil)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			var body errorBody
			if err := json.UnmarshalRead(resp.Body, &body); err != nil {
				t.Fatalf("decoding error body: %v", err)
			}
			if body.Kind != tt.kind || body.Error == "" {
				t.Errorf("body = %+v, want kind %s", body, tt.kind)
			}
			if o.State() != pagecrop.Idle {
				t.Errorf("state = %v, want Idle", o.State())
			}
		})
	}
}

func TestServer_BusyConflict(t *testing.T) {
	host := &fakeHost{
		size:    pagecrop.PageSize{Width: 1024, Height: 1600},
		capture: viewportPNG(t, 1024, 768),
		gate:    make(chan struct{}),
	}
	srv, o := newTestServer(t, host)

	first := make(chan int, 1)
	go func() {
		resp, err := http.Post(srv.URL+"/api/screenshot", "", nil)
		if err != nil {
			first <- 0
			return
		}
		resp.Body.Close()
		first <- resp.StatusCode
	}()
	deadline := time.Now().Add(2 * time.Second)
	for o.State() != pagecrop.Capturing {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for Capturing (got %v)", o.State())
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := http.Post(srv.URL+"/api/screenshot", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict || !strings.Contains(string(body), "Busy") {
		t.Errorf("second request = %d %s, want 409 Busy", resp.StatusCode, body)
	}

	close(host.gate)
	if status := <-first; status != http.StatusOK {
		t.Errorf("first request status = %d, want 200", status)
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, &fakeHost{})
	resp, err := http.Get(srv.URL + "/api/screenshot")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/screenshot = %d, want 405", resp.StatusCode)
	}
}
