package pagecrop

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/go-json-experiment/json"
)

// Browser is a [Host] backed by headless Chrome over the Chrome DevTools
// Protocol.
//
// A Browser manages one browser process whose tabs are opened with
// [Browser.Open]. The most recently opened or activated tab is the active
// page. It is safe for concurrent use.
//
// Call [Browser.Close] when the Browser is no longer needed to release
// browser resources.
type Browser struct {
	*hub

	cfg           config
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewBrowser starts a headless browser with the given options.
// The caller must call [Browser.Close] when finished.
func NewBrowser(opts ...Option) (*Browser, error) {
	cfg := newConfig(opts)

	if cfg.chromePath == "" && cfg.autoDownload {
		path, err := resolveBrowser(cfg.logger)
		if err != nil {
			return nil, err
		}
		cfg.chromePath = path
	}

	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("headless", cfg.headless),
		chromedp.WindowSize(cfg.viewport.Width, cfg.viewport.Height),
	)
	if cfg.chromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(cfg.chromePath))
	}
	if cfg.noSandbox {
		allocOpts = append(allocOpts, chromedp.Flag("no-sandbox", true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so errors surface at creation time.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("pagecrop: starting browser: %w", err)
	}

	return &Browser{
		hub:           newHub(cfg.logger),
		cfg:           cfg,
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Close releases all resources held by the Browser, including the
// browser process. Close is idempotent.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.browserCancel()
	b.allocCancel()
	return nil
}

func (b *Browser) checkClosed() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Open loads rawURL in a new tab and makes it the active page.
func (b *Browser) Open(ctx context.Context, rawURL string) (*Tab, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return nil, fmt.Errorf("pagecrop: invalid URL %q: %w", rawURL, err)
	}
	return b.open(ctx, rawURL, "")
}

// OpenFile loads a local HTML file in a new tab and makes it the active page.
func (b *Browser) OpenFile(ctx context.Context, path string) (*Tab, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("pagecrop: resolving path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("pagecrop: %w", err)
	}
	return b.open(ctx, "file://"+abs, "")
}

// OpenHTML loads an HTML string in a new tab and makes it the active page.
func (b *Browser) OpenHTML(ctx context.Context, html string) (*Tab, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	name, err := writeTempHTML(html)
	if err != nil {
		return nil, err
	}
	tab, err := b.open(ctx, "file://"+name, name)
	if err != nil {
		os.Remove(name)
		return nil, err
	}
	return tab, nil
}

func (b *Browser) open(ctx context.Context, targetURL, tempFile string) (*Tab, error) {
	if b.cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.timeout)
		defer cancel()
	}

	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)
	// Loading is bounded by ctx; the tab outlives it once open.
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	vp := b.cfg.viewport
	if err := chromedp.Run(tabCtx,
		chromedp.EmulateViewport(int64(vp.Width), int64(vp.Height)),
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		tabCancel()
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("pagecrop: loading %s: %w", targetURL, err)
	}
	if !stop() {
		return nil, fmt.Errorf("pagecrop: loading %s: %w", targetURL, ctx.Err())
	}

	t := &Tab{
		id:       TabID(chromedp.FromContext(tabCtx).Target.TargetID),
		ctx:      tabCtx,
		cancel:   tabCancel,
		browser:  b,
		tempFile: tempFile,
	}
	b.register(t.id, t)
	b.cfg.logger.Debug("tab opened", "tab", t.id, "url", targetURL)
	return t, nil
}

// Capture runs one capture cycle against the active tab and returns the
// cropped image. Options override the browser's own configuration for
// this cycle.
func (b *Browser) Capture(ctx context.Context, opts ...Option) (*Result, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	return captureOnce(ctx, b.hub, b.cfg, opts)
}

// Tab is one page opened in a [Browser].
type Tab struct {
	id       TabID
	ctx      context.Context
	cancel   context.CancelFunc
	browser  *Browser
	tempFile string
}

// ID returns the tab's target ID.
func (t *Tab) ID() TabID {
	return t.id
}

// Activate makes t the page captured by the next cycle.
func (t *Tab) Activate() error {
	return t.browser.Activate(t.id)
}

// Close closes the tab.
func (t *Tab) Close() error {
	t.browser.unregister(t.id)
	t.cancel()
	if t.tempFile != "" {
		os.Remove(t.tempFile)
	}
	return nil
}

// Scroll scrolls the page to y.
func (t *Tab) Scroll(ctx context.Context, y int) error {
	_, err := t.evaluate(ctx, fmt.Sprintf("window.scrollTo(0, %d)", y))
	return err
}

// Measure implements [Document].
func (t *Tab) Measure(ctx context.Context) (Geometry, error) {
	raw, err := t.evaluate(ctx, ProbeScript)
	if err != nil {
		return Geometry{}, err
	}
	var g Geometry
	if err := json.Unmarshal(raw, &g); err != nil {
		return Geometry{}, fmt.Errorf("pagecrop: parsing page geometry: %w", err)
	}
	return g, nil
}

func (t *Tab) captureVisible(ctx context.Context) ([]byte, error) {
	ectx, err := t.executor(ctx)
	if err != nil {
		return nil, err
	}
	return page.CaptureScreenshot().
		WithFormat(page.CaptureScreenshotFormatPng).
		Do(ectx)
}

// evaluate runs expr in the page and returns its JSON value.
func (t *Tab) evaluate(ctx context.Context, expr string) ([]byte, error) {
	ectx, err := t.executor(ctx)
	if err != nil {
		return nil, err
	}
	v, exp, err := runtime.Evaluate(expr).WithReturnByValue(true).Do(ectx)
	if err != nil {
		return nil, err
	}
	if exp != nil {
		return nil, exp
	}
	return []byte(v.Value), nil
}

// executor binds the tab's target to ctx so calls are bounded by ctx
// rather than by the tab's lifetime.
func (t *Tab) executor(ctx context.Context) (context.Context, error) {
	if t.ctx.Err() != nil {
		return nil, ErrClosed
	}
	c := chromedp.FromContext(t.ctx)
	if c == nil || c.Target == nil {
		return nil, ErrClosed
	}
	return cdp.WithExecutor(ctx, c.Target), nil
}

func writeTempHTML(html string) (string, error) {
	f, err := os.CreateTemp("", "pagecrop-*.html")
	if err != nil {
		return "", fmt.Errorf("pagecrop: creating temp file: %w", err)
	}
	name := f.Name()
	if _, err := f.WriteString(html); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("pagecrop: writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("pagecrop: closing temp file: %w", err)
	}
	abs, err := filepath.Abs(name)
	if err != nil {
		os.Remove(name)
		return "", fmt.Errorf("pagecrop: resolving path: %w", err)
	}
	return abs, nil
}
