package pagecrop

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/go-json-experiment/json"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodBrowser is a [Host] backed by a browser driven through go-rod. It
// offers the same contract as [Browser] for environments where rod's
// launcher and browser management are preferred.
type RodBrowser struct {
	*hub

	cfg      config
	launcher *launcher.Launcher
	browser  *rod.Browser

	mu     sync.Mutex
	closed bool
}

// NewRodBrowser launches a browser with the given options.
// The caller must call [RodBrowser.Close] when finished.
func NewRodBrowser(opts ...Option) (*RodBrowser, error) {
	cfg := newConfig(opts)

	if cfg.chromePath == "" && cfg.autoDownload {
		path, err := resolveBrowser(cfg.logger)
		if err != nil {
			return nil, err
		}
		cfg.chromePath = path
	}

	l := launcher.New().
		Headless(true).
		NoSandbox(cfg.noSandbox).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("hide-scrollbars")
	if cfg.chromePath != "" {
		l = l.Bin(cfg.chromePath)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("pagecrop: launching browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("pagecrop: connecting to browser: %w", err)
	}

	return &RodBrowser{
		hub:      newHub(cfg.logger),
		cfg:      cfg,
		launcher: l,
		browser:  b,
	}, nil
}

// Close shuts the browser down. Close is idempotent.
func (b *RodBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	err := b.browser.Close()
	b.launcher.Kill()
	b.launcher.Cleanup()
	if err != nil {
		return fmt.Errorf("pagecrop: closing browser: %w", err)
	}
	return nil
}

func (b *RodBrowser) checkClosed() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Open loads rawURL in a new page and makes it the active page.
func (b *RodBrowser) Open(ctx context.Context, rawURL string) (*RodPage, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return nil, fmt.Errorf("pagecrop: invalid URL %q: %w", rawURL, err)
	}

	if b.cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.timeout)
		defer cancel()
	}

	p, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("pagecrop: opening page: %w", err)
	}
	vp := b.cfg.viewport
	if err := p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             vp.Width,
		Height:            vp.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		p.Close()
		return nil, fmt.Errorf("pagecrop: setting viewport: %w", err)
	}
	if err := p.Navigate(rawURL); err != nil {
		p.Close()
		return nil, fmt.Errorf("pagecrop: loading %s: %w", rawURL, err)
	}
	if err := p.WaitLoad(); err != nil {
		p.Close()
		return nil, fmt.Errorf("pagecrop: loading %s: %w", rawURL, err)
	}

	rp := &RodPage{id: TabID(p.TargetID), page: p.Context(context.Background()), browser: b}
	b.register(rp.id, rp)
	b.cfg.logger.Debug("page opened", "tab", rp.id, "url", rawURL)
	return rp, nil
}

// Capture runs one capture cycle against the active page.
func (b *RodBrowser) Capture(ctx context.Context, opts ...Option) (*Result, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	return captureOnce(ctx, b.hub, b.cfg, opts)
}

// RodPage is one page opened in a [RodBrowser].
type RodPage struct {
	id      TabID
	page    *rod.Page
	browser *RodBrowser
}

// ID returns the page's target ID.
func (p *RodPage) ID() TabID {
	return p.id
}

// Activate makes p the page captured by the next cycle.
func (p *RodPage) Activate() error {
	return p.browser.Activate(p.id)
}

// Close closes the page.
func (p *RodPage) Close() error {
	p.browser.unregister(p.id)
	return p.page.Close()
}

// Measure implements [Document].
func (p *RodPage) Measure(ctx context.Context) (Geometry, error) {
	res, err := p.page.Context(ctx).Eval(probeFunc)
	if err != nil {
		return Geometry{}, fmt.Errorf("pagecrop: evaluating probe: %w", err)
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return Geometry{}, fmt.Errorf("pagecrop: reading probe result: %w", err)
	}
	var g Geometry
	if err := json.Unmarshal(raw, &g); err != nil {
		return Geometry{}, fmt.Errorf("pagecrop: parsing page geometry: %w", err)
	}
	return g, nil
}

func (p *RodPage) captureVisible(ctx context.Context) ([]byte, error) {
	return p.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}
