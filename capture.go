package pagecrop

import "context"

// session is a host whose probe replies can be observed.
type session interface {
	Host
	AddListener(fn Listener) (remove func())
}

// captureOnce runs a single cycle on s with a short-lived orchestrator.
// Images are only returned, not exported, unless opts name an exporter.
func captureOnce(ctx context.Context, s session, base config, opts []Option) (*Result, error) {
	all := []Option{withConfig(base)}
	if base.exporter == nil {
		all = append(all, WithExporter(DiscardExporter{}))
	}
	o := NewOrchestrator(s, append(all, opts...)...)

	remove := s.AddListener(o.Deliver)
	defer remove()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		o.Run(runCtx)
	}()

	r, err := o.Trigger(ctx)
	cancel()
	<-done
	if err != nil {
		return nil, err
	}
	return r.Result, nil
}

// withConfig seeds an option list with an existing configuration.
func withConfig(base config) Option {
	return func(c *config) {
		*c = base
	}
}

// Capture opens rawURL in a temporary headless browser, runs one capture
// cycle and returns the cropped image. For repeated captures create a
// [Browser] with [NewBrowser] to reuse the browser process.
func Capture(ctx context.Context, rawURL string, opts ...Option) (*Result, error) {
	b, err := NewBrowser(opts...)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	if _, err := b.Open(ctx, rawURL); err != nil {
		return nil, err
	}
	return b.Capture(ctx, opts...)
}

// CaptureHTML renders html in a temporary headless browser and captures it.
func CaptureHTML(ctx context.Context, html string, opts ...Option) (*Result, error) {
	b, err := NewBrowser(opts...)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	tab, err := b.OpenHTML(ctx, html)
	if err != nil {
		return nil, err
	}
	defer tab.Close()
	return b.Capture(ctx, opts...)
}

// CaptureFile loads a local HTML file in a temporary headless browser and
// captures it.
func CaptureFile(ctx context.Context, path string, opts ...Option) (*Result, error) {
	b, err := NewBrowser(opts...)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	if _, err := b.OpenFile(ctx, path); err != nil {
		return nil, err
	}
	return b.Capture(ctx, opts...)
}
