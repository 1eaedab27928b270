package pagecrop

import (
	"log/slog"
	"time"
)

// config holds internal configuration shared by browsers and orchestrators.
type config struct {
	chromePath     string
	timeout        time.Duration
	metricsTimeout time.Duration
	noSandbox      bool
	headless       string
	autoDownload   bool
	viewport       Viewport
	policy         CropPolicy
	exporter       Exporter
	logger         *slog.Logger
}

func defaultConfig() config {
	return config{
		timeout:        30 * time.Second,
		metricsTimeout: 5 * time.Second,
		headless:       "new",
		viewport:       DefaultViewport,
		policy:         PrimaryCrop,
	}
}

func newConfig(opts []Option) config {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	cfg.viewport = cfg.viewport.resolved()
	return cfg
}

// Option configures a [Browser], [RodBrowser] or [Orchestrator].
type Option func(*config)

// WithChromePath sets the path to the Chrome or Chromium executable.
// By default the library searches standard locations automatically.
func WithChromePath(path string) Option {
	return func(c *config) {
		c.chromePath = path
	}
}

// WithTimeout sets the maximum duration of a single capture cycle.
// Defaults to 30 seconds. A zero or negative value disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithMetricsTimeout sets how long the orchestrator waits for a page to
// report its size before aborting the cycle. Defaults to 5 seconds.
func WithMetricsTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.metricsTimeout = d
		}
	}
}

// WithNoSandbox disables the Chrome sandbox. This is required when
// running as root, for example inside Docker containers.
func WithNoSandbox() Option {
	return func(c *config) {
		c.noSandbox = true
	}
}

// WithAutoDownload fetches a compatible Chromium build when no Chrome
// path is configured.
func WithAutoDownload() Option {
	return func(c *config) {
		c.autoDownload = true
	}
}

// WithViewport sets the emulated window size of opened pages.
func WithViewport(width, height int) Option {
	return func(c *config) {
		c.viewport = Viewport{Width: width, Height: height}
	}
}

// WithCropPolicy replaces [PrimaryCrop].
func WithCropPolicy(p CropPolicy) Option {
	return func(c *config) {
		c.policy = p
	}
}

// WithExporter sets where cropped images are delivered.
func WithExporter(e Exporter) Option {
	return func(c *config) {
		c.exporter = e
	}
}

// WithLogger sets the structured logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}
