package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	pagecrop "github.com/porticus-lab/go-page-crop"
)

// Config holds everything the commands need to drive a capture.
//
// Values are resolved in order: built-in defaults, PAGECROP_* environment
// variables (a .env file is loaded first), the YAML file named by
// --config, then flags given on the command line.
type Config struct {
	Out            string        `yaml:"out"`
	Backend        string        `yaml:"backend"`
	Legacy         bool          `yaml:"legacy"`
	Clip           bool          `yaml:"clip"`
	Width          int           `yaml:"width"`
	Height         int           `yaml:"height"`
	Timeout        time.Duration `yaml:"timeout"`
	MetricsTimeout time.Duration `yaml:"metrics_timeout"`
	NoSandbox      bool          `yaml:"no_sandbox"`
	Chrome         string        `yaml:"chrome"`
	AutoDownload   bool          `yaml:"auto_download"`
	Uniquify       bool          `yaml:"uniquify"`
	LogLevel       string        `yaml:"log_level"`
	LogJSON        bool          `yaml:"log_json"`
}

const (
	backendChromedp = "chromedp"
	backendRod      = "rod"
)

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Out:            ".",
		Backend:        backendChromedp,
		Width:          pagecrop.DefaultViewport.Width,
		Height:         pagecrop.DefaultViewport.Height,
		Timeout:        30 * time.Second,
		MetricsTimeout: 5 * time.Second,
		LogLevel:       "info",
	}
}

// LoadFile merges the YAML file at path into c. Keys missing from the
// file keep their current value.
func (c *Config) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides c with PAGECROP_* variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	var errs []error
	boolean := func(key string, dst *bool) {
		if v := getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("PAGECROP_OUT", &c.Out)
	str("PAGECROP_BACKEND", &c.Backend)
	boolean("PAGECROP_LEGACY", &c.Legacy)
	boolean("PAGECROP_CLIP", &c.Clip)
	integer("PAGECROP_WIDTH", &c.Width)
	integer("PAGECROP_HEIGHT", &c.Height)
	duration("PAGECROP_TIMEOUT", &c.Timeout)
	duration("PAGECROP_METRICS_TIMEOUT", &c.MetricsTimeout)
	boolean("PAGECROP_NO_SANDBOX", &c.NoSandbox)
	str("PAGECROP_CHROME", &c.Chrome)
	boolean("PAGECROP_AUTO_DOWNLOAD", &c.AutoDownload)
	boolean("PAGECROP_UNIQUIFY", &c.Uniquify)
	str("PAGECROP_LOG_LEVEL", &c.LogLevel)
	boolean("PAGECROP_LOG_JSON", &c.LogJSON)
	return errors.Join(errs...)
}

// Validate reports configuration values no command can work with.
func (c Config) Validate() error {
	switch c.Backend {
	case backendChromedp, backendRod:
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, backendChromedp, backendRod)
	}
	if c.Width < 0 || c.Height < 0 {
		return fmt.Errorf("invalid viewport %dx%d", c.Width, c.Height)
	}
	if _, err := c.level(); err != nil {
		return err
	}
	return nil
}

func (c Config) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return l, nil
}

// Logger returns a logger writing to w at the configured level.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, err := c.level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Policy returns the crop policy selected by c.
func (c Config) Policy() pagecrop.CropPolicy {
	p := pagecrop.PrimaryCrop
	if c.Legacy {
		p = pagecrop.LegacyCrop
	}
	if c.Clip {
		p.Mode = pagecrop.DrawClip
	}
	return p
}

// Exporter returns the file exporter writing into c.Out.
func (c Config) Exporter() *pagecrop.FileExporter {
	e := &pagecrop.FileExporter{Dir: c.Out}
	if c.Uniquify {
		e.Conflict = pagecrop.Uniquify
	}
	return e
}

// Options translates c into library options.
func (c Config) Options(logger *slog.Logger) []pagecrop.Option {
	opts := []pagecrop.Option{
		pagecrop.WithViewport(c.Width, c.Height),
		pagecrop.WithTimeout(c.Timeout),
		pagecrop.WithMetricsTimeout(c.MetricsTimeout),
		pagecrop.WithCropPolicy(c.Policy()),
		pagecrop.WithExporter(c.Exporter()),
		pagecrop.WithLogger(logger),
	}
	if c.Chrome != "" {
		opts = append(opts, pagecrop.WithChromePath(c.Chrome))
	}
	if c.NoSandbox {
		opts = append(opts, pagecrop.WithNoSandbox())
	}
	if c.AutoDownload {
		opts = append(opts, pagecrop.WithAutoDownload())
	}
	return opts
}
