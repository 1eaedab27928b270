// Package cli implements the pagecrop command line.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// app is the state shared by all commands of one invocation.
type app struct {
	configPath string
	flags      Config
	cfg        Config
	logger     *slog.Logger
}

// NewRootCmd builds the pagecrop command tree.
func NewRootCmd() *cobra.Command {
	a := &app{flags: DefaultConfig()}

	cmd := &cobra.Command{
		Use:   "pagecrop",
		Short: "Capture a web page and save a square crop of it",
		Long: `pagecrop opens a page in a headless browser, captures its visible area,
composites the capture onto a canvas the size of the whole page and saves a
fixed square crop of it as cropped-screenshot.png.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			return a.resolve(cmd)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "YAML config file")
	f.StringVarP(&a.flags.Out, "out", "o", a.flags.Out, "Download directory")
	f.StringVar(&a.flags.Backend, "backend", a.flags.Backend, "Browser backend: chromedp or rod")
	f.BoolVar(&a.flags.Legacy, "legacy", false, "Use the legacy +100 crop framing")
	f.BoolVar(&a.flags.Clip, "clip", false, "Draw the crop 1:1 clipped instead of scaled")
	f.IntVar(&a.flags.Width, "width", a.flags.Width, "Viewport width")
	f.IntVar(&a.flags.Height, "height", a.flags.Height, "Viewport height")
	f.DurationVar(&a.flags.Timeout, "timeout", a.flags.Timeout, "Maximum duration of one capture")
	f.DurationVar(&a.flags.MetricsTimeout, "metrics-timeout", a.flags.MetricsTimeout, "How long to wait for the page size")
	f.BoolVar(&a.flags.NoSandbox, "no-sandbox", false, "Disable the Chrome sandbox")
	f.StringVar(&a.flags.Chrome, "chrome", "", "Path to the Chrome executable")
	f.BoolVar(&a.flags.AutoDownload, "auto-download", false, "Download Chromium if none is installed")
	f.BoolVar(&a.flags.Uniquify, "uniquify", false, "Never overwrite: save as 'cropped-screenshot (N).png'")
	f.StringVar(&a.flags.LogLevel, "log-level", a.flags.LogLevel, "Log level: debug, info, warn, error")
	f.BoolVar(&a.flags.LogJSON, "log-json", false, "Log as JSON")

	cmd.AddCommand(
		newCaptureCmd(a),
		newMeasureCmd(a),
		newCropCmd(a),
		newServeCmd(a),
	)
	return cmd
}

// resolve layers defaults, environment, config file and explicit flags.
func (a *app) resolve(cmd *cobra.Command) error {
	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	if a.configPath != "" {
		if err := cfg.LoadFile(a.configPath); err != nil {
			return err
		}
	}
	a.overlayFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = cfg.Logger(cmd.ErrOrStderr())
	slog.SetDefault(a.logger)
	return nil
}

func (a *app) overlayFlags(cmd *cobra.Command, cfg *Config) {
	set := map[string]func(){
		"out":             func() { cfg.Out = a.flags.Out },
		"backend":         func() { cfg.Backend = a.flags.Backend },
		"legacy":          func() { cfg.Legacy = a.flags.Legacy },
		"clip":            func() { cfg.Clip = a.flags.Clip },
		"width":           func() { cfg.Width = a.flags.Width },
		"height":          func() { cfg.Height = a.flags.Height },
		"timeout":         func() { cfg.Timeout = a.flags.Timeout },
		"metrics-timeout": func() { cfg.MetricsTimeout = a.flags.MetricsTimeout },
		"no-sandbox":      func() { cfg.NoSandbox = a.flags.NoSandbox },
		"chrome":          func() { cfg.Chrome = a.flags.Chrome },
		"auto-download":   func() { cfg.AutoDownload = a.flags.AutoDownload },
		"uniquify":        func() { cfg.Uniquify = a.flags.Uniquify },
		"log-level":       func() { cfg.LogLevel = a.flags.LogLevel },
		"log-json":        func() { cfg.LogJSON = a.flags.LogJSON },
	}
	for name, apply := range set {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}
}

// shutdownGrace bounds graceful shutdown of long-running commands.
const shutdownGrace = 5 * time.Second
