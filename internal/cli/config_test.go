package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	pagecrop "github.com/porticus-lab/go-page-crop"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pagecrop.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfig_LoadFile(t *testing.T) {
	path := writeConfig(t, `
out: shots
backend: rod
legacy: true
width: 800
timeout: 10s
metrics_timeout: 1500ms
uniquify: true
`)
	cfg := DefaultConfig()
	if err := cfg.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Out != "shots" || cfg.Backend != "rod" || !cfg.Legacy || !cfg.Uniquify {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Width != 800 {
		t.Errorf("Width = %d, want 800", cfg.Width)
	}
	if cfg.Height != pagecrop.DefaultViewport.Height {
		t.Errorf("Height = %d, want default %d kept", cfg.Height, pagecrop.DefaultViewport.Height)
	}
	if cfg.Timeout != 10*time.Second || cfg.MetricsTimeout != 1500*time.Millisecond {
		t.Errorf("timeouts = %v, %v", cfg.Timeout, cfg.MetricsTimeout)
	}
}

func TestConfig_LoadFileErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "colour: red\n"},
		{"bad duration", "timeout: soon\n"},
		{"wrong type", "width: wide\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if err := cfg.LoadFile(writeConfig(t, tt.body)); err == nil {
				t.Error("LoadFile succeeded, want error")
			}
		})
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFile of missing file succeeded")
	}
}

func TestConfig_LoadEmptyFile(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.LoadFile(writeConfig(t, "")); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("empty file changed config: %+v", cfg)
	}
}

func TestConfig_ApplyEnv(t *testing.T) {
	env := map[string]string{
		"PAGECROP_OUT":       "/tmp/out",
		"PAGECROP_CLIP":      "true",
		"PAGECROP_HEIGHT":    "900",
		"PAGECROP_TIMEOUT":   "45s",
		"PAGECROP_LOG_LEVEL": "debug",
	}
	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Out != "/tmp/out" || !cfg.Clip || cfg.Height != 900 || cfg.Timeout != 45*time.Second || cfg.LogLevel != "debug" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Backend != backendChromedp {
		t.Errorf("Backend = %q, want default", cfg.Backend)
	}
}

func TestConfig_ApplyEnvInvalid(t *testing.T) {
	env := map[string]string{
		"PAGECROP_WIDTH":  "wide",
		"PAGECROP_LEGACY": "maybe",
	}
	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(func(k string) string { return env[k] }); err == nil {
		t.Fatal("ApplyEnv succeeded, want error")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"rod", func(c *Config) { c.Backend = "rod" }, false},
		{"unknown backend", func(c *Config) { c.Backend = "webkit" }, true},
		{"negative viewport", func(c *Config) { c.Width = -1 }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Policy(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.Policy(); got != pagecrop.PrimaryCrop {
		t.Errorf("default policy = %+v, want PrimaryCrop", got)
	}
	cfg.Legacy = true
	cfg.Clip = true
	got := cfg.Policy()
	if got.Offset != pagecrop.LegacyCrop.Offset || got.Mode != pagecrop.DrawClip {
		t.Errorf("legacy clip policy = %+v", got)
	}
}

func TestConfig_Exporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Out = "shots"
	cfg.Uniquify = true
	e := cfg.Exporter()
	if e.Dir != "shots" || e.Conflict != pagecrop.Uniquify {
		t.Errorf("exporter = %+v", e)
	}
}

func TestConfig_Logger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "warn"
	l := cfg.Logger(io.Discard)
	if l.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug enabled at warn level")
	}
}
