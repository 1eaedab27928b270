package pagecrop

import (
	"fmt"
	"log/slog"

	"github.com/go-rod/rod/lib/launcher"
)

// resolveBrowser returns the Chromium executable used by both backends
// when [WithAutoDownload] is set and no [WithChromePath] was given. The
// binary is fetched into the rod cache (~/.cache/rod/browser on Unix) on
// first use and reused afterwards.
func resolveBrowser(logger *slog.Logger) (string, error) {
	b := launcher.NewBrowser()
	b.Logger = downloadLog{logger}
	path, err := b.Get()
	if err != nil {
		return "", fmt.Errorf("pagecrop: downloading browser: %w", err)
	}
	logger.Debug("using browser", "path", path)
	return path, nil
}

// downloadLog routes launcher progress output to slog.
type downloadLog struct{ l *slog.Logger }

func (d downloadLog) Println(vs ...any) {
	d.l.Debug(fmt.Sprint(vs...), "component", "launcher")
}
