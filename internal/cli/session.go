package cli

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	pagecrop "github.com/porticus-lab/go-page-crop"
)

// browser is the part of a pagecrop backend the commands use.
type browser interface {
	pagecrop.Host
	AddListener(fn pagecrop.Listener) (remove func())
	Close() error
}

// openedPage is a page loaded by either backend.
type openedPage interface {
	pagecrop.Document
	ID() pagecrop.TabID
	Close() error
}

// session pairs a browser with the way its backend opens pages.
type session struct {
	browser
	open func(ctx context.Context, target string) (openedPage, error)
}

// newSession starts the backend selected by cfg.
func newSession(cfg Config, logger *slog.Logger) (*session, error) {
	opts := cfg.Options(logger)
	if cfg.Backend == backendRod {
		b, err := pagecrop.NewRodBrowser(opts...)
		if err != nil {
			return nil, err
		}
		return &session{
			browser: b,
			open: func(ctx context.Context, target string) (openedPage, error) {
				p, err := b.Open(ctx, fileURL(target))
				if err != nil {
					return nil, err
				}
				return p, nil
			},
		}, nil
	}

	b, err := pagecrop.NewBrowser(opts...)
	if err != nil {
		return nil, err
	}
	return &session{
		browser: b,
		open: func(ctx context.Context, target string) (openedPage, error) {
			var (
				t   *pagecrop.Tab
				err error
			)
			if isLocalFile(target) {
				t, err = b.OpenFile(ctx, target)
			} else {
				t, err = b.Open(ctx, target)
			}
			if err != nil {
				return nil, err
			}
			return t, nil
		},
	}, nil
}

func isLocalFile(target string) bool {
	fi, err := os.Stat(target)
	return err == nil && !fi.IsDir()
}

// fileURL turns an existing local path into a file:// URL.
func fileURL(target string) string {
	if !isLocalFile(target) {
		return target
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return target
	}
	return "file://" + abs
}
