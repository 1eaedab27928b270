package pagecrop

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// OutputFilename is the name every exported screenshot is saved under.
const OutputFilename = "cropped-screenshot.png"

// Exporter hands a finished image to its destination. It returns a
// description of where the image went, for logging.
type Exporter interface {
	Export(ctx context.Context, data []byte, filename string) (string, error)
}

// ConflictPolicy decides what happens when the target file exists.
type ConflictPolicy int

const (
	// Overwrite replaces an existing file.
	Overwrite ConflictPolicy = iota
	// Uniquify appends " (1)", " (2)", ... before the extension, the way
	// browsers name repeated downloads.
	Uniquify
)

// FileExporter saves images into a download directory.
type FileExporter struct {
	// Dir is the download directory. Empty means the working directory.
	Dir string

	// Conflict selects the behaviour for existing files.
	Conflict ConflictPolicy

	// Perm is the file mode of new files. Zero means 0o644.
	Perm os.FileMode

	mu sync.Mutex
}

// Export implements [Exporter].
func (e *FileExporter) Export(ctx context.Context, data []byte, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	perm := e.Perm
	if perm == 0 {
		perm = 0o644
	}
	if e.Dir != "" {
		if err := os.MkdirAll(e.Dir, 0o755); err != nil {
			return "", fmt.Errorf("pagecrop: creating download dir: %w", err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	path := filepath.Join(e.Dir, filepath.Base(filename))
	if e.Conflict == Uniquify {
		return e.writeUnique(path, data, perm)
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return "", fmt.Errorf("pagecrop: writing %s: %w", path, err)
	}
	return path, nil
}

func (e *FileExporter) writeUnique(path string, data []byte, perm os.FileMode) (string, error) {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 0; ; i++ {
		candidate := path
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		f, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("pagecrop: creating %s: %w", candidate, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("pagecrop: writing %s: %w", candidate, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("pagecrop: closing %s: %w", candidate, err)
		}
		return candidate, nil
	}
}

// DiscardExporter drops every image. Useful when only the [Result] of a
// cycle is wanted.
type DiscardExporter struct{}

// Export implements [Exporter].
func (DiscardExporter) Export(context.Context, []byte, string) (string, error) {
	return "", nil
}
