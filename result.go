package pagecrop

import (
	"bytes"
	"encoding/base64"
	"io"
	"os"
)

// Result holds one cropped screenshot and the geometry it was cut with.
//
// A Result is produced by every successful capture cycle. It is safe to
// call its methods multiple times; the underlying data is never modified.
type Result struct {
	data []byte

	// Page is the page size reported by the probe.
	Page PageSize

	// Plan is the crop geometry applied to the composite.
	Plan CropPlan
}

// Bytes returns the PNG-encoded image.
func (r *Result) Bytes() []byte {
	return r.data
}

// Base64 returns the image encoded as a standard base64 string (RFC 4648).
func (r *Result) Base64() string {
	return base64.StdEncoding.EncodeToString(r.data)
}

// DataURL returns the image as a data: URL, the form a page would hand
// to a download link.
func (r *Result) DataURL() string {
	return "data:image/png;base64," + r.Base64()
}

// Reader returns an [*bytes.Reader] over the image.
func (r *Result) Reader() *bytes.Reader {
	return bytes.NewReader(r.data)
}

// WriteTo writes the full image to w. It implements [io.WriterTo].
func (r *Result) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.data)
	return int64(n), err
}

// WriteToFile writes the image to the file at path, creating it if needed.
func (r *Result) WriteToFile(path string, perm os.FileMode) error {
	return os.WriteFile(path, r.data, perm)
}

// Len returns the size of the encoded image in bytes.
func (r *Result) Len() int {
	return len(r.data)
}
