package pagecrop

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var samplePNG = []byte("\x89PNG\r\n\x1a\n fake content for testing")

func newResult() *Result {
	return &Result{data: samplePNG, Page: PageSize{Width: 1024, Height: 1600}}
}

func TestResult_Bytes(t *testing.T) {
	r := newResult()
	if !bytes.Equal(r.Bytes(), samplePNG) {
		t.Error("Bytes() did not return original data")
	}
}

func TestResult_Base64(t *testing.T) {
	r := newResult()
	got := r.Base64()
	want := base64.StdEncoding.EncodeToString(samplePNG)
	if got != want {
		t.Errorf("Base64() = %q, want %q", got, want)
	}
}

func TestResult_DataURL(t *testing.T) {
	r := newResult()
	got := r.DataURL()
	if !strings.HasPrefix(got, "data:image/png;base64,") {
		t.Fatalf("DataURL() = %q, missing png prefix", got)
	}
	if !strings.HasSuffix(got, r.Base64()) {
		t.Error("DataURL() does not end with the base64 payload")
	}
}

func TestResult_Reader(t *testing.T) {
	r := newResult()
	reader := r.Reader()
	if reader.Len() != len(samplePNG) {
		t.Errorf("Reader().Len() = %d, want %d", reader.Len(), len(samplePNG))
	}
	buf := make([]byte, len(samplePNG))
	n, err := reader.Read(buf)
	if err != nil {
		t.Fatalf("Reader().Read: %v", err)
	}
	if !bytes.Equal(buf[:n], samplePNG) {
		t.Error("Reader() produced different content")
	}
}

func TestResult_WriteTo(t *testing.T) {
	r := newResult()
	var buf bytes.Buffer
	n, err := r.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if n != int64(len(samplePNG)) {
		t.Errorf("WriteTo wrote %d bytes, want %d", n, len(samplePNG))
	}
	if !bytes.Equal(buf.Bytes(), samplePNG) {
		t.Error("WriteTo produced different content")
	}
}

func TestResult_WriteToFile(t *testing.T) {
	r := newResult()
	path := filepath.Join(t.TempDir(), OutputFilename)
	if err := r.WriteToFile(path, 0o644); err != nil {
		t.Fatalf("WriteToFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading written file: %v", err)
	}
	if !bytes.Equal(data, samplePNG) {
		t.Error("WriteToFile produced different content")
	}
}

func TestResult_Len(t *testing.T) {
	r := newResult()
	if r.Len() != len(samplePNG) {
		t.Errorf("Len() = %d, want %d", r.Len(), len(samplePNG))
	}
}
