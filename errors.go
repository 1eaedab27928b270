package pagecrop

import (
	"context"
	"errors"
)

// Sentinel errors returned by the library.
var (
	// ErrClosed is returned when attempting to use a closed browser.
	ErrClosed = errors.New("pagecrop: browser is closed")

	// ErrBusy is returned when a capture is triggered while another cycle
	// is still in flight.
	ErrBusy = errors.New("pagecrop: capture already in progress")

	// ErrNoActivePage means no page was available to capture.
	ErrNoActivePage = errors.New("pagecrop: no active page")

	// ErrMetricsUnavailable means the page never reported its size.
	ErrMetricsUnavailable = errors.New("pagecrop: page metrics unavailable")

	// ErrCaptureUnavailable means the visible-area capture returned no data.
	ErrCaptureUnavailable = errors.New("pagecrop: capture returned no data")

	// ErrDecodeFailure means the captured raster could not be decoded.
	ErrDecodeFailure = errors.New("pagecrop: decoding capture failed")

	// ErrEmptyCrop means the page is too short to hold a crop square.
	ErrEmptyCrop = errors.New("pagecrop: crop region is empty")

	// ErrExport means the cropped image could not be handed off.
	ErrExport = errors.New("pagecrop: export failed")

	// ErrOrchestratorStopped is returned when triggering an orchestrator
	// whose event loop is not running.
	ErrOrchestratorStopped = errors.New("pagecrop: orchestrator stopped")
)

// errorKind names an abort reason for logging.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrNoActivePage):
		return "NoActivePage"
	case errors.Is(err, ErrMetricsUnavailable):
		return "MetricsUnavailable"
	case errors.Is(err, ErrCaptureUnavailable):
		return "CaptureUnavailable"
	case errors.Is(err, ErrDecodeFailure):
		return "DecodeFailure"
	case errors.Is(err, ErrEmptyCrop):
		return "EmptyCrop"
	case errors.Is(err, ErrExport):
		return "ExportFailure"
	case errors.Is(err, ErrBusy):
		return "Busy"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "Cancelled"
	}
	return "Unknown"
}
