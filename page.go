package pagecrop

// PageSize is the full rendered size of a document in CSS pixels.
type PageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// IsZero reports whether both dimensions are zero.
func (s PageSize) IsZero() bool {
	return s.Width == 0 && s.Height == 0
}

// Geometry holds the raw document measurements taken by the probe.
//
// The full page size is derived from all of them because no single
// reading is reliable across layouts: a short page reports its viewport
// through clientHeight, a long one through scrollHeight, and quirks-mode
// documents sometimes only through the body's offset size.
type Geometry struct {
	ClientWidth      int `json:"clientWidth"`
	ClientHeight     int `json:"clientHeight"`
	ScrollWidth      int `json:"scrollWidth"`
	ScrollHeight     int `json:"scrollHeight"`
	OffsetWidth      int `json:"offsetWidth"`
	OffsetHeight     int `json:"offsetHeight"`
	BodyScrollWidth  int `json:"bodyScrollWidth"`
	BodyScrollHeight int `json:"bodyScrollHeight"`
	BodyOffsetWidth  int `json:"bodyOffsetWidth"`
	BodyOffsetHeight int `json:"bodyOffsetHeight"`
	ScrollY          int `json:"scrollY"`
}

// PageSize returns the element-wise maximum of all readings.
// The result is never smaller than the client size and never negative.
func (g Geometry) PageSize() PageSize {
	return PageSize{
		Width: maxOf(
			g.ClientWidth,
			g.BodyScrollWidth,
			g.ScrollWidth,
			g.BodyOffsetWidth,
			g.OffsetWidth,
		),
		Height: maxOf(
			g.ClientHeight,
			g.BodyScrollHeight,
			g.ScrollHeight,
			g.BodyOffsetHeight,
			g.OffsetHeight,
		),
	}
}

func maxOf(vals ...int) int {
	m := 0
	for _, v := range vals {
		if v > m {
			m = v
		}
	}
	return m
}

// Viewport is the emulated browser window size in CSS pixels.
type Viewport struct {
	Width  int
	Height int
}

// DefaultViewport is used when no viewport is configured.
var DefaultViewport = Viewport{Width: 1280, Height: 1024}

func (v Viewport) resolved() Viewport {
	if v.Width <= 0 || v.Height <= 0 {
		return DefaultViewport
	}
	return v
}
