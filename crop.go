package pagecrop

import (
	"fmt"
	"image"
	"time"

	"github.com/porticus-lab/go-page-crop/internal/raster"
)

// DrawMode selects how the crop square is drawn into the output.
type DrawMode int

const (
	// DrawScale resamples the whole crop square into the output size.
	DrawScale DrawMode = iota
	// DrawClip copies the crop square 1:1 from the output origin and cuts
	// off whatever exceeds the output size.
	DrawClip
)

func (m DrawMode) String() string {
	switch m {
	case DrawScale:
		return "scale"
	case DrawClip:
		return "clip"
	}
	return fmt.Sprintf("DrawMode(%d)", int(m))
}

// Centring selects the span a crop square is centred against.
type Centring int

const (
	// CentreOnSide centres the square itself on the page.
	CentreOnSide Centring = iota
	// CentreOnHeight centres a page-height square and cuts the smaller
	// crop square from its top-left corner.
	CentreOnHeight
)

// CropPolicy describes how the output square is cut from the composite.
//
// The square side is the page height minus Margin. The square is centred
// on the page according to Centring and then shifted right and down by
// Offset pixels. Margin and Offset trim a constant-size chrome border and
// are part of the output framing; changing them changes every exported
// image.
type CropPolicy struct {
	// Margin is subtracted from the page height to get the square side.
	Margin int

	// Centring picks the span used to centre the square.
	Centring Centring

	// Offset shifts the centred square on both axes.
	Offset int

	// Output is the side of the exported image. Zero means the square side.
	Output int

	// Mode controls how the square is drawn into the output.
	Mode DrawMode

	// CompensateScroll draws the capture at the page's vertical scroll
	// position instead of the canvas origin.
	CompensateScroll bool

	// SettleDelay is waited between receiving the page size and capturing.
	SettleDelay time.Duration
}

// PrimaryCrop is the current crop framing: a 512x512 output taken from a
// (height-200) square offset by +200 on both axes.
var PrimaryCrop = CropPolicy{
	Margin: 200,
	Offset: 200,
	Output: 512,
	Mode:   DrawScale,
}

// LegacyCrop reproduces the superseded framing: a page-height centring
// with a +100 offset, an output as large as the crop square, scroll
// compensation and a 300ms delay before capture. Use it only where output
// must match older captures.
var LegacyCrop = CropPolicy{
	Margin:           200,
	Centring:         CentreOnHeight,
	Offset:           100,
	Output:           0,
	Mode:             DrawScale,
	CompensateScroll: true,
	SettleDelay:      300 * time.Millisecond,
}

// CropPlan is the resolved geometry of one crop.
type CropPlan struct {
	// Source is the square read from the composite canvas. It may extend
	// past the canvas edges.
	Source image.Rectangle

	// Output is the size of the exported image.
	Output image.Point

	// Mode is the draw mode used to map Source onto Output.
	Mode DrawMode
}

// Side returns the side length of the source square.
func (p CropPlan) Side() int {
	return p.Source.Dx()
}

// Plan resolves the crop geometry for a page of the given size.
// It returns [ErrEmptyCrop] when the page is not taller than Margin.
func (c CropPolicy) Plan(size PageSize) (CropPlan, error) {
	length := size.Height
	side := length - c.Margin
	if side <= 0 {
		return CropPlan{}, fmt.Errorf("%w: page height %d, margin %d", ErrEmptyCrop, size.Height, c.Margin)
	}

	span := side
	if c.Centring == CentreOnHeight {
		span = length
	}
	x := floorHalf(size.Width-span) + c.Offset
	y := floorHalf(size.Height-span) + c.Offset

	out := c.Output
	if out <= 0 {
		out = side
	}
	return CropPlan{
		Source: image.Rect(x, y, x+side, y+side),
		Output: image.Pt(out, out),
		Mode:   c.Mode,
	}, nil
}

// drawOffset returns where the captured viewport lands on the canvas.
func (c CropPolicy) drawOffset(scrollY int) image.Point {
	if c.CompensateScroll {
		return image.Pt(0, scrollY)
	}
	return image.Point{}
}

// Composite draws the captured viewport onto a fresh canvas of exactly
// size, at the origin or, with CompensateScroll, at scrollY.
func (c CropPolicy) Composite(size PageSize, capture image.Image, scrollY int) *image.RGBA {
	canvas := raster.NewCanvas(size.Width, size.Height)
	c.compositeOnto(canvas, capture, scrollY)
	return canvas
}

// compositeOnto draws capture onto an already allocated canvas.
func (c CropPolicy) compositeOnto(canvas *image.RGBA, capture image.Image, scrollY int) {
	raster.DrawAt(canvas, capture, c.drawOffset(scrollY))
}

// Crop extracts the planned square from canvas.
func (p CropPlan) Crop(canvas image.Image) *image.RGBA {
	mode := raster.Scale
	if p.Mode == DrawClip {
		mode = raster.Clip
	}
	return raster.Extract(canvas, p.Source, p.Output, mode)
}

// floorHalf divides n by two rounding toward negative infinity.
func floorHalf(n int) int {
	if n < 0 {
		return -((-n + 1) / 2)
	}
	return n / 2
}
