// Package raster implements the pixel operations behind a capture cycle:
// decoding the captured viewport, compositing it onto a page-sized canvas,
// and extracting a square crop into a fixed-size destination.
package raster

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// Decode decodes an encoded capture (PNG or JPEG).
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding capture: %w", err)
	}
	return img, nil
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

// NewCanvas allocates a transparent canvas of exactly width x height.
// Negative dimensions are treated as zero.
func NewCanvas(width, height int) *image.RGBA {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return image.NewRGBA(image.Rect(0, 0, width, height))
}

// DrawAt composites src onto dst with its top-left corner at at.
// Pixels falling outside dst are dropped.
func DrawAt(dst *image.RGBA, src image.Image, at image.Point) {
	b := src.Bounds()
	r := image.Rectangle{Min: at, Max: at.Add(b.Size())}
	draw.Draw(dst, r, src, b.Min, draw.Over)
}

// Mode selects how a crop source is mapped onto its destination.
type Mode int

const (
	// Scale resamples the whole source square into the destination.
	Scale Mode = iota
	// Clip copies the source 1:1 from the destination origin; whatever
	// does not fit is cut off and uncovered destination stays transparent.
	Clip
)

// Extract copies the region src of canvas into a new out x out image.
//
// Parts of src lying outside canvas read as transparent, so a source
// square hanging off the canvas keeps its proportions in the output. Only
// the part of src that overlaps canvas is resampled; memory use is bounded
// by the output size and that overlap, not by the size of src.
func Extract(canvas image.Image, src image.Rectangle, out image.Point, mode Mode) *image.RGBA {
	if out.X <= 0 || out.Y <= 0 {
		return image.NewRGBA(image.Rectangle{})
	}
	dst := image.NewRGBA(image.Rectangle{Max: out})
	vis := src.Intersect(canvas.Bounds())
	if src.Empty() || vis.Empty() {
		return dst
	}

	if mode == Clip || src.Size() == out {
		draw.Draw(dst, vis.Sub(src.Min), canvas, vis.Min, draw.Src)
		return dst
	}

	dr := image.Rect(
		scaleCoord(vis.Min.X-src.Min.X, out.X, src.Dx()),
		scaleCoord(vis.Min.Y-src.Min.Y, out.Y, src.Dy()),
		scaleCoord(vis.Max.X-src.Min.X, out.X, src.Dx()),
		scaleCoord(vis.Max.Y-src.Min.Y, out.Y, src.Dy()),
	)
	if dr.Empty() {
		return dst
	}
	draw.CatmullRom.Scale(dst, dr, canvas, vis, draw.Src, nil)
	return dst
}

// scaleCoord maps offset v in a span of length from onto a span of length
// to, rounding to the nearest pixel.
func scaleCoord(v, to, from int) int {
	return int((int64(v)*int64(to) + int64(from)/2) / int64(from))
}
