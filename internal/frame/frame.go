// Package frame turns raw camera frames into normalized RGBA images ready for
// analysis.
package frame

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DefaultTargetHeight is the height frames are scaled down to when the
// caller does not pick one.
const DefaultTargetHeight = 540

// ErrEmpty is returned for zero-length input.
var ErrEmpty = errors.New("empty frame")

// Frame is a decoded, possibly downscaled image. Scale maps analysis
// coordinates back to the source: source = analysis / Scale.
type Frame struct {
	Image        *image.RGBA
	Scale        float64
	SourceWidth  int
	SourceHeight int
	Format       string
}

// Decode parses JPEG, PNG or WebP bytes and scales the result so its height
// does not exceed targetHeight. Images already within bounds keep their size.
func Decode(raw []byte, targetHeight int) (*Frame, error) {
	if len(raw) == 0 {
		return nil, ErrEmpty
	}
	if targetHeight <= 0 {
		targetHeight = DefaultTargetHeight
	}
	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	bounds := src.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("decode frame: invalid dimensions %dx%d", bounds.Dx(), bounds.Dy())
	}

	frame := &Frame{
		Scale:        1,
		SourceWidth:  bounds.Dx(),
		SourceHeight: bounds.Dy(),
		Format:       format,
	}
	if bounds.Dy() <= targetHeight {
		frame.Image = toRGBA(src)
		return frame, nil
	}

	frame.Scale = float64(targetHeight) / float64(bounds.Dy())
	width := int(float64(bounds.Dx()) * frame.Scale)
	if width < 1 {
		width = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, targetHeight))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
	frame.Image = dst
	return frame, nil
}

// ScaleRect divides r by scale, the ratio of analysis to source size. A zero
// or unit scale leaves r unchanged.
func ScaleRect(r image.Rectangle, scale float64) image.Rectangle {
	if scale <= 0 || scale == 1 {
		return r
	}
	return image.Rect(
		int(float64(r.Min.X)/scale),
		int(float64(r.Min.Y)/scale),
		int(float64(r.Max.X)/scale),
		int(float64(r.Max.Y)/scale),
	)
}

func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	bounds := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)
	return dst
}
