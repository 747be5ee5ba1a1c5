// Package vision wraps the computer vision backend used by the analyzers.
//
// Builds with the gocv tag use OpenCV Haar cascades. Default builds carry a
// stub whose constructor fails with ErrUnavailable, so the rest of the
// pipeline compiles and tests without OpenCV installed.
package vision

import (
	"errors"
	"image"
)

// ErrUnavailable is returned by NewDetector when no backend is compiled in.
var ErrUnavailable = errors.New("vision backend unavailable: build with -tags gocv")

// Options configures the detector backend.
type Options struct {
	FaceCascadePath string
	EyeCascadePath  string
	// MinFaceSize is the smallest face edge, in pixels, worth reporting.
	MinFaceSize int
}

// Detector finds faces and eyes in RGBA frames. A Detector is not safe for
// concurrent use; each analyzer owns its own.
type Detector interface {
	DetectFaces(img *image.RGBA) ([]image.Rectangle, error)
	// DetectEyes searches inside face and returns eye rectangles in image
	// coordinates.
	DetectEyes(img *image.RGBA, face image.Rectangle) ([]image.Rectangle, error)
	Close() error
}

// PadRect grows r by ratio of its size on every side and clamps it to bounds.
func PadRect(r image.Rectangle, ratio float64, bounds image.Rectangle) image.Rectangle {
	padX := int(float64(r.Dx()) * ratio)
	padY := int(float64(r.Dy()) * ratio)
	return image.Rect(r.Min.X-padX, r.Min.Y-padY, r.Max.X+padX, r.Max.Y+padY).Intersect(bounds)
}

// Gray returns the luma of img inside r.
func Gray(img *image.RGBA, r image.Rectangle) *image.Gray {
	r = r.Intersect(img.Bounds())
	out := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := img.RGBAAt(x, y)
			// BT.601 weights in 16.16 fixed point.
			lum := (19595*uint32(c.R) + 38470*uint32(c.G) + 7471*uint32(c.B) + 1<<15) >> 16
			out.Pix[(y-r.Min.Y)*out.Stride+(x-r.Min.X)] = uint8(lum)
		}
	}
	return out
}
