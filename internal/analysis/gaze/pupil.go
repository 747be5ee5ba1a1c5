package gaze

import (
	"image"

	"proctor/internal/vision"
)

// minContrast is the luma spread below which an eye crop carries no usable
// pupil signal.
const minContrast = 24

// PupilOffset locates the pupil as the centroid of the darkest quarter of
// the eye's luma range and returns its offset from the eye center, normalized
// to [-1, 1] on each axis. Negative dx is image-left, negative dy is up.
func PupilOffset(img *image.RGBA, eye image.Rectangle) (dx, dy float64) {
	gray := vision.Gray(img, eye)
	b := gray.Bounds()
	if b.Dx() < 2 || b.Dy() < 2 {
		return 0, 0
	}

	lo, hi := uint8(255), uint8(0)
	for y := 0; y < b.Dy(); y++ {
		for _, v := range gray.Pix[y*gray.Stride : y*gray.Stride+b.Dx()] {
			lo = min(lo, v)
			hi = max(hi, v)
		}
	}
	if int(hi)-int(lo) < minContrast {
		return 0, 0
	}
	threshold := lo + (hi-lo)/4

	var sumX, sumY, n float64
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if gray.Pix[y*gray.Stride+x] <= threshold {
				sumX += float64(x)
				sumY += float64(y)
				n++
			}
		}
	}
	halfW := float64(b.Dx()-1) / 2
	halfH := float64(b.Dy()-1) / 2
	return (sumX/n - halfW) / halfW, (sumY/n - halfH) / halfH
}
