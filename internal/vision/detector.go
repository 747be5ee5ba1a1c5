//go:build gocv
// +build gocv

package vision

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Available reports whether a real backend is compiled in.
const Available = true

type cascadeDetector struct {
	faces   gocv.CascadeClassifier
	eyes    gocv.CascadeClassifier
	hasEyes bool
	minSize image.Point
}

// NewDetector loads the Haar cascades named in opts. The eye cascade is
// optional; without it DetectEyes returns no eyes.
func NewDetector(opts Options) (Detector, error) {
	if opts.FaceCascadePath == "" {
		return nil, errors.New("face cascade path is required")
	}
	d := &cascadeDetector{
		faces:   gocv.NewCascadeClassifier(),
		minSize: image.Pt(opts.MinFaceSize, opts.MinFaceSize),
	}
	if !d.faces.Load(opts.FaceCascadePath) {
		d.faces.Close()
		return nil, fmt.Errorf("load face cascade %s", opts.FaceCascadePath)
	}
	if opts.EyeCascadePath != "" {
		d.eyes = gocv.NewCascadeClassifier()
		if !d.eyes.Load(opts.EyeCascadePath) {
			d.faces.Close()
			d.eyes.Close()
			return nil, fmt.Errorf("load eye cascade %s", opts.EyeCascadePath)
		}
		d.hasEyes = true
	}
	return d, nil
}

func (d *cascadeDetector) DetectFaces(img *image.RGBA) ([]image.Rectangle, error) {
	gray, err := grayMat(img)
	if err != nil {
		return nil, err
	}
	defer gray.Close()

	rects := d.faces.DetectMultiScaleWithParams(gray, 1.1, 5, 0, d.minSize, image.Point{})
	return rects, nil
}

func (d *cascadeDetector) DetectEyes(img *image.RGBA, face image.Rectangle) ([]image.Rectangle, error) {
	if !d.hasEyes {
		return nil, nil
	}
	face = face.Intersect(img.Bounds())
	if face.Empty() {
		return nil, nil
	}
	gray, err := grayMat(img)
	if err != nil {
		return nil, err
	}
	defer gray.Close()

	region := gray.Region(face)
	defer region.Close()

	found := d.eyes.DetectMultiScale(region)
	eyes := make([]image.Rectangle, 0, len(found))
	for _, r := range found {
		eyes = append(eyes, r.Add(face.Min))
	}
	return eyes, nil
}

func (d *cascadeDetector) Close() error {
	if err := d.faces.Close(); err != nil {
		return err
	}
	if d.hasEyes {
		return d.eyes.Close()
	}
	return nil
}

func grayMat(img *image.RGBA) (gocv.Mat, error) {
	mat, err := gocv.ImageToMatRGBA(img)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("convert frame: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return gocv.NewMat(), errors.New("empty frame")
	}

	gray := gocv.NewMat()
	gocv.CvtColor(mat, &gray, gocv.ColorRGBAToGray)
	gocv.EqualizeHist(gray, &gray)
	return gray, nil
}
