// Package gaze estimates where the candidate is looking from the pupil
// position inside each detected eye.
package gaze

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sort"

	"proctor/internal/analysis"
	"proctor/internal/vision"
)

// Gaze statuses. Statuses that count as looking away carry the WARNING marker.
const (
	StatusCenter      = "Looking Center"
	StatusLeft        = "WARNING: Looking Left"
	StatusRight       = "WARNING: Looking Right"
	StatusUp          = "WARNING: Looking Up"
	StatusDown        = "WARNING: Looking Down"
	StatusEyesNotSeen = "WARNING: Eyes Not Visible"
)

// DefaultOffsetThreshold is the normalized pupil offset treated as looking away.
const DefaultOffsetThreshold = 0.35

// Config tunes the analyzer.
type Config struct {
	OffsetThreshold float64
}

// Analyzer implements analysis.FrameAnalyzer for gaze.
type Analyzer struct {
	detector vision.Detector
	cfg      Config
}

// New wraps a detector. The analyzer takes ownership of it.
func New(detector vision.Detector, cfg Config) *Analyzer {
	if cfg.OffsetThreshold <= 0 {
		cfg.OffsetThreshold = DefaultOffsetThreshold
	}
	return &Analyzer{detector: detector, cfg: cfg}
}

// NewFactory returns a factory that opens a detector per worker.
func NewFactory(opts vision.Options, cfg Config) analysis.Factory {
	return func(context.Context) (analysis.FrameAnalyzer, error) {
		detector, err := vision.NewDetector(opts)
		if err != nil {
			return nil, fmt.Errorf("gaze detector: %w", err)
		}
		return New(detector, cfg), nil
	}
}

// Analyze reports the gaze of the largest face. Frames without a face report
// the no-gaze status rather than a warning; face absence is the face
// analyzer's concern.
func (a *Analyzer) Analyze(ctx context.Context, task analysis.FrameTask, _ []float32) (analysis.FrameResult, error) {
	if err := ctx.Err(); err != nil {
		return analysis.FrameResult{}, err
	}
	if task.Image == nil {
		return analysis.FrameResult{}, errors.New("frame has no image")
	}
	faces, err := a.detector.DetectFaces(task.Image)
	if err != nil {
		return analysis.FrameResult{}, fmt.Errorf("detect faces: %w", err)
	}
	if len(faces) == 0 {
		return analysis.FrameResult{GazeStatus: analysis.GazeNone, FaceCount: 0}, nil
	}
	sort.SliceStable(faces, func(i, j int) bool {
		return faces[i].Dx()*faces[i].Dy() > faces[j].Dx()*faces[j].Dy()
	})
	face := faces[0]

	eyes, err := a.detector.DetectEyes(task.Image, face)
	if err != nil {
		return analysis.FrameResult{}, fmt.Errorf("detect eyes: %w", err)
	}
	eyes = upperEyes(eyes, face)
	if len(eyes) == 0 {
		return analysis.FrameResult{GazeStatus: StatusEyesNotSeen, FaceCount: len(faces)}, nil
	}

	var dx, dy float64
	for _, eye := range eyes {
		ex, ey := PupilOffset(task.Image, eye)
		dx += ex
		dy += ey
	}
	dx /= float64(len(eyes))
	dy /= float64(len(eyes))
	return analysis.FrameResult{GazeStatus: a.classify(dx, dy), FaceCount: len(faces)}, nil
}

// Close releases the detector.
func (a *Analyzer) Close() error {
	if a.detector == nil {
		return nil
	}
	return a.detector.Close()
}

func (a *Analyzer) classify(dx, dy float64) string {
	t := a.cfg.OffsetThreshold
	switch {
	case dx < -t:
		return StatusLeft
	case dx > t:
		return StatusRight
	case dy < -t:
		return StatusUp
	case dy > t:
		return StatusDown
	default:
		return StatusCenter
	}
}

// upperEyes keeps at most two eyes whose centers sit in the upper half of the
// face, which filters nostrils and mouth corners cascades often report.
func upperEyes(eyes []image.Rectangle, face image.Rectangle) []image.Rectangle {
	midY := face.Min.Y + face.Dy()/2
	out := make([]image.Rectangle, 0, 2)
	for _, eye := range eyes {
		center := eye.Min.Add(eye.Max).Div(2)
		if center.Y > midY || !center.In(face) {
			continue
		}
		out = append(out, eye)
		if len(out) == 2 {
			break
		}
	}
	return out
}
