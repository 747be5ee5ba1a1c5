// Package face detects faces in frames and verifies them against a
// registered identity embedding.
package face

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sort"

	"proctor/internal/analysis"
	"proctor/internal/frame"
	"proctor/internal/logging"
	"proctor/internal/vision"
)

const (
	// DefaultMatchThreshold is the cosine similarity a face must reach to
	// match the registered identity.
	DefaultMatchThreshold = 0.40
	// DefaultMaxFaces caps the faces reported per frame.
	DefaultMaxFaces = 4
	// BoxPadding grows detected faces on every side by this share of their size.
	BoxPadding = 0.1
)

// ErrNoFace and ErrManyFaces are returned by Enroll when the reference image
// does not contain exactly one face.
var (
	ErrNoFace    = errors.New("no face in reference image")
	ErrManyFaces = errors.New("more than one face in reference image")
)

// Config tunes the analyzer.
type Config struct {
	MaxFaces       int
	MatchThreshold float64
	Logger         *slog.Logger
}

// Analyzer implements analysis.FrameAnalyzer for faces.
type Analyzer struct {
	detector vision.Detector
	cfg      Config
}

// New wraps a detector. The analyzer takes ownership of it.
func New(detector vision.Detector, cfg Config) *Analyzer {
	if cfg.MaxFaces <= 0 {
		cfg.MaxFaces = DefaultMaxFaces
	}
	if cfg.MatchThreshold <= 0 {
		cfg.MatchThreshold = DefaultMatchThreshold
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	cfg.Logger = logging.NewComponentLogger(cfg.Logger, "face")
	return &Analyzer{detector: detector, cfg: cfg}
}

// NewFactory returns a factory that opens a detector per worker.
func NewFactory(opts vision.Options, cfg Config) analysis.Factory {
	return func(context.Context) (analysis.FrameAnalyzer, error) {
		detector, err := vision.NewDetector(opts)
		if err != nil {
			return nil, fmt.Errorf("face detector: %w", err)
		}
		return New(detector, cfg), nil
	}
}

// Analyze counts faces and, when an identity is known and exactly one face is
// present, compares the face against it. Confidence is the cosine distance to
// the identity, 1 when nothing was compared. An identity that is not an
// embedding of this analyzer is never compared.
func (a *Analyzer) Analyze(ctx context.Context, task analysis.FrameTask, identity []float32) (analysis.FrameResult, error) {
	if err := ctx.Err(); err != nil {
		return analysis.FrameResult{}, err
	}
	if task.Image == nil {
		return analysis.FrameResult{}, errors.New("frame has no image")
	}
	faces, err := a.detect(task.Image)
	if err != nil {
		return analysis.FrameResult{}, err
	}

	result := analysis.FrameResult{
		Confidence: 1,
		FaceCount:  len(faces),
		FaceBoxes:  make([]analysis.Box, 0, len(faces)),
	}
	for _, r := range faces {
		result.FaceBoxes = append(result.FaceBoxes, analysis.BoxFromRect(frame.ScaleRect(r, task.Scale)))
	}

	if identity != nil && len(identity) != EmbeddingLen {
		a.cfg.Logger.Warn("identity reference has wrong length; skipping verification",
			logging.String(logging.FieldSessionID, task.SessionID),
			logging.Int("length", len(identity)),
			logging.Int("expected", EmbeddingLen),
		)
		identity = nil
	}
	if identity != nil && len(faces) == 1 {
		similarity := Cosine(Embed(task.Image, faces[0]), identity)
		result.Verified = true
		result.Authorized = similarity >= a.cfg.MatchThreshold
		result.Confidence = 1 - similarity
	}
	return result, nil
}

// Enroll builds the identity embedding from a reference image holding exactly
// one face.
func (a *Analyzer) Enroll(img *image.RGBA) ([]float32, error) {
	faces, err := a.detect(img)
	if err != nil {
		return nil, err
	}
	switch len(faces) {
	case 0:
		return nil, ErrNoFace
	case 1:
		return Embed(img, faces[0]), nil
	default:
		return nil, ErrManyFaces
	}
}

// Close releases the detector.
func (a *Analyzer) Close() error {
	if a.detector == nil {
		return nil
	}
	return a.detector.Close()
}

// detect returns padded face rectangles in analysis coordinates, largest first.
func (a *Analyzer) detect(img *image.RGBA) ([]image.Rectangle, error) {
	rects, err := a.detector.DetectFaces(img)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}
	sort.SliceStable(rects, func(i, j int) bool {
		return area(rects[i]) > area(rects[j])
	})
	if len(rects) > a.cfg.MaxFaces {
		rects = rects[:a.cfg.MaxFaces]
	}
	out := make([]image.Rectangle, 0, len(rects))
	for _, r := range rects {
		padded := vision.PadRect(r, BoxPadding, img.Bounds())
		if padded.Empty() {
			continue
		}
		out = append(out, padded)
	}
	return out, nil
}

func area(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}
