package main

import (
	"fmt"
	"log/slog"
	"os"

	"proctor/internal/analysis"
	"proctor/internal/analysis/face"
	"proctor/internal/analysis/gaze"
	"proctor/internal/config"
	"proctor/internal/frame"
	"proctor/internal/vision"
)

func visionOptions(cfg *config.Config) vision.Options {
	return vision.Options{
		FaceCascadePath: cfg.Analysis.FaceCascadePath,
		EyeCascadePath:  cfg.Analysis.EyeCascadePath,
	}
}

func faceConfig(cfg *config.Config, logger *slog.Logger) face.Config {
	return face.Config{
		MaxFaces:       cfg.Analysis.MaxFaces,
		MatchThreshold: cfg.Analysis.MatchThreshold,
		Logger:         logger,
	}
}

func buildFactories(cfg *config.Config, logger *slog.Logger) map[analysis.Kind]analysis.Factory {
	opts := visionOptions(cfg)
	factories := make(map[analysis.Kind]analysis.Factory, 2)
	if cfg.Analysis.FaceEnabled {
		factories[analysis.KindFace] = face.NewFactory(opts, faceConfig(cfg, logger))
	}
	if cfg.Analysis.GazeEnabled {
		factories[analysis.KindGaze] = gaze.NewFactory(opts, gaze.Config{
			OffsetThreshold: cfg.Analysis.GazeOffsetThreshold,
		})
	}
	return factories
}

// enrollReference computes the identity embedding of the single face in the
// image at path.
func enrollReference(cfg *config.Config, path string) ([]float32, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference: %w", err)
	}
	decoded, err := frame.Decode(raw, cfg.Analysis.TargetHeight)
	if err != nil {
		return nil, fmt.Errorf("decode reference: %w", err)
	}
	detector, err := vision.NewDetector(visionOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("load face detector: %w", err)
	}
	analyzer := face.New(detector, faceConfig(cfg, nil))
	defer analyzer.Close()

	embedding, err := analyzer.Enroll(decoded.Image)
	if err != nil {
		return nil, fmt.Errorf("enroll reference: %w", err)
	}
	return embedding, nil
}
