package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateProctoring(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateAnalysis() error {
	if !c.Analysis.FaceEnabled && !c.Analysis.GazeEnabled {
		return errors.New("analysis: at least one of face_enabled or gaze_enabled must be true")
	}
	if c.Analysis.MatchThreshold < -1 || c.Analysis.MatchThreshold > 1 {
		return errors.New("analysis.match_threshold must be between -1 and 1")
	}
	if c.Analysis.GazeOffsetThreshold <= 0 || c.Analysis.GazeOffsetThreshold >= 1 {
		return errors.New("analysis.gaze_offset_threshold must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateProctoring() error {
	if c.Proctoring.MaxWarnings < 1 {
		return errors.New("proctoring.max_warnings must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
