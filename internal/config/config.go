package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Analysis contains configuration for the frame analysis workers.
type Analysis struct {
	// QueueCapacity bounds each worker's task channel. Frames beyond it are dropped.
	QueueCapacity int `toml:"queue_capacity"`
	// ResultCapacity bounds each worker's result channel.
	ResultCapacity int `toml:"result_capacity"`
	// TargetHeight is the height frames are scaled down to before analysis.
	TargetHeight int `toml:"target_height"`
	// FaceEnabled toggles the face analyzer worker.
	FaceEnabled bool `toml:"face_enabled"`
	// GazeEnabled toggles the gaze analyzer worker.
	GazeEnabled bool `toml:"gaze_enabled"`
	// FaceCascadePath points at the OpenCV Haar cascade used for face detection.
	FaceCascadePath string `toml:"face_cascade_path"`
	// EyeCascadePath points at the OpenCV Haar cascade used for gaze estimation.
	EyeCascadePath string `toml:"eye_cascade_path"`
	// MaxFaces caps the number of face boxes reported per frame.
	MaxFaces int `toml:"max_faces"`
	// MatchThreshold is the cosine similarity above which a face matches the
	// registered identity.
	MatchThreshold float64 `toml:"match_threshold"`
	// GazeOffsetThreshold is the normalized eye offset treated as looking away.
	GazeOffsetThreshold float64 `toml:"gaze_offset_threshold"`
}

// Proctoring contains the violation policy knobs.
type Proctoring struct {
	MaxWarnings              int `toml:"max_warnings"`
	GracePeriodSeconds       int `toml:"grace_period_seconds"`
	NoFaceFrames             int `toml:"no_face_frames"`
	ViolationCooldownSeconds int `toml:"violation_cooldown_seconds"`
}

// Broadcast contains configuration for the status fan-out.
type Broadcast struct {
	RedisAddr      string `toml:"redis_addr"`
	RedisPassword  string `toml:"redis_password"`
	RedisDB        int    `toml:"redis_db"`
	RedisChannel   string `toml:"redis_channel"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	// NtfyTopic is a full ntfy topic URL. Suspensions and critical
	// violations are pushed there when set.
	NtfyTopic string `toml:"ntfy_topic"`
}

// Metrics contains configuration for the Prometheus endpoint.
type Metrics struct {
	Bind string `toml:"bind"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for proctor.
//
// Configuration sections by subsystem:
//   - Paths: database and log directories
//   - Analysis: worker channel sizes and detector models
//   - Proctoring: warning limits, grace period, and violation debouncing
//   - Broadcast: Redis fan-out of violations and status changes
//   - Metrics: Prometheus listener
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Analysis   Analysis   `toml:"analysis"`
	Proctoring Proctoring `toml:"proctoring"`
	Broadcast  Broadcast  `toml:"broadcast"`
	Metrics    Metrics    `toml:"metrics"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/proctor/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("proctor.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "proctor.db")
}

// LockPath returns the single-instance lock file used by the serve command.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "proctor.lock")
}

// GracePeriod returns the window after a session's first frame in which violations are ignored.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.Proctoring.GracePeriodSeconds) * time.Second
}

// ViolationCooldown returns the minimum gap between two recorded events of the same type.
func (c *Config) ViolationCooldown() time.Duration {
	return time.Duration(c.Proctoring.ViolationCooldownSeconds) * time.Second
}

// BroadcastTimeout bounds a single fan-out publish.
func (c *Config) BroadcastTimeout() time.Duration {
	return time.Duration(c.Broadcast.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
