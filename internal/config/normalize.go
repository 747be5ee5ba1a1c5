package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

func (c *Config) normalize() error {
	// A missing .env file is the common case.
	_ = godotenv.Load()

	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeAnalysis(); err != nil {
		return err
	}
	c.normalizeProctoring()
	c.normalizeBroadcast()
	c.normalizeLogging()
	c.Metrics.Bind = strings.TrimSpace(c.Metrics.Bind)
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAnalysis() error {
	var err error
	if c.Analysis.QueueCapacity <= 0 {
		c.Analysis.QueueCapacity = defaultQueueCapacity
	}
	if c.Analysis.ResultCapacity <= 0 {
		c.Analysis.ResultCapacity = defaultResultCapacity
	}
	if c.Analysis.TargetHeight <= 0 {
		c.Analysis.TargetHeight = defaultTargetHeight
	}
	if c.Analysis.MaxFaces <= 0 {
		c.Analysis.MaxFaces = defaultMaxFaces
	}
	if c.Analysis.FaceCascadePath, err = expandPath(strings.TrimSpace(c.Analysis.FaceCascadePath)); err != nil {
		return fmt.Errorf("analysis.face_cascade_path: %w", err)
	}
	if c.Analysis.EyeCascadePath, err = expandPath(strings.TrimSpace(c.Analysis.EyeCascadePath)); err != nil {
		return fmt.Errorf("analysis.eye_cascade_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeProctoring() {
	if c.Proctoring.MaxWarnings <= 0 {
		c.Proctoring.MaxWarnings = defaultMaxWarnings
	}
	if c.Proctoring.NoFaceFrames <= 0 {
		c.Proctoring.NoFaceFrames = 1
	}
	if c.Proctoring.GracePeriodSeconds < 0 {
		c.Proctoring.GracePeriodSeconds = 0
	}
	if c.Proctoring.ViolationCooldownSeconds < 0 {
		c.Proctoring.ViolationCooldownSeconds = 0
	}
}

func (c *Config) normalizeBroadcast() {
	if value, ok := os.LookupEnv("PROCTOR_REDIS_ADDR"); ok && strings.TrimSpace(c.Broadcast.RedisAddr) == "" {
		c.Broadcast.RedisAddr = value
	}
	if value, ok := os.LookupEnv("PROCTOR_REDIS_PASSWORD"); ok && c.Broadcast.RedisPassword == "" {
		c.Broadcast.RedisPassword = value
	}
	if value, ok := os.LookupEnv("PROCTOR_NTFY_TOPIC"); ok && strings.TrimSpace(c.Broadcast.NtfyTopic) == "" {
		c.Broadcast.NtfyTopic = value
	}
	c.Broadcast.RedisAddr = strings.TrimSpace(c.Broadcast.RedisAddr)
	c.Broadcast.NtfyTopic = strings.TrimSpace(c.Broadcast.NtfyTopic)
	c.Broadcast.RedisChannel = strings.TrimSpace(c.Broadcast.RedisChannel)
	if c.Broadcast.RedisChannel == "" {
		c.Broadcast.RedisChannel = defaultRedisChannel
	}
	if c.Broadcast.TimeoutSeconds <= 0 {
		c.Broadcast.TimeoutSeconds = defaultBroadcastTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
