package testsupport

import (
	"path/filepath"
	"testing"

	"proctor/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Metrics.Bind = "127.0.0.1:0"
	cfgVal.Broadcast.RedisAddr = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithMaxWarnings overrides the warning threshold for new sessions.
func WithMaxWarnings(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Proctoring.MaxWarnings = n
	}
}

// WithGracePeriod overrides the per-session grace period in seconds.
func WithGracePeriod(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Proctoring.GracePeriodSeconds = seconds
	}
}

// WithRedis points the broadcast section at a Redis address.
func WithRedis(addr string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Broadcast.RedisAddr = addr
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
