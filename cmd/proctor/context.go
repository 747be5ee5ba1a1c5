package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"proctor/internal/broadcast"
	"proctor/internal/config"
	"proctor/internal/logging"
	"proctor/internal/notifications"
	"proctor/internal/proctoring"
	"proctor/internal/store"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// fileLogger logs to the log directory only, keeping command output clean.
func (c *commandContext) fileLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      "json",
		OutputPaths: []string{filepath.Join(cfg.Paths.LogDir, "proctor-cli.log")},
	})
}

func (c *commandContext) withStore(fn func(*store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	return fn(st)
}

// withManager runs fn against a state machine whose broadcasts reach the
// configured publishers. Pending broadcasts are flushed before returning.
func (c *commandContext) withManager(cmd *cobra.Command, fn func(*proctoring.Manager, *store.Store) error) error {
	logger, err := c.fileLogger()
	if err != nil {
		return err
	}
	return c.withStore(func(st *store.Store) error {
		publishers, closePublishers := buildPublishers(cmd.Context(), c.config, logger)
		defer closePublishers()

		async := broadcast.NewAsync(broadcast.Multi(publishers), c.config.BroadcastTimeout(), logger)
		defer async.Wait()

		return fn(proctoring.NewManager(st, async, logger), st)
	})
}

// buildPublishers returns the external broadcasters configured for this
// process. An unreachable Redis server is logged and skipped.
func buildPublishers(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]broadcast.Broadcaster, func()) {
	if ctx == nil {
		ctx = context.Background()
	}
	publishers := []broadcast.Broadcaster{notifications.New(cfg.Broadcast)}
	closeFn := func() {}
	if cfg.Broadcast.RedisAddr != "" {
		redisPub, err := broadcast.NewRedisPublisher(ctx, cfg.Broadcast)
		if err != nil {
			logger.Warn("redis broadcast disabled",
				logging.String("address", cfg.Broadcast.RedisAddr),
				logging.Error(err),
			)
		} else {
			publishers = append(publishers, redisPub)
			closeFn = func() { _ = redisPub.Close() }
		}
	}
	return publishers, closeFn
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
