package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"proctor/internal/daemon"
	"proctor/internal/logging"
	"proctor/internal/preflight"
	"proctor/internal/store"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the proctoring daemon in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx)
		},
	}
}

func runServe(cmdCtx context.Context, ctx *commandContext) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	results := preflight.RunAll(signalCtx, cfg)
	for _, r := range results {
		if !r.Passed {
			logger.Warn("preflight check failed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.Bool("optional", r.Optional),
			)
		}
	}
	if failed := preflight.Failed(results); len(failed) > 0 {
		return fmt.Errorf("%s; run `proctor check` for details", describeFailures(failed))
	}

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}

	publishers, closePublishers := buildPublishers(signalCtx, cfg, logger)
	defer closePublishers()

	d, err := daemon.New(cfg, st, logger, buildFactories(cfg, logger), publishers...)
	if err != nil {
		st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Run(signalCtx); err != nil {
		return err
	}
	logger.Info("proctor shutting down")
	return nil
}
