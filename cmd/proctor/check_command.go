package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"proctor/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run readiness checks for serve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			if jsonOut {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					state := paint("OK", ansiGreen, colorize)
					switch {
					case !r.Passed && r.Optional:
						state = paint("WARN", ansiYellow, colorize)
					case !r.Passed:
						state = paint("FAIL", ansiRed, colorize)
					}
					rows = append(rows, []string{r.Name, state, r.Detail})
				}
				fmt.Fprintln(out, renderTable([]string{"Check", "Result", "Detail"}, rows, nil))
			}
			if failed := preflight.Failed(results); len(failed) > 0 {
				return errors.New(describeFailures(failed))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func describeFailures(failed []preflight.Result) string {
	if len(failed) == 1 {
		return fmt.Sprintf("preflight check failed: %s", failed[0].Name)
	}
	return fmt.Sprintf("%d preflight checks failed", len(failed))
}
