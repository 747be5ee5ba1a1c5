package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"proctor/internal/analysis"
	"proctor/internal/monitor"
	"proctor/internal/proctoring"
	"proctor/internal/store"
)

const analyzeTimeout = 10 * time.Second

type frameReport struct {
	Frame    string            `json:"frame"`
	Response analysis.Response `json:"response"`
}

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var reference string
	var interviewID int64
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "analyze <frame>...",
		Short: "Run image files through the face and gaze analyzers",
		Long: "Run image files through the face and gaze analyzers.\n\n" +
			"With --interview the results also feed the violation policy of that\n" +
			"interview, recording violations exactly as a live session would\n" +
			"(without the start-up grace period).",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.fileLogger()
			if err != nil {
				return err
			}

			var identity []float32
			if reference != "" {
				if identity, err = enrollReference(cfg, reference); err != nil {
					return err
				}
			}

			coordinator, err := analysis.NewCoordinator(cfg, buildFactories(cfg, logger), logger)
			if err != nil {
				return err
			}
			defer coordinator.Close()

			run := func(submit func(raw []byte) string, flush func()) ([]frameReport, error) {
				reports := make([]frameReport, 0, len(args))
				for _, path := range args {
					raw, err := os.ReadFile(path)
					if err != nil {
						return nil, fmt.Errorf("read frame: %w", err)
					}
					sessionID := submit(raw)
					waitSettled(cmd.Context(), coordinator, analyzeTimeout)
					flush()
					reports = append(reports, frameReport{
						Frame:    filepath.Base(path),
						Response: coordinator.LatestResult(sessionID),
					})
				}
				return reports, nil
			}

			var reports []frameReport
			if interviewID > 0 {
				policy := *cfg
				policy.Proctoring.GracePeriodSeconds = 0
				err = ctx.withManager(cmd, func(mgr *proctoring.Manager, st *store.Store) error {
					if _, err := st.GetSession(cmd.Context(), interviewID); err != nil {
						return describeNotFound(err, interviewID)
					}
					mon := monitor.New(&policy, coordinator, mgr, logger)
					if identity != nil {
						mon.RegisterIdentity(interviewID, identity)
					}
					sessionID := strconv.FormatInt(interviewID, 10)
					var runErr error
					reports, runErr = run(
						func(raw []byte) string {
							mon.ProcessFrame(cmd.Context(), interviewID, raw)
							return sessionID
						},
						func() { mon.Flush(cmd.Context()) },
					)
					return runErr
				})
			} else {
				const sessionID = "cli"
				if identity != nil {
					coordinator.RegisterIdentity(sessionID, identity)
				}
				reports, err = run(
					func(raw []byte) string {
						coordinator.SubmitFrame(sessionID, raw)
						return sessionID
					},
					func() {},
				)
			}
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, reports)
			}
			printReports(cmd, reports)
			return nil
		},
	}
	cmd.Flags().StringVar(&reference, "reference", "", "Reference photo of the candidate")
	cmd.Flags().Int64Var(&interviewID, "interview", 0, "Record violations against this interview")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

// waitSettled blocks until every live worker has produced a result for each
// accepted frame, or the timeout passes.
func waitSettled(ctx context.Context, c *analysis.Coordinator, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		settled := true
		for _, s := range c.Stats() {
			if s.Alive && s.Emitted+s.ResultsDropped < s.Submitted {
				settled = false
			}
		}
		if settled {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func printReports(cmd *cobra.Command, reports []frameReport) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		resp := r.Response
		auth, faces := "-", "-"
		if resp.Authorized != nil {
			auth = yesNo(*resp.Authorized)
		}
		if resp.Faces != nil {
			faces = strconv.Itoa(*resp.Faces)
		}
		warning := resp.Warning
		if warning != "" {
			warning = paint(warning, ansiYellow, colorize)
		}
		rows = append(rows, []string{r.Frame, auth, faces, resp.Gaze, warning})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Frame", "Authorized", "Faces", "Gaze", "Warning"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	))
}
