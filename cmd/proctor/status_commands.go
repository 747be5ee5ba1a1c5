package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"proctor/internal/logging"
	"proctor/internal/proctoring"
	"proctor/internal/store"
	"proctor/internal/violation"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status <interview-id>",
		Short: "Show the proctoring summary of an interview",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseInterviewID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				mgr := proctoring.NewManager(st, nil, logging.NewNop())
				summary, err := mgr.StatusSummary(cmd.Context(), id)
				if err != nil {
					return describeNotFound(err, id)
				}
				if jsonOut {
					return writeJSON(cmd, summary)
				}
				printSummary(cmd, summary)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.AddCommand(newStatusSetCommand(ctx))
	return cmd
}

func printSummary(cmd *cobra.Command, s proctoring.Summary) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	lines := renderSectionHeader(fmt.Sprintf("Interview %d", s.Interview.ID), colorize)
	candidate := "-"
	if s.Interview.CandidateName != nil {
		candidate = *s.Interview.CandidateName
	}
	lines = append(lines,
		renderField("Candidate", candidate),
		renderField("Status", paint(s.CurrentStatus, statusColor(s.CurrentStatus), colorize)),
		renderField("Warnings", fmt.Sprintf("%d of %d (%d remaining)", s.Warnings.TotalWarnings, s.Warnings.MaxWarnings, s.Warnings.WarningsRemaining)),
		renderField("Progress", fmt.Sprintf("%d of %d answered", s.Progress.QuestionsAnswered, s.Progress.TotalQuestions)),
		renderField("Last activity", formatTimestamp(s.LastActivity)),
	)
	if s.IsSuspended {
		reason := "-"
		if s.SuspensionReason != nil {
			reason = *s.SuspensionReason
		}
		lines = append(lines,
			renderField("Suspended", paint(reason, ansiRed, colorize)),
			renderField("Suspended at", formatTimestamp(s.SuspendedAt)),
		)
	}
	fmt.Fprintln(out, strings.Join(lines, "\n"))

	if len(s.Warnings.Violations) > 0 {
		rows := make([][]string, 0, len(s.Warnings.Violations))
		for _, v := range s.Warnings.Violations {
			details := ""
			if v.Details != nil {
				details = *v.Details
			}
			ts := v.Timestamp
			rows = append(rows, []string{
				formatTimestamp(&ts),
				v.Type,
				paint(v.Severity, severityColor(v.Severity), colorize),
				details,
			})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable([]string{"Time", "Violation", "Severity", "Details"}, rows, nil))
	}

	if len(s.Timeline) > 0 {
		rows := make([][]string, 0, len(s.Timeline))
		for _, entry := range s.Timeline {
			ts := entry.Timestamp
			rows = append(rows, []string{
				formatTimestamp(&ts),
				paint(entry.Status, statusColor(entry.Status), colorize),
				formatMetadata(entry.Metadata),
			})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable([]string{"Time", "Status", "Context"}, rows, nil))
	}
}

func formatMetadata(meta map[string]any) string {
	if len(meta) == 0 {
		return ""
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, meta[k]))
	}
	return strings.Join(parts, " ")
}

func newStatusSetCommand(ctx *commandContext) *cobra.Command {
	var meta []string

	cmd := &cobra.Command{
		Use:   "set <interview-id> <status>",
		Short: "Record a status change",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseInterviewID(args[0])
			if err != nil {
				return err
			}
			status, ok := store.ParseStatus(args[1])
			if !ok {
				return fmt.Errorf("unknown status %q", args[1])
			}
			metadata, err := parseMetadata(meta)
			if err != nil {
				return err
			}
			return ctx.withManager(cmd, func(mgr *proctoring.Manager, _ *store.Store) error {
				entry, err := mgr.RecordStatusChange(cmd.Context(), id, status, metadata)
				if err != nil {
					return describeNotFound(err, id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Interview %d is now %s\n", id, entry.Status)
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&meta, "meta", nil, "Context metadata as key=value (repeatable)")
	return cmd
}

func parseMetadata(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid metadata %q (want key=value)", pair)
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}

func newSuspendCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "suspend <interview-id>",
		Short: "Suspend an interview",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseInterviewID(args[0])
			if err != nil {
				return err
			}
			reason = strings.TrimSpace(reason)
			if reason == "" {
				return fmt.Errorf("--reason is required")
			}
			return ctx.withManager(cmd, func(mgr *proctoring.Manager, _ *store.Store) error {
				suspended, err := mgr.CheckAndSuspend(cmd.Context(), id, reason)
				if err != nil {
					return describeNotFound(err, id)
				}
				out := cmd.OutOrStdout()
				if !suspended {
					fmt.Fprintf(out, "Interview %d was already suspended\n", id)
					return nil
				}
				fmt.Fprintf(out, "Interview %d suspended\n", id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Suspension reason")
	return cmd
}

func newViolationCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "violation",
		Short: "Record proctoring violations",
	}
	cmd.AddCommand(newViolationAddCommand(ctx))
	return cmd
}

func newViolationAddCommand(ctx *commandContext) *cobra.Command {
	var details, severity string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "add <interview-id> <event-type>",
		Short: "Record a violation and apply the escalation policy",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseInterviewID(args[0])
			if err != nil {
				return err
			}
			forced, err := violation.ParseSeverity(severity)
			if err != nil {
				return err
			}
			return ctx.withManager(cmd, func(mgr *proctoring.Manager, st *store.Store) error {
				event, err := mgr.AddViolation(cmd.Context(), id, args[1], details, forced)
				if err != nil {
					return describeNotFound(err, id)
				}
				session, err := st.GetSession(cmd.Context(), id)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, map[string]any{
						"id":                event.ID,
						"type":              event.EventType,
						"severity":          event.Severity,
						"triggered_warning": event.TriggeredWarning,
						"warning_count":     session.WarningCount,
						"is_suspended":      session.IsSuspended,
					})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Recorded %s (%s)\n", event.EventType, event.Severity)
				fmt.Fprintf(out, "Warnings: %d of %d\n", session.WarningCount, session.MaxWarnings)
				if session.IsSuspended {
					fmt.Fprintf(out, "Interview suspended: %s\n", session.SuspensionReason)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&details, "details", "", "Free-form details")
	cmd.Flags().StringVar(&severity, "severity", "", "Force a severity (info, warning, critical)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
