package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"proctor/internal/store"
)

func newSessionCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage interview sessions",
	}
	cmd.AddCommand(newSessionCreateCommand(ctx))
	cmd.AddCommand(newSessionListCommand(ctx))
	cmd.AddCommand(newSessionQuestionsCommand(ctx))
	cmd.AddCommand(newSessionAnswerCommand(ctx))
	return cmd
}

func newSessionCreateCommand(ctx *commandContext) *cobra.Command {
	var name, token, status string
	var maxWarnings int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an interview session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			parsed, ok := store.ParseStatus(status)
			if !ok {
				return fmt.Errorf("unknown status %q", status)
			}
			if maxWarnings <= 0 {
				maxWarnings = cfg.Proctoring.MaxWarnings
			}
			return ctx.withStore(func(st *store.Store) error {
				session, err := st.CreateSession(cmd.Context(), store.NewSession{
					AccessToken:   token,
					CandidateName: name,
					MaxWarnings:   maxWarnings,
					Status:        parsed,
				})
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, map[string]any{
						"id":           session.ID,
						"access_token": session.AccessToken,
						"max_warnings": session.MaxWarnings,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created interview %d (token %s)\n", session.ID, session.AccessToken)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Candidate name")
	cmd.Flags().StringVar(&token, "token", "", "Access token (generated when empty)")
	cmd.Flags().StringVar(&status, "status", string(store.StatusInvited), "Initial status")
	cmd.Flags().IntVar(&maxWarnings, "max-warnings", 0, "Warnings before suspension (defaults to config)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newSessionListCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List interview sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var statuses []store.CandidateStatus
			for _, value := range statusFilters {
				parsed, ok := store.ParseStatus(value)
				if !ok {
					return fmt.Errorf("unknown status %q", value)
				}
				statuses = append(statuses, parsed)
			}
			return ctx.withStore(func(st *store.Store) error {
				sessions, err := st.ListSessions(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, sessions)
				}
				out := cmd.OutOrStdout()
				if len(sessions) == 0 {
					fmt.Fprintln(out, "No interview sessions")
					return nil
				}
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(sessions))
				for _, s := range sessions {
					rows = append(rows, []string{
						strconv.FormatInt(s.ID, 10),
						s.CandidateName,
						paint(string(s.CurrentStatus), statusColor(string(s.CurrentStatus)), colorize),
						fmt.Sprintf("%d/%d", s.WarningCount, s.MaxWarnings),
						yesNo(s.IsSuspended),
						formatTimestamp(s.LastActivity),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Candidate", "Status", "Warnings", "Suspended", "Last Activity"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&statusFilters, "status", nil, "Only list sessions in these statuses")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newSessionQuestionsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "questions <interview-id> <question-id>...",
		Short: "Set the ordered question list of an interview",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseInterviewID(args[0])
			if err != nil {
				return err
			}
			questions := make([]int64, 0, len(args)-1)
			for _, arg := range args[1:] {
				qid, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
				if err != nil {
					return fmt.Errorf("invalid question id %q", arg)
				}
				questions = append(questions, qid)
			}
			return ctx.withStore(func(st *store.Store) error {
				if _, err := st.GetSession(cmd.Context(), id); err != nil {
					return err
				}
				if err := st.SetQuestions(cmd.Context(), id, questions); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Interview %d has %d questions\n", id, len(questions))
				return nil
			})
		},
	}
}

func newSessionAnswerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "answer <interview-id> <question-id>",
		Short: "Mark a question as answered",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseInterviewID(args[0])
			if err != nil {
				return err
			}
			qid, err := strconv.ParseInt(strings.TrimSpace(args[1]), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid question id %q", args[1])
			}
			return ctx.withStore(func(st *store.Store) error {
				if err := st.RecordAnswer(cmd.Context(), id, qid, time.Now().UTC()); err != nil {
					return err
				}
				progress, err := st.Progress(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Answered %d of %d questions\n", progress.Answered, progress.Total)
				return nil
			})
		},
	}
}

func parseInterviewID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid interview id %q", value)
	}
	return id, nil
}

func describeNotFound(err error, id int64) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("interview %d not found", id)
	}
	return err
}
