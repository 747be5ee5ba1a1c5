package proctoring

import (
	"context"
	"fmt"
	"time"
)

// Summary is the admin view of one interview.
type Summary struct {
	Interview        InterviewInfo  `json:"interview"`
	CurrentStatus    string         `json:"current_status"`
	Timeline         []TimelineItem `json:"timeline"`
	Warnings         Warnings       `json:"warnings"`
	Progress         Progress       `json:"progress"`
	IsSuspended      bool           `json:"is_suspended"`
	SuspensionReason *string        `json:"suspension_reason"`
	SuspendedAt      *time.Time     `json:"suspended_at"`
	LastActivity     *time.Time     `json:"last_activity"`
}

// InterviewInfo is the session snapshot inside a Summary.
type InterviewInfo struct {
	ID               int64      `json:"id"`
	AccessToken      string     `json:"access_token"`
	CandidateName    *string    `json:"candidate_name"`
	CurrentStatus    string     `json:"current_status"`
	LastActivity     *time.Time `json:"last_activity"`
	WarningCount     int        `json:"warning_count"`
	MaxWarnings      int        `json:"max_warnings"`
	IsSuspended      bool       `json:"is_suspended"`
	SuspensionReason *string    `json:"suspension_reason"`
	SuspendedAt      *time.Time `json:"suspended_at"`
	CreatedAt        time.Time  `json:"created_at"`
}

// TimelineItem is one status change.
type TimelineItem struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}

// Warnings summarizes warning-bearing violations.
type Warnings struct {
	TotalWarnings     int             `json:"total_warnings"`
	WarningsRemaining int             `json:"warnings_remaining"`
	MaxWarnings       int             `json:"max_warnings"`
	Violations        []ViolationItem `json:"violations"`
}

// ViolationItem is one violation that triggered a warning or suspension.
type ViolationItem struct {
	Type      string    `json:"type"`
	Severity  string    `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
	Details   *string   `json:"details"`
}

// Progress reports question answering progress.
type Progress struct {
	QuestionsAnswered int    `json:"questions_answered"`
	TotalQuestions    int    `json:"total_questions"`
	CurrentQuestionID *int64 `json:"current_question_id"`
}

// StatusSummary assembles the admin summary. Only violations that triggered
// a warning are listed.
func (m *Manager) StatusSummary(ctx context.Context, interviewID int64) (Summary, error) {
	session, err := m.store.GetSession(ctx, interviewID)
	if err != nil {
		return Summary{}, err
	}
	timeline, err := m.store.Timeline(ctx, interviewID)
	if err != nil {
		return Summary{}, fmt.Errorf("status summary: %w", err)
	}
	violations, err := m.store.Violations(ctx, interviewID, true)
	if err != nil {
		return Summary{}, fmt.Errorf("status summary: %w", err)
	}
	progress, err := m.progress.Progress(ctx, interviewID)
	if err != nil {
		return Summary{}, fmt.Errorf("status summary: %w", err)
	}

	summary := Summary{
		Interview: InterviewInfo{
			ID:               session.ID,
			AccessToken:      session.AccessToken,
			CandidateName:    optional(session.CandidateName),
			CurrentStatus:    string(session.CurrentStatus),
			LastActivity:     session.LastActivity,
			WarningCount:     session.WarningCount,
			MaxWarnings:      session.MaxWarnings,
			IsSuspended:      session.IsSuspended,
			SuspensionReason: optional(session.SuspensionReason),
			SuspendedAt:      session.SuspendedAt,
			CreatedAt:        session.CreatedAt,
		},
		CurrentStatus: string(session.CurrentStatus),
		Timeline:      make([]TimelineItem, 0, len(timeline)),
		Warnings: Warnings{
			TotalWarnings:     session.WarningCount,
			WarningsRemaining: max(0, session.MaxWarnings-session.WarningCount),
			MaxWarnings:       session.MaxWarnings,
			Violations:        make([]ViolationItem, 0, len(violations)),
		},
		Progress: Progress{
			QuestionsAnswered: progress.Answered,
			TotalQuestions:    progress.Total,
			CurrentQuestionID: progress.CurrentQuestionID,
		},
		IsSuspended:      session.IsSuspended,
		SuspensionReason: optional(session.SuspensionReason),
		SuspendedAt:      session.SuspendedAt,
		LastActivity:     session.LastActivity,
	}
	for _, entry := range timeline {
		summary.Timeline = append(summary.Timeline, TimelineItem{
			Status:    string(entry.Status),
			Timestamp: entry.Timestamp,
			Metadata:  entry.ContextData,
		})
	}
	for _, v := range violations {
		summary.Warnings.Violations = append(summary.Warnings.Violations, ViolationItem{
			Type:      v.EventType,
			Severity:  string(v.Severity),
			Timestamp: v.Timestamp,
			Details:   optional(v.Details),
		})
	}
	return summary, nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
