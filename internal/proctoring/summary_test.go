package proctoring_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"proctor/internal/logging"
	"proctor/internal/proctoring"
	"proctor/internal/store"
	"proctor/internal/testsupport"
	"proctor/internal/violation"
)

type fixedProgress struct {
	progress store.Progress
}

func (f fixedProgress) Progress(context.Context, int64) (store.Progress, error) {
	return f.progress, nil
}

func TestStatusSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	interview := testsupport.NewSession(t, f.store, 3)

	if err := f.store.SetQuestions(ctx, interview.ID, []int64{11, 12, 13}); err != nil {
		t.Fatalf("SetQuestions failed: %v", err)
	}
	if err := f.store.RecordAnswer(ctx, interview.ID, 11, f.session(t, interview.ID).CreatedAt); err != nil {
		t.Fatalf("RecordAnswer failed: %v", err)
	}
	if _, err := f.manager.AddViolation(ctx, interview.ID, violation.EventLowAudio, "quiet", ""); err != nil {
		t.Fatalf("AddViolation failed: %v", err)
	}
	if _, err := f.manager.AddViolation(ctx, interview.ID, violation.EventGazeAway, "Looking down", ""); err != nil {
		t.Fatalf("AddViolation failed: %v", err)
	}

	summary, err := f.manager.StatusSummary(ctx, interview.ID)
	if err != nil {
		t.Fatalf("StatusSummary failed: %v", err)
	}
	if summary.Warnings.TotalWarnings != 1 || summary.Warnings.WarningsRemaining != 2 || summary.Warnings.MaxWarnings != 3 {
		t.Fatalf("unexpected warnings block %#v", summary.Warnings)
	}
	if len(summary.Warnings.Violations) != 1 || summary.Warnings.Violations[0].Type != violation.EventGazeAway {
		t.Fatalf("expected only the warning-bearing violation, got %#v", summary.Warnings.Violations)
	}
	if summary.Progress.QuestionsAnswered != 1 || summary.Progress.TotalQuestions != 3 {
		t.Fatalf("unexpected progress %#v", summary.Progress)
	}
	if summary.Progress.CurrentQuestionID == nil || *summary.Progress.CurrentQuestionID != 12 {
		t.Fatalf("expected current question 12, got %v", summary.Progress.CurrentQuestionID)
	}
	if summary.IsSuspended || summary.SuspensionReason != nil {
		t.Fatalf("unexpected suspension fields %#v", summary)
	}
	if summary.Interview.CurrentStatus != string(store.StatusInterviewActive) {
		t.Fatalf("unexpected interview block %#v", summary.Interview)
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		t.Fatalf("marshal summary: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	for _, key := range []string{"interview", "timeline", "warnings", "progress", "is_suspended", "suspension_reason", "suspended_at", "last_activity"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("summary missing %q", key)
		}
	}
}

func TestStatusSummaryWarningsRemainingNeverNegative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	interview := testsupport.NewSession(t, f.store, 1)

	for i := 0; i < 3; i++ {
		if _, err := f.manager.AddViolation(ctx, interview.ID, violation.EventGazeAway, "", ""); err != nil {
			t.Fatalf("AddViolation failed: %v", err)
		}
	}
	summary, err := f.manager.StatusSummary(ctx, interview.ID)
	if err != nil {
		t.Fatalf("StatusSummary failed: %v", err)
	}
	if summary.Warnings.WarningsRemaining != 0 || summary.Warnings.TotalWarnings != 3 {
		t.Fatalf("unexpected warnings %#v", summary.Warnings)
	}
	if !summary.IsSuspended || summary.SuspensionReason == nil || *summary.SuspensionReason != "Exceeded maximum warnings (1)" {
		t.Fatalf("unexpected suspension %#v", summary)
	}
	if len(summary.Timeline) != 1 || summary.Timeline[0].Status != string(store.StatusSuspended) {
		t.Fatalf("unexpected timeline %#v", summary.Timeline)
	}
}

func TestStatusSummaryUsesProgressSource(t *testing.T) {
	f := newFixture(t)
	current := int64(42)
	manager := proctoring.NewManager(f.store, nil, logging.NewNop(),
		proctoring.WithProgressSource(fixedProgress{progress: store.Progress{Answered: 4, Total: 9, CurrentQuestionID: &current}}))
	interview := testsupport.NewSession(t, f.store, 3)

	summary, err := manager.StatusSummary(context.Background(), interview.ID)
	if err != nil {
		t.Fatalf("StatusSummary failed: %v", err)
	}
	if summary.Progress.QuestionsAnswered != 4 || *summary.Progress.CurrentQuestionID != 42 {
		t.Fatalf("unexpected progress %#v", summary.Progress)
	}
}

func TestStatusSummaryNotFound(t *testing.T) {
	f := newFixture(t)
	if _, err := f.manager.StatusSummary(context.Background(), 404); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
