package proctoring_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"proctor/internal/broadcast"
	"proctor/internal/logging"
	"proctor/internal/proctoring"
	"proctor/internal/store"
	"proctor/internal/testsupport"
	"proctor/internal/violation"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []broadcast.Message
}

func (r *recordingNotifier) Send(msg broadcast.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recordingNotifier) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.msgs))
	for _, msg := range r.msgs {
		out = append(out, msg.Type)
	}
	return out
}

type fixture struct {
	store    *store.Store
	manager  *proctoring.Manager
	notifier *recordingNotifier
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	notifier := &recordingNotifier{}
	return fixture{
		store:    st,
		manager:  proctoring.NewManager(st, notifier, logging.NewNop()),
		notifier: notifier,
	}
}

func (f fixture) session(t *testing.T, id int64) *store.InterviewSession {
	t.Helper()
	session, err := f.store.GetSession(context.Background(), id)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	return session
}

func (f fixture) timeline(t *testing.T, id int64) []store.TimelineEntry {
	t.Helper()
	entries, err := f.store.Timeline(context.Background(), id)
	if err != nil {
		t.Fatalf("Timeline failed: %v", err)
	}
	return entries
}

func TestWarningsAccumulateUntilSuspension(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	interview := testsupport.NewSession(t, f.store, 2)

	event, err := f.manager.AddViolation(ctx, interview.ID, violation.EventGazeAway, "Looking left", "")
	if err != nil {
		t.Fatalf("AddViolation failed: %v", err)
	}
	if event.Severity != violation.SeverityWarning || !event.TriggeredWarning {
		t.Fatalf("unexpected event %#v", event)
	}
	session := f.session(t, interview.ID)
	if session.WarningCount != 1 || session.IsSuspended {
		t.Fatalf("expected one warning and no suspension, got %#v", session)
	}

	if _, err := f.manager.AddViolation(ctx, interview.ID, violation.EventGazeAway, "Looking left", ""); err != nil {
		t.Fatalf("AddViolation failed: %v", err)
	}
	session = f.session(t, interview.ID)
	if session.WarningCount != 2 || !session.IsSuspended {
		t.Fatalf("expected suspension after second warning, got %#v", session)
	}
	if session.CurrentStatus != store.StatusSuspended {
		t.Fatalf("expected suspended status, got %s", session.CurrentStatus)
	}
	if session.SuspensionReason != "Exceeded maximum warnings (2)" {
		t.Fatalf("unexpected reason %q", session.SuspensionReason)
	}
	if session.SuspendedAt == nil {
		t.Fatal("expected suspended_at to be set")
	}

	entries := f.timeline(t, interview.ID)
	if len(entries) != 1 {
		t.Fatalf("expected one timeline entry, got %d", len(entries))
	}
	meta := entries[0].ContextData
	if entries[0].Status != store.StatusSuspended || meta["reason"] != proctoring.ReasonMaxWarnings {
		t.Fatalf("unexpected timeline entry %#v", entries[0])
	}
	if meta["warning_count"] != float64(2) || meta["last_violation"] != violation.EventGazeAway {
		t.Fatalf("unexpected suspension metadata %#v", meta)
	}

	want := []string{broadcast.TypeViolation, broadcast.TypeViolation, broadcast.TypeStatusChange}
	if got := f.notifier.types(); !equalStrings(got, want) {
		t.Fatalf("expected broadcasts %v, got %v", want, got)
	}
}

func TestCriticalViolationSuspendsImmediately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	interview := testsupport.NewSession(t, f.store, 3)

	event, err := f.manager.AddViolation(ctx, interview.ID, violation.EventMultipleFaces, "Faces: 2", "")
	if err != nil {
		t.Fatalf("AddViolation failed: %v", err)
	}
	if event.Severity != violation.SeverityCritical || !event.TriggeredWarning {
		t.Fatalf("unexpected event %#v", event)
	}

	session := f.session(t, interview.ID)
	if !session.IsSuspended || session.SuspensionReason != "Critical violation: multiple_faces" {
		t.Fatalf("expected critical suspension, got %#v", session)
	}
	if session.WarningCount != 0 {
		t.Fatalf("critical violations must not count as warnings, got %d", session.WarningCount)
	}

	entries := f.timeline(t, interview.ID)
	if len(entries) != 1 {
		t.Fatalf("expected one timeline entry, got %d", len(entries))
	}
	meta := entries[0].ContextData
	if meta["reason"] != violation.EventMultipleFaces || meta["details"] != "Faces: 2" || meta["auto_suspended"] != true {
		t.Fatalf("unexpected metadata %#v", meta)
	}

	want := []string{broadcast.TypeViolation, broadcast.TypeStatusChange}
	if got := f.notifier.types(); !equalStrings(got, want) {
		t.Fatalf("expected broadcasts %v, got %v", want, got)
	}
}

func TestInfoViolationsOnlyRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	interview := testsupport.NewSession(t, f.store, 3)

	for i := 0; i < 5; i++ {
		event, err := f.manager.AddViolation(ctx, interview.ID, violation.EventLowAudio, "", "")
		if err != nil {
			t.Fatalf("AddViolation failed: %v", err)
		}
		if event.TriggeredWarning {
			t.Fatal("info events must not trigger warnings")
		}
	}

	session := f.session(t, interview.ID)
	if session.WarningCount != 0 || session.IsSuspended {
		t.Fatalf("expected untouched session, got %#v", session)
	}
	events, err := f.store.Violations(ctx, interview.ID, false)
	if err != nil {
		t.Fatalf("Violations failed: %v", err)
	}
	if len(events) != 5 {
		t.Fatalf("expected 5 recorded events, got %d", len(events))
	}
	if len(f.timeline(t, interview.ID)) != 0 {
		t.Fatal("expected no timeline entries")
	}
}

func TestUnknownEventTypeDefaultsToInfo(t *testing.T) {
	f := newFixture(t)
	interview := testsupport.NewSession(t, f.store, 3)

	event, err := f.manager.AddViolation(context.Background(), interview.ID, "screen_share_paused", "", "")
	if err != nil {
		t.Fatalf("AddViolation failed: %v", err)
	}
	if event.Severity != violation.SeverityInfo {
		t.Fatalf("expected info severity, got %s", event.Severity)
	}
}

func TestForcedSeverityOverridesTable(t *testing.T) {
	f := newFixture(t)
	interview := testsupport.NewSession(t, f.store, 3)

	event, err := f.manager.AddViolation(context.Background(), interview.ID, violation.EventUnauthorizedPerson, "", violation.SeverityCritical)
	if err != nil {
		t.Fatalf("AddViolation failed: %v", err)
	}
	if event.Severity != violation.SeverityCritical {
		t.Fatalf("expected forced critical, got %s", event.Severity)
	}
	if !f.session(t, interview.ID).IsSuspended {
		t.Fatal("expected suspension")
	}
}

func TestSuspendedSessionIsNotSuspendedTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	interview := testsupport.NewSession(t, f.store, 1)

	if _, err := f.manager.AddViolation(ctx, interview.ID, violation.EventTabSwitch, "", ""); err != nil {
		t.Fatalf("AddViolation failed: %v", err)
	}
	first := f.session(t, interview.ID)

	if _, err := f.manager.AddViolation(ctx, interview.ID, violation.EventMultipleFaces, "", ""); err != nil {
		t.Fatalf("AddViolation failed: %v", err)
	}
	if _, err := f.manager.AddViolation(ctx, interview.ID, violation.EventGazeAway, "", ""); err != nil {
		t.Fatalf("AddViolation failed: %v", err)
	}

	session := f.session(t, interview.ID)
	if session.SuspensionReason != first.SuspensionReason || !session.SuspendedAt.Equal(*first.SuspendedAt) {
		t.Fatalf("suspension details changed: %#v", session)
	}
	if session.WarningCount != 1 {
		t.Fatalf("expected warning to be counted, got %d", session.WarningCount)
	}
	if n := len(f.timeline(t, interview.ID)); n != 1 {
		t.Fatalf("expected a single suspension entry, got %d", n)
	}
	events, err := f.store.Violations(ctx, interview.ID, true)
	if err != nil {
		t.Fatalf("Violations failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected all events recorded, got %d", len(events))
	}
}

func TestCheckAndSuspendIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	interview := testsupport.NewSession(t, f.store, 3)

	ok, err := f.manager.CheckAndSuspend(ctx, interview.ID, "Proctor decision")
	if err != nil || !ok {
		t.Fatalf("expected first suspension to succeed, ok=%v err=%v", ok, err)
	}
	ok, err = f.manager.CheckAndSuspend(ctx, interview.ID, "Again")
	if err != nil || ok {
		t.Fatalf("expected second suspension to be refused, ok=%v err=%v", ok, err)
	}

	session := f.session(t, interview.ID)
	if session.SuspensionReason != "Proctor decision" {
		t.Fatalf("unexpected reason %q", session.SuspensionReason)
	}
	entries := f.timeline(t, interview.ID)
	if len(entries) != 1 || entries[0].ContextData["manual_suspension"] != true {
		t.Fatalf("unexpected timeline %#v", entries)
	}
	if got := f.notifier.types(); len(got) != 1 {
		t.Fatalf("expected one broadcast, got %v", got)
	}
}

func TestRecordStatusChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	interview := testsupport.NewSession(t, f.store, 3)

	entry, err := f.manager.RecordStatusChange(ctx, interview.ID, store.StatusInterviewPaused, map[string]any{"by": "candidate"})
	if err != nil {
		t.Fatalf("RecordStatusChange failed: %v", err)
	}
	if entry.ID == 0 || entry.Status != store.StatusInterviewPaused {
		t.Fatalf("unexpected entry %#v", entry)
	}
	session := f.session(t, interview.ID)
	if session.CurrentStatus != store.StatusInterviewPaused || session.LastActivity == nil {
		t.Fatalf("unexpected session %#v", session)
	}

	if _, err := f.manager.RecordStatusChange(ctx, interview.ID, "bogus", nil); err == nil {
		t.Fatal("expected unknown status to be rejected")
	}
	if _, err := f.manager.RecordStatusChange(ctx, 999, store.StatusInterviewActive, nil); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := f.notifier.types(); !equalStrings(got, []string{broadcast.TypeStatusChange}) {
		t.Fatalf("unexpected broadcasts %v", got)
	}
}

func TestStatusChangeKeepsSuspensionFlagConsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	interview := testsupport.NewSession(t, f.store, 3)

	if _, err := f.manager.RecordStatusChange(ctx, interview.ID, store.StatusSuspended, map[string]any{"reason": "admin"}); err != nil {
		t.Fatalf("RecordStatusChange failed: %v", err)
	}
	session := f.session(t, interview.ID)
	if !session.IsSuspended || session.SuspensionReason != "admin" {
		t.Fatalf("expected suspended session, got %#v", session)
	}

	// Transitions are unconstrained; leaving SUSPENDED reinstates the session.
	if _, err := f.manager.RecordStatusChange(ctx, interview.ID, store.StatusInterviewActive, nil); err != nil {
		t.Fatalf("RecordStatusChange failed: %v", err)
	}
	session = f.session(t, interview.ID)
	if session.IsSuspended || session.CurrentStatus != store.StatusInterviewActive {
		t.Fatalf("expected reinstated session, got %#v", session)
	}
	if len(f.timeline(t, interview.ID)) != 2 {
		t.Fatal("expected both transitions in the timeline")
	}
}

func TestConcurrentWarningsAreNotLost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	interview := testsupport.NewSession(t, f.store, 100)
	other := testsupport.NewSession(t, f.store, 100)

	const perInterview = 15
	var wg sync.WaitGroup
	errs := make(chan error, 2*perInterview)
	for i := 0; i < perInterview; i++ {
		for _, id := range []int64{interview.ID, other.ID} {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				_, err := f.manager.AddViolation(ctx, id, violation.EventBriefDisconnect, "", "")
				errs <- err
			}(id)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("AddViolation failed: %v", err)
		}
	}

	for _, id := range []int64{interview.ID, other.ID} {
		if got := f.session(t, id).WarningCount; got != perInterview {
			t.Fatalf("interview %d: expected %d warnings, got %d", id, perInterview, got)
		}
	}
}

func TestTouchActivity(t *testing.T) {
	f := newFixture(t)
	fixed := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	manager := proctoring.NewManager(f.store, nil, logging.NewNop(), proctoring.WithClock(func() time.Time { return fixed }))
	interview := testsupport.NewSession(t, f.store, 3)

	if err := manager.TouchActivity(context.Background(), interview.ID); err != nil {
		t.Fatalf("TouchActivity failed: %v", err)
	}
	session := f.session(t, interview.ID)
	if session.LastActivity == nil || !session.LastActivity.Equal(fixed) {
		t.Fatalf("expected last activity %v, got %v", fixed, session.LastActivity)
	}
	if session.CurrentStatus != store.StatusInterviewActive {
		t.Fatalf("status must not change, got %s", session.CurrentStatus)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
