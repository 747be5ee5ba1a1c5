package proctoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"proctor/internal/broadcast"
	"proctor/internal/logging"
	"proctor/internal/metrics"
	"proctor/internal/store"
	"proctor/internal/violation"
)

// Suspension metadata reasons.
const (
	ReasonMaxWarnings = "max_warnings_exceeded"
)

// Notifier delivers broadcast messages without blocking the caller.
type Notifier interface {
	Send(msg broadcast.Message)
}

// ProgressSource reports question progress for the status summary.
type ProgressSource interface {
	Progress(ctx context.Context, interviewID int64) (store.Progress, error)
}

type nopNotifier struct{}

func (nopNotifier) Send(broadcast.Message) {}

// Option customizes a Manager.
type Option func(*Manager)

// WithProgressSource overrides where question progress comes from. The store
// is used by default.
func WithProgressSource(src ProgressSource) Option {
	return func(m *Manager) {
		if src != nil {
			m.progress = src
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager is the status and violation state machine.
type Manager struct {
	store    *store.Store
	notifier Notifier
	progress ProgressSource
	logger   *slog.Logger
	locks    *keyedMutex
	now      func() time.Time
}

// NewManager wires the state machine to its store. A nil notifier discards
// broadcasts.
func NewManager(st *store.Store, notifier Notifier, logger *slog.Logger, opts ...Option) *Manager {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	m := &Manager{
		store:    st,
		notifier: notifier,
		progress: st,
		logger:   logging.NewComponentLogger(logger, "proctoring"),
		locks:    newKeyedMutex(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RecordStatusChange appends a timeline entry and moves the session to
// status. Any status may follow any other. Entering SUSPENDED marks the
// session suspended; leaving it reinstates the session, keeping the last
// suspension reason and time for the record.
func (m *Manager) RecordStatusChange(ctx context.Context, interviewID int64, status store.CandidateStatus, metadata map[string]any) (store.TimelineEntry, error) {
	if _, ok := store.ParseStatus(string(status)); !ok {
		return store.TimelineEntry{}, fmt.Errorf("unknown status %q", status)
	}
	unlock := m.locks.Lock(interviewID)
	defer unlock()

	now := m.now()
	var entry store.TimelineEntry
	err := m.store.WithTx(ctx, func(tx *store.Tx) error {
		session, err := tx.GetSession(ctx, interviewID)
		if err != nil {
			return err
		}
		switch {
		case status == store.StatusSuspended && !session.IsSuspended:
			session.IsSuspended = true
			session.SuspensionReason = reasonFromMetadata(metadata)
			session.SuspendedAt = &now
		case status != store.StatusSuspended && session.IsSuspended:
			session.IsSuspended = false
		}
		e, err := appendStatus(ctx, tx, session, status, metadata, now)
		if err != nil {
			return err
		}
		entry = e
		return tx.UpdateSessionState(ctx, session)
	})
	if err != nil {
		return store.TimelineEntry{}, fmt.Errorf("record status change: %w", err)
	}

	m.logger.Info("status change recorded",
		logging.Int64(logging.FieldInterviewID, interviewID),
		logging.String(logging.FieldStatus, string(status)),
	)
	m.notifier.Send(broadcast.StatusChangeMessage(interviewID, string(status), entry.ContextData, entry.Timestamp))
	return entry, nil
}

// AddViolation records a violation and applies the escalation policy:
// critical events suspend immediately, warning events count toward the
// interview's limit and suspend once it is reached, info events are only
// recorded. A non-empty forced severity replaces the table lookup.
//
// Sessions that are already suspended still record and count events but
// are not suspended a second time.
func (m *Manager) AddViolation(ctx context.Context, interviewID int64, eventType, details string, forced violation.Severity) (store.ViolationEvent, error) {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return store.ViolationEvent{}, errors.New("event type is required")
	}
	severity := violation.Resolve(eventType, forced)

	unlock := m.locks.Lock(interviewID)
	defer unlock()

	now := m.now()
	event := store.ViolationEvent{
		InterviewID: interviewID,
		EventType:   eventType,
		Severity:    severity,
		Details:     details,
		Timestamp:   now,
	}
	var suspension *store.TimelineEntry
	var trigger string

	err := m.store.WithTx(ctx, func(tx *store.Tx) error {
		// WithTx reruns the closure when the database is busy.
		suspension, trigger = nil, ""
		event.TriggeredWarning = false

		session, err := tx.GetSession(ctx, interviewID)
		if err != nil {
			return err
		}
		wasSuspended := session.IsSuspended

		var metadata map[string]any
		switch severity {
		case violation.SeverityCritical:
			event.TriggeredWarning = true
			if !wasSuspended {
				trigger = metrics.TriggerCritical
				suspend(session, "Critical violation: "+eventType, now)
				metadata = map[string]any{
					"reason":         eventType,
					"details":        details,
					"auto_suspended": true,
				}
			}
		case violation.SeverityWarning:
			event.TriggeredWarning = true
			session.WarningCount++
			if !wasSuspended && session.WarningCount >= session.MaxWarnings {
				trigger = metrics.TriggerMaxWarnings
				suspend(session, fmt.Sprintf("Exceeded maximum warnings (%d)", session.MaxWarnings), now)
				metadata = map[string]any{
					"reason":         ReasonMaxWarnings,
					"warning_count":  session.WarningCount,
					"last_violation": eventType,
				}
			}
		}

		if err := tx.InsertViolation(ctx, &event); err != nil {
			return err
		}
		if metadata != nil {
			entry, err := appendStatus(ctx, tx, session, store.StatusSuspended, metadata, now)
			if err != nil {
				return err
			}
			suspension = &entry
		}
		if event.TriggeredWarning {
			return tx.UpdateSessionState(ctx, session)
		}
		return nil
	})
	if err != nil {
		return store.ViolationEvent{}, fmt.Errorf("add violation: %w", err)
	}

	metrics.RecordViolation(string(severity))
	m.logger.Info("violation recorded",
		logging.Int64(logging.FieldInterviewID, interviewID),
		logging.String(logging.FieldEventType, eventType),
		logging.String(logging.FieldSeverity, string(severity)),
		logging.Bool("triggered_warning", event.TriggeredWarning),
	)
	m.notifier.Send(broadcast.ViolationMessage(interviewID, eventType, string(severity), details, event.Timestamp))

	if suspension != nil {
		metrics.RecordSuspension(trigger)
		m.logger.Warn("interview suspended",
			logging.Int64(logging.FieldInterviewID, interviewID),
			logging.String(logging.FieldEventType, eventType),
			logging.Alert("suspended"),
		)
		m.notifier.Send(broadcast.StatusChangeMessage(interviewID, string(store.StatusSuspended), suspension.ContextData, suspension.Timestamp))
	}
	return event, nil
}

// CheckAndSuspend suspends the interview for reason. It returns false without
// changing anything when the interview is already suspended.
func (m *Manager) CheckAndSuspend(ctx context.Context, interviewID int64, reason string) (bool, error) {
	unlock := m.locks.Lock(interviewID)
	defer unlock()

	now := m.now()
	var entry store.TimelineEntry
	suspended := false
	err := m.store.WithTx(ctx, func(tx *store.Tx) error {
		entry, suspended = store.TimelineEntry{}, false

		session, err := tx.GetSession(ctx, interviewID)
		if err != nil {
			return err
		}
		if session.IsSuspended {
			return nil
		}
		suspend(session, reason, now)
		e, err := appendStatus(ctx, tx, session, store.StatusSuspended, map[string]any{
			"reason":            reason,
			"manual_suspension": true,
		}, now)
		if err != nil {
			return err
		}
		entry = e
		suspended = true
		return tx.UpdateSessionState(ctx, session)
	})
	if err != nil {
		return false, fmt.Errorf("suspend interview: %w", err)
	}
	if !suspended {
		m.logger.Warn("interview already suspended", logging.Int64(logging.FieldInterviewID, interviewID))
		return false, nil
	}

	metrics.RecordSuspension(metrics.TriggerManual)
	m.logger.Info("interview suspended manually",
		logging.Int64(logging.FieldInterviewID, interviewID),
		logging.String("reason", reason),
	)
	m.notifier.Send(broadcast.StatusChangeMessage(interviewID, string(store.StatusSuspended), entry.ContextData, entry.Timestamp))
	return true, nil
}

// TouchActivity records candidate activity without changing status.
func (m *Manager) TouchActivity(ctx context.Context, interviewID int64) error {
	if err := m.store.TouchActivity(ctx, interviewID, m.now()); err != nil {
		return fmt.Errorf("touch activity: %w", err)
	}
	return nil
}

// IsSuspended reports whether the interview is currently suspended.
func (m *Manager) IsSuspended(ctx context.Context, interviewID int64) (bool, error) {
	session, err := m.store.GetSession(ctx, interviewID)
	if err != nil {
		return false, err
	}
	return session.IsSuspended, nil
}

func suspend(session *store.InterviewSession, reason string, now time.Time) {
	session.IsSuspended = true
	session.SuspensionReason = reason
	session.SuspendedAt = &now
}

// appendStatus writes a timeline entry and updates the in-memory session to
// match. The caller persists the session.
func appendStatus(ctx context.Context, tx *store.Tx, session *store.InterviewSession, status store.CandidateStatus, metadata map[string]any, now time.Time) (store.TimelineEntry, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	entry := store.TimelineEntry{
		InterviewID: session.ID,
		Status:      status,
		Timestamp:   now,
		ContextData: metadata,
	}
	if err := tx.AppendTimeline(ctx, &entry); err != nil {
		return store.TimelineEntry{}, err
	}
	session.CurrentStatus = status
	session.LastActivity = &now
	return entry, nil
}

func reasonFromMetadata(metadata map[string]any) string {
	if reason, ok := metadata["reason"].(string); ok && strings.TrimSpace(reason) != "" {
		return reason
	}
	return "Status set to suspended"
}
