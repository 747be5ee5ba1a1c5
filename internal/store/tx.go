package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Tx exposes the writes that must commit together when a proctoring event
// changes session state.
type Tx struct {
	tx *sql.Tx
}

// WithTx runs fn inside a write transaction. The transaction commits when fn
// returns nil and rolls back otherwise. Busy errors on begin or commit are retried.
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		sqlTx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		if err := fn(&Tx{tx: sqlTx}); err != nil {
			_ = sqlTx.Rollback()
			return err
		}
		if err := sqlTx.Commit(); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// GetSession reads a session inside the transaction.
func (t *Tx) GetSession(ctx context.Context, id int64) (*InterviewSession, error) {
	row := t.tx.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM interview_sessions WHERE id = ?", id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %d: %w", id, err)
	}
	return session, nil
}

// UpdateSessionState writes the proctoring columns of the session.
func (t *Tx) UpdateSessionState(ctx context.Context, session *InterviewSession) error {
	if session == nil {
		return errors.New("nil session")
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE interview_sessions
		 SET current_status = ?, warning_count = ?, max_warnings = ?, is_suspended = ?,
		     suspension_reason = ?, suspended_at = ?, last_activity = ?
		 WHERE id = ?`,
		string(session.CurrentStatus),
		session.WarningCount,
		session.MaxWarnings,
		boolToInt(session.IsSuspended),
		nullableString(session.SuspensionReason),
		nullableTime(session.SuspendedAt),
		nullableTime(session.LastActivity),
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("update session state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertViolation appends a violation event. Missing ids and timestamps are filled in.
func (t *Tx) InsertViolation(ctx context.Context, event *ViolationEvent) error {
	if event == nil {
		return errors.New("nil violation event")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO violation_events (id, interview_id, event_type, severity, details, triggered_warning, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.InterviewID,
		event.EventType,
		string(event.Severity),
		nullableString(event.Details),
		boolToInt(event.TriggeredWarning),
		formatTime(event.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("insert violation: %w", err)
	}
	return nil
}

// AppendTimeline appends a status change entry.
func (t *Tx) AppendTimeline(ctx context.Context, entry *TimelineEntry) error {
	if entry == nil {
		return errors.New("nil timeline entry")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	contextData := entry.ContextData
	if contextData == nil {
		contextData = map[string]any{}
	}
	payload, err := json.Marshal(contextData)
	if err != nil {
		return fmt.Errorf("encode timeline context: %w", err)
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO status_timeline (interview_id, status, timestamp, context_data) VALUES (?, ?, ?, ?)`,
		entry.InterviewID, string(entry.Status), formatTime(entry.Timestamp), string(payload),
	)
	if err != nil {
		return fmt.Errorf("append timeline: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}
