package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CreateSession inserts a new interview session and returns it.
func (s *Store) CreateSession(ctx context.Context, in NewSession) (*InterviewSession, error) {
	ctx = ensureContext(ctx)
	token := strings.TrimSpace(in.AccessToken)
	if token == "" {
		token = uuid.NewString()
	}
	status := in.Status
	if status == "" {
		status = StatusInvited
	}
	if _, ok := statusSet[status]; !ok {
		return nil, fmt.Errorf("unknown status %q", status)
	}
	maxWarnings := in.MaxWarnings
	if maxWarnings <= 0 {
		maxWarnings = 3
	}
	now := time.Now().UTC()

	res, err := s.execWithRetry(ctx,
		`INSERT INTO interview_sessions (access_token, candidate_name, current_status, max_warnings, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		token, nullableString(in.CandidateName), string(status), maxWarnings, formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert interview session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("session id: %w", err)
	}
	return s.GetSession(ctx, id)
}

// GetSession fetches one session by id. It returns ErrNotFound when absent.
func (s *Store) GetSession(ctx context.Context, id int64) (*InterviewSession, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM interview_sessions WHERE id = ?", id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %d: %w", id, err)
	}
	return session, nil
}

// FindSessionByToken resolves a candidate access token.
func (s *Store) FindSessionByToken(ctx context.Context, token string) (*InterviewSession, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM interview_sessions WHERE access_token = ?", strings.TrimSpace(token))
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find session by token: %w", err)
	}
	return session, nil
}

// ListSessions returns sessions ordered by id, optionally filtered by status.
func (s *Store) ListSessions(ctx context.Context, statuses ...CandidateStatus) ([]*InterviewSession, error) {
	ctx = ensureContext(ctx)
	query := "SELECT " + sessionColumns + " FROM interview_sessions"
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += " WHERE current_status IN (" + makePlaceholders(len(statuses)) + ")"
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*InterviewSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// TouchActivity records candidate activity at the given time.
func (s *Store) TouchActivity(ctx context.Context, id int64, at time.Time) error {
	res, err := s.execWithRetry(ctx, "UPDATE interview_sessions SET last_activity = ? WHERE id = ?", formatTime(at), id)
	if err != nil {
		return fmt.Errorf("touch activity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
