package store

import (
	"context"
	"fmt"
)

// Timeline returns the status history of an interview, oldest first.
func (s *Store) Timeline(ctx context.Context, interviewID int64) ([]TimelineEntry, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+timelineColumns+" FROM status_timeline WHERE interview_id = ? ORDER BY id", interviewID)
	if err != nil {
		return nil, fmt.Errorf("query timeline: %w", err)
	}
	defer rows.Close()

	var entries []TimelineEntry
	for rows.Next() {
		entry, err := scanTimeline(rows)
		if err != nil {
			return nil, fmt.Errorf("scan timeline: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Violations returns recorded events for an interview, oldest first.
// When onlyTriggered is set, events that did not count as warnings are skipped.
func (s *Store) Violations(ctx context.Context, interviewID int64, onlyTriggered bool) ([]ViolationEvent, error) {
	ctx = ensureContext(ctx)
	query := "SELECT " + violationColumns + " FROM violation_events WHERE interview_id = ?"
	if onlyTriggered {
		query += " AND triggered_warning = 1"
	}
	query += " ORDER BY timestamp, rowid"

	rows, err := s.db.QueryContext(ctx, query, interviewID)
	if err != nil {
		return nil, fmt.Errorf("query violations: %w", err)
	}
	defer rows.Close()

	var events []ViolationEvent
	for rows.Next() {
		event, err := scanViolation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan violation: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
