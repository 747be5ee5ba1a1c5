package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SetQuestions replaces the question list of an interview. Order in the slice
// becomes the sort order.
func (s *Store) SetQuestions(ctx context.Context, interviewID int64, questionIDs []int64) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.tx.ExecContext(ctx, "DELETE FROM interview_questions WHERE interview_id = ?", interviewID); err != nil {
			return fmt.Errorf("clear questions: %w", err)
		}
		for i, qid := range questionIDs {
			if _, err := tx.tx.ExecContext(ctx,
				"INSERT INTO interview_questions (interview_id, question_id, sort_order) VALUES (?, ?, ?)",
				interviewID, qid, i,
			); err != nil {
				return fmt.Errorf("insert question %d: %w", qid, err)
			}
		}
		return nil
	})
}

// RecordAnswer marks a question as answered. Repeated answers keep the first timestamp.
func (s *Store) RecordAnswer(ctx context.Context, interviewID, questionID int64, at time.Time) error {
	_, err := s.execWithRetry(ctx,
		"INSERT OR IGNORE INTO answers (interview_id, question_id, answered_at) VALUES (?, ?, ?)",
		interviewID, questionID, formatTime(at),
	)
	if err != nil {
		return fmt.Errorf("record answer: %w", err)
	}
	return nil
}

// Progress reports answered and total questions, plus the first unanswered
// question in sort order.
func (s *Store) Progress(ctx context.Context, interviewID int64) (Progress, error) {
	ctx = ensureContext(ctx)
	var progress Progress
	row := s.db.QueryRowContext(ctx,
		`SELECT
		   (SELECT COUNT(1) FROM interview_questions WHERE interview_id = ?),
		   (SELECT COUNT(1) FROM answers a
		      JOIN interview_questions q ON q.interview_id = a.interview_id AND q.question_id = a.question_id
		     WHERE a.interview_id = ?)`,
		interviewID, interviewID,
	)
	if err := row.Scan(&progress.Total, &progress.Answered); err != nil {
		return Progress{}, fmt.Errorf("count progress: %w", err)
	}

	var current int64
	err := s.db.QueryRowContext(ctx,
		`SELECT q.question_id FROM interview_questions q
		  WHERE q.interview_id = ?
		    AND NOT EXISTS (SELECT 1 FROM answers a WHERE a.interview_id = q.interview_id AND a.question_id = q.question_id)
		  ORDER BY q.sort_order, q.question_id
		  LIMIT 1`,
		interviewID,
	).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return Progress{}, fmt.Errorf("current question: %w", err)
	default:
		progress.CurrentQuestionID = &current
	}
	return progress, nil
}
