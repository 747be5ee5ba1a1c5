// Package broadcast fans proctoring events out to observers. Delivery is
// fire-and-forget: a failed or slow observer never affects the state change
// that produced the message.
package broadcast

import (
	"context"
	"errors"
	"time"
)

// Message types.
const (
	TypeViolation    = "violation"
	TypeStatusChange = "status_change"
)

// Message is the wire envelope sent to observers.
type Message struct {
	Type        string         `json:"type"`
	InterviewID int64          `json:"interview_id"`
	Data        map[string]any `json:"data"`
}

// ViolationMessage builds the envelope for a recorded violation.
func ViolationMessage(interviewID int64, eventType, severity, details string, at time.Time) Message {
	return Message{
		Type:        TypeViolation,
		InterviewID: interviewID,
		Data: map[string]any{
			"type":      eventType,
			"severity":  severity,
			"details":   details,
			"timestamp": at.UTC().Format(time.RFC3339Nano),
		},
	}
}

// StatusChangeMessage builds the envelope for a status transition.
func StatusChangeMessage(interviewID int64, status string, metadata map[string]any, at time.Time) Message {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Message{
		Type:        TypeStatusChange,
		InterviewID: interviewID,
		Data: map[string]any{
			"status":    status,
			"metadata":  metadata,
			"timestamp": at.UTC().Format(time.RFC3339Nano),
		},
	}
}

// Broadcaster delivers messages to observers.
type Broadcaster interface {
	Publish(ctx context.Context, msg Message) error
}

// Nop discards every message.
type Nop struct{}

// Publish implements Broadcaster.
func (Nop) Publish(context.Context, Message) error { return nil }

// Multi publishes to every broadcaster and joins their errors.
type Multi []Broadcaster

// Publish implements Broadcaster.
func (m Multi) Publish(ctx context.Context, msg Message) error {
	var errs []error
	for _, b := range m {
		if b == nil {
			continue
		}
		if err := b.Publish(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
