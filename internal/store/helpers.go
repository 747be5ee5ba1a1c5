package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"proctor/internal/violation"
)

const sessionColumns = "id, access_token, candidate_name, current_status, warning_count, max_warnings, is_suspended, suspension_reason, suspended_at, last_activity, created_at"

const violationColumns = "id, interview_id, event_type, severity, details, triggered_warning, timestamp"

const timelineColumns = "id, interview_id, status, timestamp, context_data"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(scanner rowScanner) (*InterviewSession, error) {
	var (
		session       InterviewSession
		candidateName sql.NullString
		statusStr     string
		suspended     int64
		reason        sql.NullString
		suspendedRaw  sql.NullString
		activityRaw   sql.NullString
		createdRaw    string
	)
	if err := scanner.Scan(
		&session.ID,
		&session.AccessToken,
		&candidateName,
		&statusStr,
		&session.WarningCount,
		&session.MaxWarnings,
		&suspended,
		&reason,
		&suspendedRaw,
		&activityRaw,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	session.CandidateName = candidateName.String
	session.CurrentStatus = CandidateStatus(statusStr)
	session.IsSuspended = suspended != 0
	session.SuspensionReason = reason.String
	session.SuspendedAt = parseNullableTime(suspendedRaw)
	session.LastActivity = parseNullableTime(activityRaw)
	if created, err := parseTimeString(createdRaw); err == nil {
		session.CreatedAt = created
	}
	return &session, nil
}

func scanViolation(scanner rowScanner) (ViolationEvent, error) {
	var (
		event     ViolationEvent
		severity  string
		details   sql.NullString
		triggered int64
		tsRaw     string
	)
	if err := scanner.Scan(&event.ID, &event.InterviewID, &event.EventType, &severity, &details, &triggered, &tsRaw); err != nil {
		return ViolationEvent{}, err
	}
	event.Severity = violation.Severity(severity)
	event.Details = details.String
	event.TriggeredWarning = triggered != 0
	if ts, err := parseTimeString(tsRaw); err == nil {
		event.Timestamp = ts
	}
	return event, nil
}

func scanTimeline(scanner rowScanner) (TimelineEntry, error) {
	var (
		entry     TimelineEntry
		statusStr string
		tsRaw     string
		context   string
	)
	if err := scanner.Scan(&entry.ID, &entry.InterviewID, &statusStr, &tsRaw, &context); err != nil {
		return TimelineEntry{}, err
	}
	entry.Status = CandidateStatus(statusStr)
	if ts, err := parseTimeString(tsRaw); err == nil {
		entry.Timestamp = ts
	}
	entry.ContextData = map[string]any{}
	if context != "" {
		if err := json.Unmarshal([]byte(context), &entry.ContextData); err != nil {
			return TimelineEntry{}, err
		}
	}
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	ts, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &ts
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
