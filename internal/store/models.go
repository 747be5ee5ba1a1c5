package store

import (
	"errors"
	"strings"
	"time"

	"proctor/internal/violation"
)

// ErrNotFound is returned when a requested interview session does not exist.
var ErrNotFound = errors.New("interview session not found")

// CandidateStatus is the candidate lifecycle position of an interview session.
type CandidateStatus string

const (
	StatusInvited             CandidateStatus = "invited"
	StatusLinkAccessed        CandidateStatus = "link_accessed"
	StatusAuthenticated       CandidateStatus = "authenticated"
	StatusSelfieUploaded      CandidateStatus = "selfie_uploaded"
	StatusEnrollmentStarted   CandidateStatus = "enrollment_started"
	StatusEnrollmentCompleted CandidateStatus = "enrollment_completed"
	StatusInterviewActive     CandidateStatus = "interview_active"
	StatusInterviewPaused     CandidateStatus = "interview_paused"
	StatusInterviewCompleted  CandidateStatus = "interview_completed"
	StatusSuspended           CandidateStatus = "suspended"
)

var allStatuses = []CandidateStatus{
	StatusInvited,
	StatusLinkAccessed,
	StatusAuthenticated,
	StatusSelfieUploaded,
	StatusEnrollmentStarted,
	StatusEnrollmentCompleted,
	StatusInterviewActive,
	StatusInterviewPaused,
	StatusInterviewCompleted,
	StatusSuspended,
}

var statusSet = func() map[CandidateStatus]struct{} {
	set := make(map[CandidateStatus]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the lifecycle in order, ending with the terminal state.
func AllStatuses() []CandidateStatus {
	out := make([]CandidateStatus, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus accepts either the stored form (interview_active) or the
// upper-case enum name (INTERVIEW_ACTIVE).
func ParseStatus(value string) (CandidateStatus, bool) {
	status := CandidateStatus(strings.ToLower(strings.TrimSpace(value)))
	_, ok := statusSet[status]
	return status, ok
}

// InterviewSession is the persisted interview row. Only the proctoring
// columns are written by this package after creation.
type InterviewSession struct {
	ID               int64           `json:"id"`
	AccessToken      string          `json:"access_token"`
	CandidateName    string          `json:"candidate_name,omitempty"`
	CurrentStatus    CandidateStatus `json:"current_status"`
	WarningCount     int             `json:"warning_count"`
	MaxWarnings      int             `json:"max_warnings"`
	IsSuspended      bool            `json:"is_suspended"`
	SuspensionReason string          `json:"suspension_reason,omitempty"`
	SuspendedAt      *time.Time      `json:"suspended_at,omitempty"`
	LastActivity     *time.Time      `json:"last_activity,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// NewSession describes an interview session to create.
type NewSession struct {
	AccessToken   string
	CandidateName string
	MaxWarnings   int
	Status        CandidateStatus
}

// ViolationEvent is an immutable proctoring event.
type ViolationEvent struct {
	ID               string
	InterviewID      int64
	EventType        string
	Severity         violation.Severity
	Details          string
	TriggeredWarning bool
	Timestamp        time.Time
}

// TimelineEntry is one immutable status change.
type TimelineEntry struct {
	ID          int64
	InterviewID int64
	Status      CandidateStatus
	Timestamp   time.Time
	ContextData map[string]any
}

// Progress captures question answering progress for an interview.
type Progress struct {
	Answered          int
	Total             int
	CurrentQuestionID *int64
}
