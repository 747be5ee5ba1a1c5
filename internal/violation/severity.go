package violation

import (
	"fmt"
	"strings"
)

// Severity ranks a proctoring event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Known event types.
const (
	EventMultipleFaces           = "multiple_faces"
	EventTabSwitch               = "tab_switch"
	EventFaceNotDetectedExtended = "face_not_detected_extended"
	EventUnauthorizedDevice      = "unauthorized_device"
	EventUnauthorizedPerson      = "unauthorized_person"
	EventGazeAway                = "gaze_away"
	EventBriefDisconnect         = "brief_disconnect"
	EventLowAudio                = "low_audio"
	EventConnectionUnstable      = "connection_unstable"
)

var severityTable = map[string]Severity{
	EventMultipleFaces:           SeverityCritical,
	EventTabSwitch:               SeverityCritical,
	EventFaceNotDetectedExtended: SeverityCritical,
	EventUnauthorizedDevice:      SeverityCritical,
	EventGazeAway:                SeverityWarning,
	EventBriefDisconnect:         SeverityWarning,
	EventLowAudio:                SeverityInfo,
	EventConnectionUnstable:      SeverityInfo,
}

// SeverityFor returns the table severity of an event type, defaulting to info.
func SeverityFor(eventType string) Severity {
	if sev, ok := severityTable[strings.ToLower(strings.TrimSpace(eventType))]; ok {
		return sev
	}
	return SeverityInfo
}

// Resolve picks the forced severity when set, otherwise the table value.
func Resolve(eventType string, forced Severity) Severity {
	if forced != "" {
		return forced
	}
	return SeverityFor(eventType)
}

// ParseSeverity validates a user supplied severity. The empty string is
// accepted and means "use the table".
func ParseSeverity(value string) (Severity, error) {
	switch Severity(strings.ToLower(strings.TrimSpace(value))) {
	case "":
		return "", nil
	case SeverityInfo:
		return SeverityInfo, nil
	case SeverityWarning:
		return SeverityWarning, nil
	case SeverityCritical:
		return SeverityCritical, nil
	default:
		return "", fmt.Errorf("unknown severity %q", value)
	}
}
