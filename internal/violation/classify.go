package violation

import "strings"

// Label is the classifier output for one analyzed frame.
type Label string

const (
	LabelNone               Label = "NONE"
	LabelMultipleFaces      Label = "MULTIPLE_FACES"
	LabelNoFaceDetected     Label = "NO_FACE_DETECTED"
	LabelUnauthorizedPerson Label = "UNAUTHORIZED_PERSON"
	LabelGazeAway           Label = "GAZE_AWAY"
)

// GazeWarningMarker is the substring gaze analyzers embed in a status that
// counts as looking away.
const GazeWarningMarker = "WARNING"

// Classify maps frame signals to a label. The first matching rule wins:
// several faces, no face, one unauthorized face, gaze warning.
func Classify(faceCount int, authorized bool, gazeStatus string) Label {
	switch {
	case faceCount > 1:
		return LabelMultipleFaces
	case faceCount == 0:
		return LabelNoFaceDetected
	case faceCount == 1 && !authorized:
		return LabelUnauthorizedPerson
	case strings.Contains(strings.ToUpper(gazeStatus), GazeWarningMarker):
		return LabelGazeAway
	default:
		return LabelNone
	}
}

// ClassifyGaze applies only the gaze rule. It serves callers that have no
// face signal for the frame.
func ClassifyGaze(gazeStatus string) Label {
	if strings.Contains(strings.ToUpper(gazeStatus), GazeWarningMarker) {
		return LabelGazeAway
	}
	return LabelNone
}

// EventType returns the persisted event type for a label.
func (l Label) EventType() string {
	switch l {
	case LabelMultipleFaces:
		return EventMultipleFaces
	case LabelNoFaceDetected:
		return EventFaceNotDetectedExtended
	case LabelUnauthorizedPerson:
		return EventUnauthorizedPerson
	case LabelGazeAway:
		return EventGazeAway
	default:
		return ""
	}
}

// Severity returns the severity a label carries.
func (l Label) Severity() Severity {
	switch l {
	case LabelMultipleFaces, LabelNoFaceDetected, LabelUnauthorizedPerson:
		return SeverityCritical
	case LabelGazeAway:
		return SeverityWarning
	default:
		return ""
	}
}

// Warning is the human readable banner shown to candidates for a label.
func (l Label) Warning() string {
	switch l {
	case LabelMultipleFaces:
		return "MULTIPLE FACES DETECTED"
	case LabelNoFaceDetected:
		return "NO FACE DETECTED"
	case LabelUnauthorizedPerson:
		return "SECURITY ALERT: UNAUTHORIZED PERSON"
	default:
		return ""
	}
}
