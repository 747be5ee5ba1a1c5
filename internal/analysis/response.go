package analysis

import (
	"encoding/json"
	"time"

	"proctor/internal/violation"
)

// Response is the ingestion reply for a submitted frame.
type Response struct {
	Authorized *bool    `json:"auth,omitempty"`
	Faces      *int     `json:"faces,omitempty"`
	Gaze       string   `json:"gaze,omitempty"`
	Warning    string   `json:"warning"`
	Box        *[4]int  `json:"box"`
	Confidence *float64 `json:"auth_dist,omitempty"`
}

// MarshalJSON omits the box for bad-frame and initializing replies, which
// carry no face data.
func (r Response) MarshalJSON() ([]byte, error) {
	type wire Response
	if r.Faces == nil {
		return json.Marshal(struct {
			wire
			Box *[4]int `json:"box,omitempty"`
		}{wire: wire(r)})
	}
	return json.Marshal(wire(r))
}

// BadFrameResponse is returned for input that does not decode.
func BadFrameResponse() Response {
	return Response{Warning: WarningBadFrame}
}

// InitializingResponse is returned before any result exists for a session.
func InitializingResponse() Response {
	authorized := false
	return Response{Warning: WarningInitializing, Authorized: &authorized, Gaze: GazeLoading}
}

// Snapshot is the merged view of the newest face and gaze results of a session.
type Snapshot struct {
	SessionID string
	Face      *FrameResult
	Gaze      *FrameResult
	UpdatedAt time.Time
}

func (s *Snapshot) apply(result FrameResult) {
	r := result
	switch result.Source {
	case KindFace:
		s.Face = &r
	case KindGaze:
		s.Gaze = &r
	}
	if result.ProducedAt.After(s.UpdatedAt) {
		s.UpdatedAt = result.ProducedAt
	}
}

// Degraded reports whether the newest result of any analyzer is degraded.
func (s Snapshot) Degraded() bool {
	return (s.Face != nil && s.Face.Degraded) || (s.Gaze != nil && s.Gaze.Degraded)
}

// GazeStatus returns the gaze status or the no-gaze default.
func (s Snapshot) GazeStatus() string {
	if s.Gaze == nil || s.Gaze.Degraded || s.Gaze.GazeStatus == "" {
		return GazeNone
	}
	return s.Gaze.GazeStatus
}

// Response renders the snapshot in the ingestion wire form.
func (s Snapshot) Response() Response {
	authorized := false
	faces := 0
	confidence := 1.0
	var box *[4]int
	if s.Face != nil && !s.Face.Degraded {
		authorized = s.Face.Authorized
		faces = s.Face.FaceCount
		confidence = s.Face.Confidence
		if len(s.Face.FaceBoxes) > 0 {
			arr := s.Face.FaceBoxes[0].Array()
			box = &arr
		}
	}
	gaze := s.GazeStatus()
	resp := Response{
		Authorized: &authorized,
		Faces:      &faces,
		Gaze:       gaze,
		Box:        box,
		Confidence: &confidence,
	}

	switch label := s.Label(); {
	case s.Degraded():
		resp.Warning = WarningServerError
	case label == violation.LabelGazeAway:
		resp.Warning = gaze
	default:
		resp.Warning = label.Warning()
	}
	return resp
}

// Label classifies the snapshot. Degraded snapshots are never classified, and
// a face result without a registered identity counts as authorized.
func (s Snapshot) Label() violation.Label {
	if s.Degraded() {
		return violation.LabelNone
	}
	if s.Face == nil {
		return violation.ClassifyGaze(s.GazeStatus())
	}
	authorized := s.Face.Authorized || !s.Face.Verified
	return violation.Classify(s.Face.FaceCount, authorized, s.GazeStatus())
}
