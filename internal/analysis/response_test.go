package analysis_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"proctor/internal/analysis"
	"proctor/internal/violation"
)

func TestSnapshotLabel(t *testing.T) {
	cases := []struct {
		name string
		snap analysis.Snapshot
		want violation.Label
	}{
		{
			name: "gaze only",
			snap: analysis.Snapshot{Gaze: &analysis.FrameResult{GazeStatus: "WARNING: Looking Down"}},
			want: violation.LabelGazeAway,
		},
		{
			name: "no face",
			snap: analysis.Snapshot{Face: &analysis.FrameResult{}},
			want: violation.LabelNoFaceDetected,
		},
		{
			name: "unverified single face",
			snap: analysis.Snapshot{Face: &analysis.FrameResult{FaceCount: 1}},
			want: violation.LabelNone,
		},
		{
			name: "verified mismatch",
			snap: analysis.Snapshot{Face: &analysis.FrameResult{FaceCount: 1, Verified: true}},
			want: violation.LabelUnauthorizedPerson,
		},
		{
			name: "degraded face",
			snap: analysis.Snapshot{Face: &analysis.FrameResult{Degraded: true}},
			want: violation.LabelNone,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.snap.Label())
		})
	}
}

func TestResponseWireShape(t *testing.T) {
	snap := analysis.Snapshot{
		Face: &analysis.FrameResult{
			Authorized: true,
			Verified:   true,
			Confidence: 0.25,
			FaceCount:  1,
			FaceBoxes:  []analysis.Box{{Top: 5, Right: 50, Bottom: 60, Left: 8}},
		},
		Gaze: &analysis.FrameResult{GazeStatus: "Looking Center"},
	}
	payload, err := json.Marshal(snap.Response())
	require.NoError(t, err)
	require.JSONEq(t, `{"auth":true,"faces":1,"gaze":"Looking Center","warning":"","box":[5,50,60,8],"auth_dist":0.25}`, string(payload))

	empty := analysis.Snapshot{Face: &analysis.FrameResult{FaceCount: 0, Confidence: 1}}
	payload, err = json.Marshal(empty.Response())
	require.NoError(t, err)
	require.JSONEq(t, `{"auth":false,"faces":0,"gaze":"No Gaze","warning":"NO FACE DETECTED","box":null,"auth_dist":1}`, string(payload))
}
