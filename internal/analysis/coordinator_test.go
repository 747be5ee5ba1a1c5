package analysis_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"proctor/internal/analysis"
	"proctor/internal/logging"
	"proctor/internal/testsupport"
)

func newCoordinator(t *testing.T, factories map[analysis.Kind]analysis.Factory) *analysis.Coordinator {
	t.Helper()
	c, err := analysis.NewCoordinator(testsupport.NewConfig(t), factories, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func waitForResponse(t *testing.T, c *analysis.Coordinator, sessionID string, cond func(analysis.Response) bool) analysis.Response {
	t.Helper()
	var last analysis.Response
	require.Eventually(t, func() bool {
		last = c.LatestResult(sessionID)
		return cond(last)
	}, 2*time.Second, 5*time.Millisecond)
	return last
}

func TestSubmitFrameRejectsBadFrame(t *testing.T) {
	face := &fakeFactory{fn: faceResult(1, true)}
	c := newCoordinator(t, map[analysis.Kind]analysis.Factory{analysis.KindFace: face.build})

	resp := c.SubmitFrame("s1", []byte("garbage"))
	payload, err := json.Marshal(resp)
	require.NoError(t, err)
	require.JSONEq(t, `{"warning":"Bad Frame"}`, string(payload))

	stats := c.Stats()
	require.Len(t, stats, 1)
	require.Zero(t, stats[0].Submitted)
}

func TestLatestResultInitializingPlaceholder(t *testing.T) {
	face := &fakeFactory{fn: faceResult(1, true)}
	c := newCoordinator(t, map[analysis.Kind]analysis.Factory{analysis.KindFace: face.build})

	payload, err := json.Marshal(c.LatestResult("unknown"))
	require.NoError(t, err)
	require.JSONEq(t, `{"warning":"INITIALIZING AI...","auth":false,"gaze":"Loading..."}`, string(payload))
}

func TestCoordinatorMergesFaceAndGaze(t *testing.T) {
	face := &fakeFactory{fn: faceResult(1, false)}
	gaze := &fakeFactory{fn: gazeResult("WARNING: Looking Left")}
	c := newCoordinator(t, map[analysis.Kind]analysis.Factory{
		analysis.KindFace: face.build,
		analysis.KindGaze: gaze.build,
	})

	c.SubmitFrame("s1", pngFrame(t))
	resp := waitForResponse(t, c, "s1", func(r analysis.Response) bool {
		return r.Faces != nil && r.Gaze == "WARNING: Looking Left"
	})
	require.Equal(t, 1, *resp.Faces)
	require.False(t, *resp.Authorized)
	require.Equal(t, [4]int{1, 10, 10, 1}, *resp.Box)
	// No identity registered, so an unmatched face is not flagged.
	require.Equal(t, "WARNING: Looking Left", resp.Warning)
}

func TestCoordinatorFlagsUnauthorizedAfterRegistration(t *testing.T) {
	face := &fakeFactory{fn: faceResult(1, false)}
	c := newCoordinator(t, map[analysis.Kind]analysis.Factory{analysis.KindFace: face.build})

	c.RegisterIdentity("s1", []float32{1, 0})
	c.RegisterIdentity("s1", []float32{1, 0})
	c.SubmitFrame("s1", pngFrame(t))
	resp := waitForResponse(t, c, "s1", func(r analysis.Response) bool { return r.Faces != nil })
	require.Equal(t, "SECURITY ALERT: UNAUTHORIZED PERSON", resp.Warning)
}

func TestCoordinatorReplacesDeadWorker(t *testing.T) {
	face := &fakeFactory{fn: faceResult(1, true)}
	c := newCoordinator(t, map[analysis.Kind]analysis.Factory{analysis.KindFace: face.build})
	require.Equal(t, 1, face.count())

	// Crash the worker by making its analyzer report a fatal error.
	face.analyzers[0].fn = func(analysis.FrameTask, []float32) (analysis.FrameResult, error) {
		return analysis.FrameResult{}, analysis.ErrFatal
	}
	c.SubmitFrame("s1", pngFrame(t))
	require.Eventually(t, func() bool { return !c.Stats()[0].Alive }, 2*time.Second, 5*time.Millisecond)
	require.True(t, face.analyzers[0].closed.Load())

	c.SubmitFrame("s1", pngFrame(t))
	stats := c.Stats()[0]
	require.True(t, stats.Alive)
	require.Equal(t, uint64(1), stats.Restarts)
	require.Equal(t, 2, face.count())

	waitForResponse(t, c, "s1", func(r analysis.Response) bool { return r.Faces != nil && *r.Faces == 1 })
}

func TestCoordinatorRetriesFailedFactory(t *testing.T) {
	face := &fakeFactory{fn: faceResult(2, true)}
	face.fail.Store(true)
	c := newCoordinator(t, map[analysis.Kind]analysis.Factory{analysis.KindFace: face.build})
	require.False(t, c.Stats()[0].Alive)

	resp := c.SubmitFrame("s1", pngFrame(t))
	require.Equal(t, analysis.WarningInitializing, resp.Warning)

	face.fail.Store(false)
	c.SubmitFrame("s1", pngFrame(t))
	require.True(t, c.Stats()[0].Alive)
	resp = waitForResponse(t, c, "s1", func(r analysis.Response) bool { return r.Faces != nil })
	require.Equal(t, "MULTIPLE FACES DETECTED", resp.Warning)
}

func TestCoordinatorDegradedResponse(t *testing.T) {
	face := &fakeFactory{fn: func(analysis.FrameTask, []float32) (analysis.FrameResult, error) {
		panic("boom")
	}}
	c := newCoordinator(t, map[analysis.Kind]analysis.Factory{analysis.KindFace: face.build})

	c.SubmitFrame("s1", pngFrame(t))
	resp := waitForResponse(t, c, "s1", func(r analysis.Response) bool { return r.Faces != nil })
	require.Equal(t, analysis.WarningServerError, resp.Warning)
	require.True(t, c.Stats()[0].Alive)
}

func TestDrainReturnsUpdatedSessionsOnce(t *testing.T) {
	face := &fakeFactory{fn: faceResult(0, false)}
	c := newCoordinator(t, map[analysis.Kind]analysis.Factory{analysis.KindFace: face.build})

	c.SubmitFrame("a", pngFrame(t))
	c.SubmitFrame("b", pngFrame(t))

	seen := map[string]analysis.Snapshot{}
	require.Eventually(t, func() bool {
		for _, snap := range c.Drain() {
			seen[snap.SessionID] = snap
		}
		return len(seen) == 2
	}, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, 0, seen["a"].Face.FaceCount)
	require.Empty(t, c.Drain())
}

func TestTeardownForgetsSession(t *testing.T) {
	face := &fakeFactory{fn: faceResult(1, true)}
	c := newCoordinator(t, map[analysis.Kind]analysis.Factory{analysis.KindFace: face.build})

	c.SubmitFrame("s1", pngFrame(t))
	waitForResponse(t, c, "s1", func(r analysis.Response) bool { return r.Faces != nil })

	c.Teardown("s1")
	c.Teardown("s1")
	require.Equal(t, analysis.WarningInitializing, c.LatestResult("s1").Warning)
}

func TestCoordinatorCloseStopsWorkers(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	face := &fakeFactory{fn: faceResult(1, true)}
	gaze := &fakeFactory{fn: gazeResult("Center")}
	c, err := analysis.NewCoordinator(testsupport.NewConfig(t), map[analysis.Kind]analysis.Factory{
		analysis.KindFace: face.build,
		analysis.KindGaze: gaze.build,
	}, logging.NewNop())
	require.NoError(t, err)

	c.SubmitFrame("s1", pngFrame(t))
	c.Close()
	c.Close()

	require.True(t, face.analyzers[0].closed.Load())
	require.True(t, gaze.analyzers[0].closed.Load())
	c.SubmitFrame("s1", pngFrame(t))
	require.Equal(t, 1, face.count())
}

func TestNewCoordinatorRequiresAnalyzers(t *testing.T) {
	_, err := analysis.NewCoordinator(nil, nil, logging.NewNop())
	require.Error(t, err)
}
