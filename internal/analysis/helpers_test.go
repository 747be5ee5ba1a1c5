package analysis_test

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"proctor/internal/analysis"
)

type analyzeFunc func(task analysis.FrameTask, identity []float32) (analysis.FrameResult, error)

type fakeAnalyzer struct {
	fn     analyzeFunc
	closed atomic.Bool
}

func (f *fakeAnalyzer) Analyze(_ context.Context, task analysis.FrameTask, identity []float32) (analysis.FrameResult, error) {
	return f.fn(task, identity)
}

func (f *fakeAnalyzer) Close() error {
	f.closed.Store(true)
	return nil
}

// fakeFactory hands out a fresh analyzer per call and remembers them.
type fakeFactory struct {
	mu        sync.Mutex
	fn        analyzeFunc
	fail      atomic.Bool
	analyzers []*fakeAnalyzer
}

func (f *fakeFactory) build(context.Context) (analysis.FrameAnalyzer, error) {
	if f.fail.Load() {
		return nil, errFactory
	}
	a := &fakeAnalyzer{fn: f.fn}
	f.mu.Lock()
	f.analyzers = append(f.analyzers, a)
	f.mu.Unlock()
	return a, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.analyzers)
}

type factoryError string

func (e factoryError) Error() string { return string(e) }

const errFactory = factoryError("model load failed")

func pngFrame(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 32, 24))))
	return buf.Bytes()
}

func faceResult(count int, authorized bool) analyzeFunc {
	return func(task analysis.FrameTask, identity []float32) (analysis.FrameResult, error) {
		boxes := make([]analysis.Box, 0, count)
		for i := 0; i < count; i++ {
			boxes = append(boxes, analysis.Box{Top: 1, Right: 10, Bottom: 10, Left: 1})
		}
		return analysis.FrameResult{
			Authorized: authorized,
			Verified:   identity != nil,
			Confidence: 0.2,
			FaceCount:  count,
			FaceBoxes:  boxes,
		}, nil
	}
}

func gazeResult(status string) analyzeFunc {
	return func(analysis.FrameTask, []float32) (analysis.FrameResult, error) {
		return analysis.FrameResult{GazeStatus: status}, nil
	}
}
