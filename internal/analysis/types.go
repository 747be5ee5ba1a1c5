package analysis

import (
	"context"
	"errors"
	"image"
	"time"
)

// ErrFatal marks analyzer failures that must take the worker down. Any other
// error degrades only the frame that caused it.
var ErrFatal = errors.New("fatal analyzer failure")

// Kind names an analyzer type. Each kind has exactly one worker.
type Kind string

const (
	KindFace Kind = "face"
	KindGaze Kind = "gaze"
)

// Response warnings and placeholders.
const (
	WarningServerError  = "Server Error"
	WarningBadFrame     = "Bad Frame"
	WarningInitializing = "INITIALIZING AI..."
	GazeLoading         = "Loading..."
	GazeNone            = "No Gaze"
)

// Box is a face bounding box in source frame pixels.
type Box struct {
	Top    int
	Right  int
	Bottom int
	Left   int
}

// BoxFromRect converts an image rectangle into a Box.
func BoxFromRect(r image.Rectangle) Box {
	return Box{Top: r.Min.Y, Right: r.Max.X, Bottom: r.Max.Y, Left: r.Min.X}
}

// Rect converts the box back into an image rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right, b.Bottom)
}

// Array returns the [top, right, bottom, left] wire form.
func (b Box) Array() [4]int {
	return [4]int{b.Top, b.Right, b.Bottom, b.Left}
}

// FrameTask is one decoded frame routed to a worker.
type FrameTask struct {
	SessionID string
	Image     *image.RGBA
	// Scale maps analysis coordinates back to the source frame.
	Scale float64
	// IdentityReference is nil unless the coordinator has a reference for the
	// session. Workers keep the last one they saw.
	IdentityReference []float32
	SubmittedAt       time.Time
}

// FrameResult is the output of one analyzer for one frame.
type FrameResult struct {
	SessionID  string
	Source     Kind
	Authorized bool
	// Verified reports whether a registered identity was compared. Authorized
	// is meaningless when it is false.
	Verified   bool
	Confidence float64
	FaceCount  int
	FaceBoxes  []Box
	GazeStatus string
	Warning    string
	Degraded   bool
	ProducedAt time.Time
}

// FrameAnalyzer inspects frames. Implementations are built once per worker and
// are only called from that worker's goroutine.
type FrameAnalyzer interface {
	Analyze(ctx context.Context, task FrameTask, identity []float32) (FrameResult, error)
	Close() error
}

// Factory builds a FrameAnalyzer, loading whatever models it needs.
type Factory func(ctx context.Context) (FrameAnalyzer, error)

// Degraded returns the result emitted when an analyzer fails on a frame.
func Degraded(sessionID string, kind Kind) FrameResult {
	return FrameResult{
		SessionID:  sessionID,
		Source:     kind,
		Authorized: false,
		Confidence: 1,
		Warning:    WarningServerError,
		Degraded:   true,
		ProducedAt: time.Now(),
	}
}
