// Package monitor turns merged analysis results into recorded violations.
//
// The coordinator reports what the camera saw; the monitor decides whether it
// is worth a violation. It ignores the first moments of a session, requires a
// missing face to persist for several face results, and records a given event type
// at most once per cooldown window.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"proctor/internal/analysis"
	"proctor/internal/config"
	"proctor/internal/logging"
	"proctor/internal/store"
	"proctor/internal/violation"
)

// Analyzer is the slice of the analysis coordinator the monitor drives.
type Analyzer interface {
	SubmitFrame(sessionID string, raw []byte) analysis.Response
	Drain() []analysis.Snapshot
	RegisterIdentity(sessionID string, reference []float32)
	Teardown(sessionID string)
}

// Recorder persists violations. *proctoring.Manager satisfies it.
type Recorder interface {
	AddViolation(ctx context.Context, interviewID int64, eventType, details string, forced violation.Severity) (store.ViolationEvent, error)
	IsSuspended(ctx context.Context, interviewID int64) (bool, error)
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

type interviewState struct {
	firstFrame   time.Time
	noFaceStreak int
	// lastFaceAt is when the newest evaluated face result was produced. A
	// snapshot re-emitted for a gaze update carries the same face result.
	lastFaceAt time.Time
	lastEvent  map[string]time.Time
}

// Monitor glues frame ingestion to the violation state machine.
type Monitor struct {
	analyzer Analyzer
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time

	grace        time.Duration
	cooldown     time.Duration
	noFaceFrames int

	mu     sync.Mutex
	states map[int64]*interviewState
}

// New builds a monitor using the proctoring section of cfg.
func New(cfg *config.Config, analyzer Analyzer, recorder Recorder, logger *slog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		analyzer:     analyzer,
		recorder:     recorder,
		logger:       logging.NewComponentLogger(logger, "monitor"),
		now:          time.Now,
		grace:        cfg.GracePeriod(),
		cooldown:     cfg.ViolationCooldown(),
		noFaceFrames: max(1, cfg.Proctoring.NoFaceFrames),
		states:       make(map[int64]*interviewState),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ProcessFrame submits a frame for the interview and evaluates every result
// that arrived since the last call, for any interview. The reply is the
// coordinator's ingestion response.
func (m *Monitor) ProcessFrame(ctx context.Context, interviewID int64, raw []byte) analysis.Response {
	m.mu.Lock()
	if _, ok := m.states[interviewID]; !ok {
		m.states[interviewID] = &interviewState{
			firstFrame: m.now(),
			lastEvent:  make(map[string]time.Time),
		}
	}
	m.mu.Unlock()

	resp := m.analyzer.SubmitFrame(sessionKey(interviewID), raw)
	m.Flush(ctx)
	return resp
}

// Flush evaluates results that arrived since the last call without
// submitting a frame.
func (m *Monitor) Flush(ctx context.Context) {
	for _, snapshot := range m.analyzer.Drain() {
		id, err := strconv.ParseInt(snapshot.SessionID, 10, 64)
		if err != nil {
			continue
		}
		m.evaluate(ctx, id, snapshot)
	}
}

// RegisterIdentity forwards the candidate's reference embedding.
func (m *Monitor) RegisterIdentity(interviewID int64, reference []float32) {
	m.analyzer.RegisterIdentity(sessionKey(interviewID), reference)
}

// Forget drops all per-interview state, including the coordinator session.
// A later frame starts a new grace period.
func (m *Monitor) Forget(interviewID int64) {
	m.mu.Lock()
	delete(m.states, interviewID)
	m.mu.Unlock()
	m.analyzer.Teardown(sessionKey(interviewID))
}

func (m *Monitor) evaluate(ctx context.Context, interviewID int64, snapshot analysis.Snapshot) {
	label := snapshot.Label()
	now := m.now()

	m.mu.Lock()
	state, ok := m.states[interviewID]
	if !ok {
		m.mu.Unlock()
		return
	}
	if now.Sub(state.firstFrame) < m.grace {
		m.mu.Unlock()
		return
	}
	freshFace := snapshot.Face != nil && !snapshot.Face.ProducedAt.Equal(state.lastFaceAt)
	if freshFace {
		state.lastFaceAt = snapshot.Face.ProducedAt
	}
	if label == violation.LabelNoFaceDetected {
		if !freshFace {
			m.mu.Unlock()
			return
		}
		state.noFaceStreak++
		if state.noFaceStreak < m.noFaceFrames {
			m.mu.Unlock()
			return
		}
		state.noFaceStreak = 0
	} else if !snapshot.Degraded() {
		state.noFaceStreak = 0
	}
	eventType := label.EventType()
	if eventType == "" {
		m.mu.Unlock()
		return
	}
	if last, seen := state.lastEvent[eventType]; seen && now.Sub(last) < m.cooldown {
		m.mu.Unlock()
		return
	}
	state.lastEvent[eventType] = now
	m.mu.Unlock()

	suspended, err := m.recorder.IsSuspended(ctx, interviewID)
	if err != nil {
		m.logger.Warn("suspension lookup failed",
			logging.Int64(logging.FieldInterviewID, interviewID),
			logging.Error(err),
		)
		return
	}
	if suspended {
		return
	}

	if _, err := m.recorder.AddViolation(ctx, interviewID, eventType, details(snapshot), label.Severity()); err != nil {
		m.logger.Error("record violation failed",
			logging.Int64(logging.FieldInterviewID, interviewID),
			logging.String(logging.FieldEventType, eventType),
			logging.Error(err),
		)
	}
}

func details(snapshot analysis.Snapshot) string {
	faces := 0
	authorized := false
	if snapshot.Face != nil {
		faces = snapshot.Face.FaceCount
		authorized = snapshot.Face.Authorized || !snapshot.Face.Verified
	}
	return fmt.Sprintf("Faces: %d, Auth: %t, Gaze: %s", faces, authorized, snapshot.GazeStatus())
}

func sessionKey(interviewID int64) string {
	return strconv.FormatInt(interviewID, 10)
}
