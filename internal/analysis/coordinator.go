package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"proctor/internal/config"
	"proctor/internal/frame"
	"proctor/internal/logging"
	"proctor/internal/metrics"
)

type session struct {
	identity  []float32
	snapshot  Snapshot
	hasResult bool
}

// Coordinator is the caller-facing side of the worker pool. All methods are
// safe for concurrent use and none of them wait for analysis to finish.
type Coordinator struct {
	ctx    context.Context
	cancel context.CancelFunc
	base   *slog.Logger
	logger *slog.Logger

	opts         WorkerOptions
	targetHeight int
	kinds        []Kind
	factories    map[Kind]Factory

	mu       sync.Mutex
	workers  map[Kind]*Worker
	restarts map[Kind]uint64
	sessions map[string]*session
	dirty    map[string]struct{}
	closed   bool
}

// NewCoordinator starts one worker per factory. A factory that fails here is
// retried on the next submission.
func NewCoordinator(cfg *config.Config, factories map[Kind]Factory, logger *slog.Logger) (*Coordinator, error) {
	if len(factories) == 0 {
		return nil, errors.New("coordinator: no analyzers configured")
	}
	opts := WorkerOptions{}
	targetHeight := frame.DefaultTargetHeight
	if cfg != nil {
		opts.QueueCapacity = cfg.Analysis.QueueCapacity
		opts.ResultCapacity = cfg.Analysis.ResultCapacity
		if cfg.Analysis.TargetHeight > 0 {
			targetHeight = cfg.Analysis.TargetHeight
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		ctx:          ctx,
		cancel:       cancel,
		base:         logger,
		logger:       logging.NewComponentLogger(logger, "coordinator"),
		opts:         opts,
		targetHeight: targetHeight,
		factories:    make(map[Kind]Factory, len(factories)),
		workers:      make(map[Kind]*Worker, len(factories)),
		restarts:     make(map[Kind]uint64, len(factories)),
		sessions:     make(map[string]*session),
		dirty:        make(map[string]struct{}),
	}
	for kind, factory := range factories {
		if factory == nil {
			cancel()
			return nil, fmt.Errorf("coordinator: nil factory for %s", kind)
		}
		c.kinds = append(c.kinds, kind)
		c.factories[kind] = factory
	}
	sort.Slice(c.kinds, func(i, j int) bool { return c.kinds[i] < c.kinds[j] })

	for _, kind := range c.kinds {
		w, err := StartWorker(ctx, kind, c.factories[kind], c.opts, logger)
		if err != nil {
			c.logger.Warn("analyzer unavailable; will retry on next frame",
				logging.String(logging.FieldAnalyzer, string(kind)),
				logging.Error(err),
			)
			continue
		}
		c.workers[kind] = w
	}
	return c, nil
}

// SubmitFrame decodes raw and hands the frame to every analyzer worker. Dead
// workers are replaced first. The reply is the latest known result for the
// session, which usually predates this frame.
func (c *Coordinator) SubmitFrame(sessionID string, raw []byte) Response {
	decoded, err := frame.Decode(raw, c.targetHeight)
	if err != nil {
		metrics.RecordBadFrame()
		c.logger.Debug("bad frame", logging.String(logging.FieldSessionID, sessionID), logging.Error(err))
		return BadFrameResponse()
	}

	c.mu.Lock()
	s := c.sessionLocked(sessionID)
	task := FrameTask{
		SessionID:         sessionID,
		Image:             decoded.Image,
		Scale:             decoded.Scale,
		IdentityReference: s.identity,
		SubmittedAt:       time.Now(),
	}
	for _, kind := range c.kinds {
		if w := c.ensureWorkerLocked(kind); w != nil {
			w.Submit(task)
		}
	}
	resp := c.latestLocked(sessionID)
	c.mu.Unlock()
	return resp
}

// LatestResult drains pending results and returns the newest merged result
// for the session, or the initializing placeholder.
func (c *Coordinator) LatestResult(sessionID string) Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latestLocked(sessionID)
}

// Drain collects pending results and returns the snapshots of every session
// that received a result since the previous Drain.
func (c *Coordinator) Drain() []Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drainLocked()
	if len(c.dirty) == 0 {
		return nil
	}
	out := make([]Snapshot, 0, len(c.dirty))
	for id := range c.dirty {
		if s, ok := c.sessions[id]; ok && s.hasResult {
			out = append(out, s.snapshot)
		}
		delete(c.dirty, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// RegisterIdentity stores the reference embedding shipped with the session's
// future frames. Registering the same reference again is a no-op.
func (c *Coordinator) RegisterIdentity(sessionID string, reference []float32) {
	ref := make([]float32, len(reference))
	copy(ref, reference)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionLocked(sessionID).identity = ref
}

// Teardown drops the session. Workers are asked to evict their cached
// identity, which they may do lazily.
func (c *Coordinator) Teardown(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[sessionID]; !ok {
		return
	}
	delete(c.sessions, sessionID)
	delete(c.dirty, sessionID)
	for _, w := range c.workers {
		if w != nil {
			w.Forget(sessionID)
		}
	}
	metrics.SetActiveSessions(len(c.sessions))
}

// Stats reports per-kind worker counters. Kinds without a running worker
// report Alive=false.
func (c *Coordinator) Stats() []WorkerStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]WorkerStats, 0, len(c.kinds))
	for _, kind := range c.kinds {
		stats := WorkerStats{Kind: kind}
		if w := c.workers[kind]; w != nil {
			stats = w.Stats()
		}
		stats.Restarts = c.restarts[kind]
		out = append(out, stats)
	}
	return out
}

// Supervise replaces dead workers every interval until ctx is done, so idle
// kinds recover before the next frame arrives.
func (c *Coordinator) Supervise(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.mu.Lock()
			for _, kind := range c.kinds {
				c.ensureWorkerLocked(kind)
			}
			c.mu.Unlock()
		}
	}
}

// Close stops every worker. Later submissions only return cached results.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	for kind, w := range c.workers {
		if w != nil {
			w.Stop()
		}
		delete(c.workers, kind)
	}
}

func (c *Coordinator) sessionLocked(sessionID string) *session {
	s, ok := c.sessions[sessionID]
	if !ok {
		s = &session{snapshot: Snapshot{SessionID: sessionID}}
		c.sessions[sessionID] = s
		metrics.SetActiveSessions(len(c.sessions))
	}
	return s
}

func (c *Coordinator) latestLocked(sessionID string) Response {
	c.drainLocked()
	s, ok := c.sessions[sessionID]
	if !ok || !s.hasResult {
		return InitializingResponse()
	}
	return s.snapshot.Response()
}

// ensureWorkerLocked returns a live worker for kind, replacing a dead one.
// It returns nil when the kind cannot be started right now.
func (c *Coordinator) ensureWorkerLocked(kind Kind) *Worker {
	w := c.workers[kind]
	if w != nil && w.Alive() {
		return w
	}
	if c.closed {
		return nil
	}
	if w != nil {
		c.logger.Warn("analysis worker died; restarting",
			logging.String(logging.FieldAnalyzer, string(kind)),
			logging.Alert("worker_restart"),
		)
		c.collectLocked(w)
		w.Stop()
		c.workers[kind] = nil
	}

	replacement, err := StartWorker(c.ctx, kind, c.factories[kind], c.opts, c.base)
	c.restarts[kind]++
	metrics.RecordRestart(string(kind), err == nil)
	if err != nil {
		c.logger.Error("analysis worker restart failed",
			logging.String(logging.FieldAnalyzer, string(kind)),
			logging.Error(err),
		)
		return nil
	}
	c.workers[kind] = replacement
	return replacement
}

func (c *Coordinator) drainLocked() {
	for _, kind := range c.kinds {
		if w := c.workers[kind]; w != nil {
			c.collectLocked(w)
		}
	}
}

func (c *Coordinator) collectLocked(w *Worker) {
	for {
		select {
		case result := <-w.Results():
			s, ok := c.sessions[result.SessionID]
			if !ok {
				continue
			}
			s.snapshot.apply(result)
			s.hasResult = true
			c.dirty[result.SessionID] = struct{}{}
		default:
			return
		}
	}
}
