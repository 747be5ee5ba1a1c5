package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"proctor/internal/logging"
	"proctor/internal/metrics"
)

const (
	defaultQueueCapacity  = 10
	defaultResultCapacity = 10
	forgetCapacity        = 32
)

// WorkerOptions sizes the worker channels.
type WorkerOptions struct {
	QueueCapacity  int
	ResultCapacity int
}

// WorkerStats is a point-in-time view of a worker's counters.
type WorkerStats struct {
	Kind           Kind   `json:"kind"`
	Alive          bool   `json:"alive"`
	Submitted      uint64 `json:"submitted"`
	Dropped        uint64 `json:"dropped"`
	Emitted        uint64 `json:"emitted"`
	ResultsDropped uint64 `json:"results_dropped"`
	Degraded       uint64 `json:"degraded"`
	Restarts       uint64 `json:"restarts"`
}

// Worker runs a single FrameAnalyzer on its own goroutine.
type Worker struct {
	kind   Kind
	logger *slog.Logger

	tasks   chan FrameTask
	results chan FrameResult
	forget  chan string
	stop    chan struct{}
	done    chan struct{}

	stopOnce sync.Once
	alive    atomic.Bool

	submitted      atomic.Uint64
	dropped        atomic.Uint64
	emitted        atomic.Uint64
	resultsDropped atomic.Uint64
	degraded       atomic.Uint64

	// identities is owned by the loop goroutine.
	identities map[string][]float32
}

// StartWorker builds the analyzer through factory and starts the loop. The
// analyzer is closed when the loop exits.
func StartWorker(ctx context.Context, kind Kind, factory Factory, opts WorkerOptions, logger *slog.Logger) (*Worker, error) {
	if factory == nil {
		return nil, fmt.Errorf("%s worker: nil factory", kind)
	}
	analyzer, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s worker: build analyzer: %w", kind, err)
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = defaultQueueCapacity
	}
	if opts.ResultCapacity <= 0 {
		opts.ResultCapacity = defaultResultCapacity
	}

	w := &Worker{
		kind:       kind,
		logger:     logging.NewComponentLogger(logger, "analysis-worker").With(logging.String(logging.FieldAnalyzer, string(kind))),
		tasks:      make(chan FrameTask, opts.QueueCapacity),
		results:    make(chan FrameResult, opts.ResultCapacity),
		forget:     make(chan string, forgetCapacity),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		identities: make(map[string][]float32),
	}
	w.alive.Store(true)
	go w.run(ctx, analyzer)
	w.logger.Debug("analysis worker started")
	return w, nil
}

// Kind returns the analyzer kind served by the worker.
func (w *Worker) Kind() Kind {
	return w.kind
}

// Alive reports whether the loop is still consuming tasks.
func (w *Worker) Alive() bool {
	return w.alive.Load()
}

// Done is closed once the loop has exited and the analyzer is closed.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Results exposes the bounded result channel for draining.
func (w *Worker) Results() <-chan FrameResult {
	return w.results
}

// Submit queues a task without blocking. It returns false when the queue is
// full or the worker is dead; the frame is dropped in both cases.
func (w *Worker) Submit(task FrameTask) bool {
	if !w.Alive() {
		w.dropped.Add(1)
		metrics.RecordFrameDropped(string(w.kind), metrics.DropWorkerDown)
		return false
	}
	select {
	case w.tasks <- task:
		w.submitted.Add(1)
		metrics.RecordSubmitted(string(w.kind))
		return true
	default:
		w.dropped.Add(1)
		metrics.RecordFrameDropped(string(w.kind), metrics.DropQueueFull)
		return false
	}
}

// Forget asks the loop to evict a session's cached identity. Best effort.
func (w *Worker) Forget(sessionID string) {
	select {
	case w.forget <- sessionID:
	default:
	}
}

// Kill ends the loop without waiting for it, the way a crashed process would.
func (w *Worker) Kill() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
}

// Stop ends the loop and waits for the analyzer to close.
func (w *Worker) Stop() {
	w.Kill()
	<-w.done
}

// Stats returns the worker counters.
func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		Kind:           w.kind,
		Alive:          w.Alive(),
		Submitted:      w.submitted.Load(),
		Dropped:        w.dropped.Load(),
		Emitted:        w.emitted.Load(),
		ResultsDropped: w.resultsDropped.Load(),
		Degraded:       w.degraded.Load(),
	}
}

func (w *Worker) run(ctx context.Context, analyzer FrameAnalyzer) {
	defer close(w.done)
	defer func() {
		w.alive.Store(false)
		if err := analyzer.Close(); err != nil {
			w.logger.Warn("analyzer close failed", logging.Error(err))
		}
		w.logger.Debug("analysis worker stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case sessionID := <-w.forget:
			delete(w.identities, sessionID)
		case task := <-w.tasks:
			if !w.process(ctx, analyzer, task) {
				return
			}
		}
	}
}

// process handles one task and reports whether the loop should continue.
func (w *Worker) process(ctx context.Context, analyzer FrameAnalyzer, task FrameTask) bool {
	if task.IdentityReference != nil {
		w.identities[task.SessionID] = task.IdentityReference
	}

	result, err := w.analyze(ctx, analyzer, task, w.identities[task.SessionID])
	if err != nil {
		if errors.Is(err, ErrFatal) {
			w.logger.Error("analyzer failed fatally; worker exiting",
				logging.String(logging.FieldSessionID, task.SessionID),
				logging.Alert("worker_down"),
				logging.Error(err),
			)
			return false
		}
		w.logger.Warn("frame analysis failed",
			logging.String(logging.FieldSessionID, task.SessionID),
			logging.Error(err),
		)
		w.degraded.Add(1)
		metrics.RecordDegraded(string(w.kind))
		result = Degraded(task.SessionID, w.kind)
	}

	result.SessionID = task.SessionID
	result.Source = w.kind
	if result.ProducedAt.IsZero() {
		result.ProducedAt = time.Now()
	}
	w.emit(result)
	return true
}

func (w *Worker) analyze(ctx context.Context, analyzer FrameAnalyzer, task FrameTask, identity []float32) (result FrameResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analyzer panic: %v", r)
		}
	}()
	return analyzer.Analyze(ctx, task, identity)
}

func (w *Worker) emit(result FrameResult) {
	select {
	case w.results <- result:
		w.emitted.Add(1)
		metrics.RecordResult(string(w.kind), true)
	default:
		w.resultsDropped.Add(1)
		metrics.RecordResult(string(w.kind), false)
	}
}
