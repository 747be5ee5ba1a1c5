package broadcast

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"proctor/internal/logging"
	"proctor/internal/metrics"
)

// DefaultTimeout bounds a single asynchronous delivery.
const DefaultTimeout = 5 * time.Second

// maxQueued bounds the messages waiting for delivery.
const maxQueued = 1024

// Async delivers messages in the order they were sent on a single background
// goroutine. Failures are logged and counted, never returned.
type Async struct {
	next    Broadcaster
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	queue   []Message
	running bool
	wg      sync.WaitGroup
}

// NewAsync wraps next. A nil next behaves like Nop.
func NewAsync(next Broadcaster, timeout time.Duration, logger *slog.Logger) *Async {
	if next == nil {
		next = Nop{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Async{
		next:    next,
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "broadcast"),
	}
}

// Send queues msg behind earlier messages and returns immediately. A full
// queue drops msg.
func (a *Async) Send(msg Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.queue) >= maxQueued {
		metrics.RecordBroadcastFailure(msg.Type)
		a.logger.Warn("broadcast queue full; dropping message",
			logging.String("type", msg.Type),
			logging.Int64(logging.FieldInterviewID, msg.InterviewID),
		)
		return
	}
	a.queue = append(a.queue, msg)
	if !a.running {
		a.running = true
		a.wg.Add(1)
		go a.drain()
	}
}

func (a *Async) drain() {
	defer a.wg.Done()
	for {
		a.mu.Lock()
		if len(a.queue) == 0 {
			a.running = false
			a.mu.Unlock()
			return
		}
		msg := a.queue[0]
		a.queue = a.queue[1:]
		a.mu.Unlock()
		a.deliver(msg)
	}
}

func (a *Async) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := a.next.Publish(ctx, msg); err != nil {
		metrics.RecordBroadcastFailure(msg.Type)
		a.logger.Warn("broadcast delivery failed",
			logging.String("type", msg.Type),
			logging.Int64(logging.FieldInterviewID, msg.InterviewID),
			logging.Error(err),
		)
	}
}

// Wait blocks until every queued message has been delivered.
func (a *Async) Wait() {
	a.wg.Wait()
}
