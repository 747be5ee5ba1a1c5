package broadcast

import (
	"context"
	"fmt"
	"sync"
)

// Listener receives messages published to a Hub.
type Listener func(Message)

// Hub delivers messages to in-process listeners, such as a websocket layer
// pushing updates to admin dashboards.
type Hub struct {
	mu        sync.RWMutex
	next      int
	listeners map[int]Listener
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{listeners: make(map[int]Listener)}
}

// Subscribe registers fn and returns a function that removes it.
func (h *Hub) Subscribe(fn Listener) func() {
	h.mu.Lock()
	id := h.next
	h.next++
	h.listeners[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
}

// Len returns the number of listeners.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

// Publish calls every listener in turn. A panicking listener is reported as
// an error and does not stop delivery to the others.
func (h *Hub) Publish(_ context.Context, msg Message) error {
	h.mu.RLock()
	listeners := make([]Listener, 0, len(h.listeners))
	for _, fn := range h.listeners {
		listeners = append(listeners, fn)
	}
	h.mu.RUnlock()

	var failed int
	for _, fn := range listeners {
		if !deliver(fn, msg) {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d listeners failed", failed, len(listeners))
	}
	return nil
}

func deliver(fn Listener, msg Message) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	fn(msg)
	return true
}
