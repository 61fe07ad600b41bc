package coordinator

import (
	"sync"
	"time"
)

// EventKind identifies a learning lifecycle event.
type EventKind string

const (
	EventRoundStarted           EventKind = "fl_round_started"
	EventRoundCompleted         EventKind = "fl_round_completed"
	EventRoundFailed            EventKind = "fl_round_failed"
	EventGradientUpdateReceived EventKind = "fl_gradient_update_received"
	EventModelUpdateReceived    EventKind = "fl_model_update_received"
)

// Event is a learning lifecycle notification.
type Event struct {
	Kind    EventKind `json:"kind"`
	RoundID string    `json:"round_id"`
	NodeID  string    `json:"node_id,omitempty"`
	At      time.Time `json:"at"`
}

// Emitter fans learning events out to registered listeners.
type Emitter struct {
	mu        sync.RWMutex
	listeners []func(Event)
}

func NewEmitter() *Emitter {
	return &Emitter{}
}

// Listen registers a callback invoked for every emitted event on the
// emitting goroutine.
func (e *Emitter) Listen(fn func(Event)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.listeners = append(e.listeners, fn)
}

func (e *Emitter) Emit(kind EventKind, roundID, nodeID string) {
	ev := Event{Kind: kind, RoundID: roundID, NodeID: nodeID, At: time.Now()}

	e.mu.RLock()
	listeners := e.listeners
	e.mu.RUnlock()

	for _, fn := range listeners {
		fn(ev)
	}
}
