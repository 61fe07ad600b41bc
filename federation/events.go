package federation

import (
	"sync"
	"time"
)

// EventKind identifies a federation lifecycle event.
type EventKind string

const (
	EventStarted          EventKind = "started"
	EventStopped          EventKind = "stopped"
	EventNodeConnected    EventKind = "node_connected"
	EventNodeDisconnected EventKind = "node_disconnected"
	EventNodeHealthy      EventKind = "node_healthy"
	EventNodeUnhealthy    EventKind = "node_unhealthy"
	EventError            EventKind = "error"
)

// Event is a federation lifecycle notification.
type Event struct {
	Kind   EventKind `json:"kind"`
	NodeID string    `json:"node_id,omitempty"`
	Err    error     `json:"-"`
	At     time.Time `json:"at"`
}

// Emitter fans events out to registered listeners. Each component owns
// its own emit points; there is no global listener registry.
type Emitter struct {
	mu        sync.RWMutex
	listeners []func(Event)
}

func NewEmitter() *Emitter {
	return &Emitter{}
}

// Listen registers a callback invoked for every emitted event. The
// callback runs on the emitting goroutine and must not block.
func (e *Emitter) Listen(fn func(Event)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.listeners = append(e.listeners, fn)
}

func (e *Emitter) Emit(kind EventKind, nodeID string, err error) {
	ev := Event{Kind: kind, NodeID: nodeID, Err: err, At: time.Now()}

	e.mu.RLock()
	listeners := e.listeners
	e.mu.RUnlock()

	for _, fn := range listeners {
		fn(ev)
	}
}
