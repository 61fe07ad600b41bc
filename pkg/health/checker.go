package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fedmesh/fedmesh/node"
)

const (
	defInterval           = 30 * time.Second
	defProbeTimeout       = 5 * time.Second
	defUnhealthyThreshold = 3
	defHealthyThreshold   = 2
)

// Probe checks one node, typically via the RPC health endpoint. A probe
// error is treated the same as an explicit unhealthy response.
type Probe func(ctx context.Context, n node.Node) error

// Event is emitted when a node crosses a hysteresis threshold.
type Event struct {
	NodeID  string
	Healthy bool
	At      time.Time
}

// State is the observed probe state of one node.
type State struct {
	Healthy              bool
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	LastCheck            time.Time
	ResponseTime         time.Duration
}

type Config struct {
	Interval           time.Duration
	ProbeTimeout       time.Duration
	UnhealthyThreshold int
	HealthyThreshold   int
}

// Checker probes registered nodes on a fixed interval and flips their
// health state with consecutive-failure/recovery hysteresis.
type Checker struct {
	mu       sync.Mutex
	cfg      Config
	probe    Probe
	nodes    map[string]node.Node
	states   map[string]*State
	onChange []func(Event)
	stop     chan struct{}
	stopOnce sync.Once
	logger   *slog.Logger
}

func NewChecker(cfg Config, probe Probe, logger *slog.Logger) *Checker {
	if cfg.Interval <= 0 {
		cfg.Interval = defInterval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defProbeTimeout
	}
	if cfg.UnhealthyThreshold <= 0 {
		cfg.UnhealthyThreshold = defUnhealthyThreshold
	}
	if cfg.HealthyThreshold <= 0 {
		cfg.HealthyThreshold = defHealthyThreshold
	}

	return &Checker{
		cfg:    cfg,
		probe:  probe,
		nodes:  make(map[string]node.Node),
		states: make(map[string]*State),
		stop:   make(chan struct{}),
		logger: logger,
	}
}

// OnTransition registers a callback invoked on every health flip.
func (c *Checker) OnTransition(fn func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onChange = append(c.onChange, fn)
}

// AddNode registers a node for probing. New nodes start healthy.
func (c *Checker) AddNode(n node.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nodes[n.ID] = n
	if _, ok := c.states[n.ID]; !ok {
		c.states[n.ID] = &State{Healthy: true}
	}
}

func (c *Checker) RemoveNode(nodeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.nodes, nodeID)
	delete(c.states, nodeID)
}

// Healthy reports the current hysteresis state. Unknown nodes are
// reported unhealthy so traffic is not routed blindly.
func (c *Checker) Healthy(nodeID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.states[nodeID]

	return ok && s.Healthy
}

// NodeState returns a copy of a node's probe state.
func (c *Checker) NodeState(nodeID string) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.states[nodeID]
	if !ok {
		return State{}, false
	}

	return *s, true
}

// Start runs the probe loop until Stop or context cancellation.
func (c *Checker) Start(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.CheckAll(ctx)
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *Checker) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

// CheckAll probes every registered node once.
func (c *Checker) CheckAll(ctx context.Context) {
	c.mu.Lock()
	targets := make([]node.Node, 0, len(c.nodes))
	for _, n := range c.nodes {
		targets = append(targets, n)
	}
	c.mu.Unlock()

	for _, n := range targets {
		c.checkNode(ctx, n)
	}
}

func (c *Checker) checkNode(ctx context.Context, n node.Node) {
	probeCtx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	start := time.Now()
	err := c.probe(probeCtx, n)
	elapsed := time.Since(start)

	c.mu.Lock()
	s, ok := c.states[n.ID]
	if !ok {
		c.mu.Unlock()

		return
	}

	s.LastCheck = time.Now()
	s.ResponseTime = elapsed

	var events []Event
	if err != nil {
		s.ConsecutiveSuccesses = 0
		s.ConsecutiveFailures++
		if s.Healthy && s.ConsecutiveFailures >= c.cfg.UnhealthyThreshold {
			s.Healthy = false
			events = append(events, Event{NodeID: n.ID, Healthy: false, At: s.LastCheck})
		}
	} else {
		s.ConsecutiveFailures = 0
		s.ConsecutiveSuccesses++
		if !s.Healthy && s.ConsecutiveSuccesses >= c.cfg.HealthyThreshold {
			s.Healthy = true
			events = append(events, Event{NodeID: n.ID, Healthy: true, At: s.LastCheck})
		}
	}
	callbacks := make([]func(Event), len(c.onChange))
	copy(callbacks, c.onChange)
	c.mu.Unlock()

	if err != nil && c.logger != nil {
		c.logger.Warn("health probe failed",
			slog.String("node_id", n.ID),
			slog.Duration("response_time", elapsed),
			slog.Any("error", err))
	}

	for _, ev := range events {
		for _, fn := range callbacks {
			fn(ev)
		}
	}
}
