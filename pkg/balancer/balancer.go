package balancer

import (
	"errors"
	"sync"
	"time"

	"github.com/fedmesh/fedmesh/node"
)

var (
	ErrNoNodes        = errors.New("no node was provided")
	ErrNoHealthyNodes = errors.New("no healthy node available")
)

// Balancer selects a target node from the healthy set. Strategies share
// a Registry of per-node stats fed by the federation manager.
type Balancer interface {
	SelectNode(nodes []node.Node) (node.Node, error)
}

// Stats tracks the observed performance of one node.
type Stats struct {
	ActiveConnections int           `json:"active_connections"`
	SuccessRate       float64       `json:"success_rate"`
	AvgResponseTime   time.Duration `json:"avg_response_time"`
	Weight            float64       `json:"weight"`
	Healthy           bool          `json:"healthy"`
	LastUpdated       time.Time     `json:"last_updated"`
}

// Registry holds per-node stats behind a mutex. Nodes without an entry
// are treated as healthy with a neutral success rate.
type Registry struct {
	mu    sync.RWMutex
	stats map[string]*Stats
}

func NewRegistry() *Registry {
	return &Registry{
		stats: make(map[string]*Stats),
	}
}

const emaAlpha = 0.2

func (r *Registry) get(nodeID string) *Stats {
	s, ok := r.stats[nodeID]
	if !ok {
		s = &Stats{SuccessRate: 0.5, Weight: 1, Healthy: true}
		r.stats[nodeID] = s
	}

	return s
}

// RecordSuccess folds a successful send into the moving success rate.
func (r *Registry) RecordSuccess(nodeID string, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.get(nodeID)
	s.SuccessRate = emaAlpha*1.0 + (1-emaAlpha)*s.SuccessRate
	if s.AvgResponseTime == 0 {
		s.AvgResponseTime = latency
	} else {
		s.AvgResponseTime = time.Duration(emaAlpha*float64(latency) + (1-emaAlpha)*float64(s.AvgResponseTime))
	}
	s.Healthy = true
	s.LastUpdated = time.Now()
}

// RecordFailure folds a failed send into the moving success rate.
func (r *Registry) RecordFailure(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.get(nodeID)
	s.SuccessRate = (1 - emaAlpha) * s.SuccessRate
	s.LastUpdated = time.Now()
}

// SetHealthy flips the health flag, normally driven by the health checker.
func (r *Registry) SetHealthy(nodeID string, healthy bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.get(nodeID)
	s.Healthy = healthy
	s.LastUpdated = time.Now()
}

// AddConnection and ReleaseConnection keep the active connection count
// used by the least-connections strategy.
func (r *Registry) AddConnection(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.get(nodeID).ActiveConnections++
}

func (r *Registry) ReleaseConnection(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.get(nodeID)
	if s.ActiveConnections > 0 {
		s.ActiveConnections--
	}
}

// Healthy reports whether the node may receive traffic. Unknown nodes
// are assumed healthy until proven otherwise.
func (r *Registry) Healthy(nodeID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.stats[nodeID]
	if !ok {
		return true
	}

	return s.Healthy
}

// Snapshot returns a copy of the stats for one node.
func (r *Registry) Snapshot(nodeID string) (Stats, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.stats[nodeID]
	if !ok {
		return Stats{}, false
	}

	return *s, true
}

func (r *Registry) active(nodeID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.stats[nodeID]
	if !ok {
		return 0
	}

	return s.ActiveConnections
}

// healthyNodes filters the candidate list through the registry.
func healthyNodes(r *Registry, nodes []node.Node) []node.Node {
	out := make([]node.Node, 0, len(nodes))
	for i := range nodes {
		if r.Healthy(nodes[i].ID) {
			out = append(out, nodes[i])
		}
	}

	return out
}
