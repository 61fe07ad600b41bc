package balancer

import (
	"math/rand"

	"github.com/fedmesh/fedmesh/node"
)

// Capability weight increments. Every node starts at the base weight so
// capability-less nodes still receive a share of traffic.
const (
	baseWeight         = 1.0
	computeIncrement   = 2.0
	storageIncrement   = 1.0
	coordinationWeight = 1.5
)

type weighted struct {
	registry *Registry
}

func NewWeighted(registry *Registry) Balancer {
	return &weighted{
		registry: registry,
	}
}

// NodeWeight derives the selection weight from declared capabilities.
func NodeWeight(n node.Node) float64 {
	w := baseWeight
	if n.HasCapability(node.CapabilityCompute) {
		w += computeIncrement
	}
	if n.HasCapability(node.CapabilityStorage) {
		w += storageIncrement
	}
	if n.HasCapability(node.CapabilityCoordination) {
		w += coordinationWeight
	}

	return w
}

func (w *weighted) SelectNode(nodes []node.Node) (node.Node, error) {
	if len(nodes) == 0 {
		return node.Node{}, ErrNoNodes
	}

	healthy := healthyNodes(w.registry, nodes)
	if len(healthy) == 0 {
		return node.Node{}, ErrNoHealthyNodes
	}

	total := 0.0
	for i := range healthy {
		total += NodeWeight(healthy[i])
	}

	draw := rand.Float64() * total
	for i := range healthy {
		draw -= NodeWeight(healthy[i])
		if draw <= 0 {
			return healthy[i], nil
		}
	}

	return healthy[len(healthy)-1], nil
}
