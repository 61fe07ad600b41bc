package balancer

import (
	"sync"

	"github.com/fedmesh/fedmesh/node"
)

type roundRobin struct {
	mu       sync.Mutex
	registry *Registry
	next     int
}

func NewRoundRobin(registry *Registry) Balancer {
	return &roundRobin{
		registry: registry,
	}
}

func (r *roundRobin) SelectNode(nodes []node.Node) (node.Node, error) {
	if len(nodes) == 0 {
		return node.Node{}, ErrNoNodes
	}

	healthy := healthyNodes(r.registry, nodes)
	if len(healthy) == 0 {
		return node.Node{}, ErrNoHealthyNodes
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n := healthy[r.next%len(healthy)]
	r.next = (r.next + 1) % len(healthy)

	return n, nil
}
