package balancer

import (
	"github.com/fedmesh/fedmesh/node"
)

type leastConnections struct {
	registry *Registry
}

func NewLeastConnections(registry *Registry) Balancer {
	return &leastConnections{
		registry: registry,
	}
}

func (l *leastConnections) SelectNode(nodes []node.Node) (node.Node, error) {
	if len(nodes) == 0 {
		return node.Node{}, ErrNoNodes
	}

	healthy := healthyNodes(l.registry, nodes)
	if len(healthy) == 0 {
		return node.Node{}, ErrNoHealthyNodes
	}

	best := healthy[0]
	bestActive := l.registry.active(best.ID)
	for _, n := range healthy[1:] {
		if a := l.registry.active(n.ID); a < bestActive {
			best = n
			bestActive = a
		}
	}

	return best, nil
}
