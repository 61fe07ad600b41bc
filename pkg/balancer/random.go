package balancer

import (
	"math/rand"

	"github.com/fedmesh/fedmesh/node"
)

type random struct {
	registry *Registry
}

func NewRandom(registry *Registry) Balancer {
	return &random{
		registry: registry,
	}
}

func (r *random) SelectNode(nodes []node.Node) (node.Node, error) {
	if len(nodes) == 0 {
		return node.Node{}, ErrNoNodes
	}

	healthy := healthyNodes(r.registry, nodes)
	if len(healthy) == 0 {
		return node.Node{}, ErrNoHealthyNodes
	}

	return healthy[rand.Intn(len(healthy))], nil
}
