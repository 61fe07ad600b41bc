package node

import (
	"fmt"
	"time"

	"github.com/0x6flab/namegenerator"
	"github.com/google/uuid"
)

var namegen = namegenerator.NewGenerator()

const aliveHistoryLimit = 10

// aliveTimeout bounds how stale the last heartbeat may be before a node
// is reported offline.
const aliveTimeout = 90 * time.Second

type Capability string

const (
	CapabilityCompute      Capability = "compute"
	CapabilityStorage      Capability = "storage"
	CapabilityCoordination Capability = "coordination"
	CapabilityTraining     Capability = "training"
	CapabilityAggregation  Capability = "aggregation"
)

type Status string

const (
	StatusOnline      Status = "online"
	StatusOffline     Status = "offline"
	StatusMaintenance Status = "maintenance"
	StatusError       Status = "error"
)

// Node describes one addressable federation participant process.
type Node struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Address      string       `json:"address"`
	Port         int          `json:"port"`
	Capabilities []Capability `json:"capabilities,omitempty"`
	Status       Status       `json:"status"`
	LastSeen     time.Time    `json:"last_seen"`
	AliveHistory []time.Time  `json:"alive_history,omitempty"`
}

type NodePage struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
	Total  uint64 `json:"total"`
	Nodes  []Node `json:"nodes"`
}

func NewNode(name, address string, port int, capabilities []Capability) *Node {
	if name == "" {
		name = namegen.Generate()
	}

	return &Node{
		ID:           uuid.NewString(),
		Name:         name,
		Address:      address,
		Port:         port,
		Capabilities: capabilities,
		Status:       StatusOffline,
	}
}

// Endpoint returns the host:port the RPC channel dials.
func (n Node) Endpoint() string {
	return fmt.Sprintf("%s:%d", n.Address, n.Port)
}

// Touch records a liveness signal and keeps a bounded history.
func (n *Node) Touch(at time.Time) {
	n.LastSeen = at
	n.Status = StatusOnline
	n.AliveHistory = append(n.AliveHistory, at)
	if len(n.AliveHistory) > aliveHistoryLimit {
		n.AliveHistory = n.AliveHistory[1:]
	}
}

// Refresh recomputes status from the last liveness signal.
func (n *Node) Refresh() {
	if n.Status == StatusMaintenance || n.Status == StatusError {
		return
	}

	if !n.LastSeen.IsZero() && time.Since(n.LastSeen) <= aliveTimeout {
		n.Status = StatusOnline

		return
	}
	n.Status = StatusOffline
}

// HasCapability reports whether the node declared the capability.
func (n Node) HasCapability(c Capability) bool {
	for _, have := range n.Capabilities {
		if have == c {
			return true
		}
	}

	return false
}
