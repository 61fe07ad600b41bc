// Package federation implements the top-level federation manager: node
// lifecycle, outbound routing through the load balancer and connection
// pool, inbound dispatch to the learning subsystems and the metrics
// surface.
package federation

import (
	"context"

	"github.com/fedmesh/fedmesh/node"
	"github.com/fedmesh/fedmesh/pkg/message"
)

// MessageHandler consumes an inbound federation message.
type MessageHandler func(ctx context.Context, msg message.Message) error

// MessageTap observes accepted inbound messages without consuming
// them.
type MessageTap func(msg message.Message)

// MessageTapper registers message observers. The concrete service
// implements it; middleware does not need to.
type MessageTapper interface {
	TapMessages(t MessageTap) (cancel func())
}

// Metrics is the pollable counter snapshot of the federation plane.
type Metrics struct {
	MessagesSent      uint64  `json:"messages_sent"`
	MessagesReceived  uint64  `json:"messages_received"`
	BytesSent         uint64  `json:"bytes_sent"`
	BytesReceived     uint64  `json:"bytes_received"`
	ConnectionsActive int     `json:"connections_active"`
	ConnectionsTotal  uint64  `json:"connections_total"`
	ErrorsTotal       uint64  `json:"errors_total"`
	LatencyMs         float64 `json:"latency_ms"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

type Service interface {
	// Start brings up the federation plane: transport subscriptions,
	// health checking and the heartbeat loop.
	Start(ctx context.Context) error

	// Stop tears the plane down in reverse order and drains the pool.
	Stop(ctx context.Context) error

	// ConnectNode registers a node and establishes both transport
	// channels to it.
	ConnectNode(ctx context.Context, n node.Node) (node.Node, error)

	// DisconnectNode removes a node and closes its pooled connections.
	DisconnectNode(ctx context.Context, nodeID string) error

	GetNode(ctx context.Context, nodeID string) (node.Node, error)
	ListNodes(ctx context.Context, offset, limit uint64) (node.NodePage, error)

	// SendMessage routes a message to its target node, or to a
	// balancer-selected node when no target is set. Messages with
	// priority high or above are additionally sent over the RPC
	// channel; receivers deduplicate by message ID.
	SendMessage(ctx context.Context, msg message.Message) error

	// BroadcastMessage fans a message out to every federation member
	// over the streaming channel without per-node acknowledgement.
	BroadcastMessage(ctx context.Context, msg message.Message) error

	Metrics(ctx context.Context) (Metrics, error)
}
