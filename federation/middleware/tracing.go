package middleware

import (
	"context"

	"github.com/fedmesh/fedmesh/federation"
	"github.com/fedmesh/fedmesh/node"
	"github.com/fedmesh/fedmesh/pkg/message"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var _ federation.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    federation.Service
}

func Tracing(tracer trace.Tracer, svc federation.Service) federation.Service {
	return &tracing{tracer, svc}
}

func (tm *tracing) Start(ctx context.Context) error {
	ctx, span := tm.tracer.Start(ctx, "start")
	defer span.End()

	return tm.svc.Start(ctx)
}

func (tm *tracing) Stop(ctx context.Context) error {
	ctx, span := tm.tracer.Start(ctx, "stop")
	defer span.End()

	return tm.svc.Stop(ctx)
}

func (tm *tracing) ConnectNode(ctx context.Context, n node.Node) (node.Node, error) {
	ctx, span := tm.tracer.Start(ctx, "connect-node", trace.WithAttributes(
		attribute.String("id", n.ID),
		attribute.String("address", n.Address),
	))
	defer span.End()

	return tm.svc.ConnectNode(ctx, n)
}

func (tm *tracing) DisconnectNode(ctx context.Context, nodeID string) error {
	ctx, span := tm.tracer.Start(ctx, "disconnect-node", trace.WithAttributes(
		attribute.String("id", nodeID),
	))
	defer span.End()

	return tm.svc.DisconnectNode(ctx, nodeID)
}

func (tm *tracing) GetNode(ctx context.Context, nodeID string) (node.Node, error) {
	ctx, span := tm.tracer.Start(ctx, "get-node", trace.WithAttributes(
		attribute.String("id", nodeID),
	))
	defer span.End()

	return tm.svc.GetNode(ctx, nodeID)
}

func (tm *tracing) ListNodes(ctx context.Context, offset, limit uint64) (node.NodePage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-nodes", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListNodes(ctx, offset, limit)
}

func (tm *tracing) SendMessage(ctx context.Context, msg message.Message) error {
	ctx, span := tm.tracer.Start(ctx, "send-message", trace.WithAttributes(
		attribute.String("message_id", msg.ID),
		attribute.String("type", string(msg.Type)),
	))
	defer span.End()

	return tm.svc.SendMessage(ctx, msg)
}

func (tm *tracing) BroadcastMessage(ctx context.Context, msg message.Message) error {
	ctx, span := tm.tracer.Start(ctx, "broadcast-message", trace.WithAttributes(
		attribute.String("message_id", msg.ID),
		attribute.String("type", string(msg.Type)),
	))
	defer span.End()

	return tm.svc.BroadcastMessage(ctx, msg)
}

func (tm *tracing) Metrics(ctx context.Context) (federation.Metrics, error) {
	ctx, span := tm.tracer.Start(ctx, "metrics")
	defer span.End()

	return tm.svc.Metrics(ctx)
}
