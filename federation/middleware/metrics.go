package middleware

import (
	"context"
	"time"

	"github.com/fedmesh/fedmesh/federation"
	"github.com/fedmesh/fedmesh/node"
	"github.com/fedmesh/fedmesh/pkg/message"
	"github.com/go-kit/kit/metrics"
)

var _ federation.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     federation.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc federation.Service) federation.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) Start(ctx context.Context) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "start").Add(1)
		mm.latency.With("method", "start").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Start(ctx)
}

func (mm *metricsMiddleware) Stop(ctx context.Context) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "stop").Add(1)
		mm.latency.With("method", "stop").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Stop(ctx)
}

func (mm *metricsMiddleware) ConnectNode(ctx context.Context, n node.Node) (node.Node, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "connect-node").Add(1)
		mm.latency.With("method", "connect-node").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ConnectNode(ctx, n)
}

func (mm *metricsMiddleware) DisconnectNode(ctx context.Context, nodeID string) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "disconnect-node").Add(1)
		mm.latency.With("method", "disconnect-node").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.DisconnectNode(ctx, nodeID)
}

func (mm *metricsMiddleware) GetNode(ctx context.Context, nodeID string) (node.Node, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-node").Add(1)
		mm.latency.With("method", "get-node").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GetNode(ctx, nodeID)
}

func (mm *metricsMiddleware) ListNodes(ctx context.Context, offset, limit uint64) (node.NodePage, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-nodes").Add(1)
		mm.latency.With("method", "list-nodes").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListNodes(ctx, offset, limit)
}

func (mm *metricsMiddleware) SendMessage(ctx context.Context, msg message.Message) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "send-message").Add(1)
		mm.latency.With("method", "send-message").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.SendMessage(ctx, msg)
}

func (mm *metricsMiddleware) BroadcastMessage(ctx context.Context, msg message.Message) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "broadcast-message").Add(1)
		mm.latency.With("method", "broadcast-message").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.BroadcastMessage(ctx, msg)
}

func (mm *metricsMiddleware) Metrics(ctx context.Context) (federation.Metrics, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "metrics").Add(1)
		mm.latency.With("method", "metrics").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Metrics(ctx)
}
