package middleware

import (
	"context"
	"time"

	"github.com/fedmesh/fedmesh/coordinator"
	"github.com/fedmesh/fedmesh/pkg/fl"
	"github.com/go-kit/kit/metrics"
)

var _ coordinator.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     coordinator.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc coordinator.Service) coordinator.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) StartRound(ctx context.Context, cfg coordinator.RoundConfig) (fl.Round, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "start-round").Add(1)
		mm.latency.With("method", "start-round").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.StartRound(ctx, cfg)
}

func (mm *metricsMiddleware) SubmitGradient(ctx context.Context, update fl.GradientUpdate) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "submit-gradient").Add(1)
		mm.latency.With("method", "submit-gradient").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.SubmitGradient(ctx, update)
}

func (mm *metricsMiddleware) SubmitGradientCBOR(ctx context.Context, data []byte) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "submit-gradient-cbor").Add(1)
		mm.latency.With("method", "submit-gradient-cbor").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.SubmitGradientCBOR(ctx, data)
}

func (mm *metricsMiddleware) SubmitModel(ctx context.Context, update fl.ModelUpdate) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "submit-model").Add(1)
		mm.latency.With("method", "submit-model").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.SubmitModel(ctx, update)
}

func (mm *metricsMiddleware) SubmitModelCBOR(ctx context.Context, data []byte) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "submit-model-cbor").Add(1)
		mm.latency.With("method", "submit-model-cbor").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.SubmitModelCBOR(ctx, data)
}

func (mm *metricsMiddleware) RoundStatus(ctx context.Context, roundID string) (fl.Round, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "round-status").Add(1)
		mm.latency.With("method", "round-status").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.RoundStatus(ctx, roundID)
}

func (mm *metricsMiddleware) ListRounds(ctx context.Context) ([]string, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-rounds").Add(1)
		mm.latency.With("method", "list-rounds").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListRounds(ctx)
}

func (mm *metricsMiddleware) GlobalModel(ctx context.Context, version uint64) (fl.Model, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "global-model").Add(1)
		mm.latency.With("method", "global-model").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GlobalModel(ctx, version)
}
