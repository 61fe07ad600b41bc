package middleware

import (
	"context"

	"github.com/fedmesh/fedmesh/coordinator"
	"github.com/fedmesh/fedmesh/pkg/fl"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var _ coordinator.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    coordinator.Service
}

func Tracing(tracer trace.Tracer, svc coordinator.Service) coordinator.Service {
	return &tracing{tracer, svc}
}

func (tm *tracing) StartRound(ctx context.Context, cfg coordinator.RoundConfig) (fl.Round, error) {
	ctx, span := tm.tracer.Start(ctx, "start-round", trace.WithAttributes(
		attribute.String("algorithm", cfg.Algorithm),
	))
	defer span.End()

	return tm.svc.StartRound(ctx, cfg)
}

func (tm *tracing) SubmitGradient(ctx context.Context, update fl.GradientUpdate) error {
	ctx, span := tm.tracer.Start(ctx, "submit-gradient", trace.WithAttributes(
		attribute.String("round_id", update.RoundID),
		attribute.String("node_id", update.NodeID),
	))
	defer span.End()

	return tm.svc.SubmitGradient(ctx, update)
}

func (tm *tracing) SubmitGradientCBOR(ctx context.Context, data []byte) error {
	ctx, span := tm.tracer.Start(ctx, "submit-gradient-cbor")
	defer span.End()

	return tm.svc.SubmitGradientCBOR(ctx, data)
}

func (tm *tracing) SubmitModel(ctx context.Context, update fl.ModelUpdate) error {
	ctx, span := tm.tracer.Start(ctx, "submit-model", trace.WithAttributes(
		attribute.String("round_id", update.RoundID),
		attribute.String("node_id", update.NodeID),
	))
	defer span.End()

	return tm.svc.SubmitModel(ctx, update)
}

func (tm *tracing) SubmitModelCBOR(ctx context.Context, data []byte) error {
	ctx, span := tm.tracer.Start(ctx, "submit-model-cbor")
	defer span.End()

	return tm.svc.SubmitModelCBOR(ctx, data)
}

func (tm *tracing) RoundStatus(ctx context.Context, roundID string) (fl.Round, error) {
	ctx, span := tm.tracer.Start(ctx, "round-status", trace.WithAttributes(
		attribute.String("round_id", roundID),
	))
	defer span.End()

	return tm.svc.RoundStatus(ctx, roundID)
}

func (tm *tracing) ListRounds(ctx context.Context) ([]string, error) {
	ctx, span := tm.tracer.Start(ctx, "list-rounds")
	defer span.End()

	return tm.svc.ListRounds(ctx)
}

func (tm *tracing) GlobalModel(ctx context.Context, version uint64) (fl.Model, error) {
	ctx, span := tm.tracer.Start(ctx, "global-model", trace.WithAttributes(
		attribute.Int64("version", int64(version)),
	))
	defer span.End()

	return tm.svc.GlobalModel(ctx, version)
}
