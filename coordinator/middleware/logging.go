package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/fedmesh/fedmesh/coordinator"
	"github.com/fedmesh/fedmesh/pkg/fl"
)

var _ coordinator.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    coordinator.Service
}

func Logging(logger *slog.Logger, svc coordinator.Service) coordinator.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) StartRound(ctx context.Context, cfg coordinator.RoundConfig) (resp fl.Round, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("round",
				slog.String("algorithm", cfg.Algorithm),
				slog.Int("max_participants", cfg.MaxParticipants),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Start round failed", args...)

			return
		}
		lm.logger.Info("Start round completed successfully", args...)
	}(time.Now())

	return lm.svc.StartRound(ctx, cfg)
}

func (lm *loggingMiddleware) SubmitGradient(ctx context.Context, update fl.GradientUpdate) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("round_id", update.RoundID),
			slog.String("node_id", update.NodeID),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Submit gradient failed", args...)

			return
		}
		lm.logger.Info("Submit gradient completed successfully", args...)
	}(time.Now())

	return lm.svc.SubmitGradient(ctx, update)
}

func (lm *loggingMiddleware) SubmitGradientCBOR(ctx context.Context, data []byte) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("bytes", len(data)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Submit gradient CBOR failed", args...)

			return
		}
		lm.logger.Info("Submit gradient CBOR completed successfully", args...)
	}(time.Now())

	return lm.svc.SubmitGradientCBOR(ctx, data)
}

func (lm *loggingMiddleware) SubmitModel(ctx context.Context, update fl.ModelUpdate) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("round_id", update.RoundID),
			slog.String("node_id", update.NodeID),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Submit model failed", args...)

			return
		}
		lm.logger.Info("Submit model completed successfully", args...)
	}(time.Now())

	return lm.svc.SubmitModel(ctx, update)
}

func (lm *loggingMiddleware) SubmitModelCBOR(ctx context.Context, data []byte) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("bytes", len(data)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Submit model CBOR failed", args...)

			return
		}
		lm.logger.Info("Submit model CBOR completed successfully", args...)
	}(time.Now())

	return lm.svc.SubmitModelCBOR(ctx, data)
}

func (lm *loggingMiddleware) RoundStatus(ctx context.Context, roundID string) (resp fl.Round, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("round_id", roundID),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get round status failed", args...)

			return
		}
		lm.logger.Info("Get round status completed successfully", args...)
	}(time.Now())

	return lm.svc.RoundStatus(ctx, roundID)
}

func (lm *loggingMiddleware) ListRounds(ctx context.Context) (resp []string, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List rounds failed", args...)

			return
		}
		lm.logger.Info("List rounds completed successfully", args...)
	}(time.Now())

	return lm.svc.ListRounds(ctx)
}

func (lm *loggingMiddleware) GlobalModel(ctx context.Context, version uint64) (resp fl.Model, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("version", version),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get global model failed", args...)

			return
		}
		lm.logger.Info("Get global model completed successfully", args...)
	}(time.Now())

	return lm.svc.GlobalModel(ctx, version)
}
