package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/fedmesh/fedmesh/federation"
	"github.com/fedmesh/fedmesh/node"
	"github.com/fedmesh/fedmesh/pkg/message"
)

var _ federation.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    federation.Service
}

func Logging(logger *slog.Logger, svc federation.Service) federation.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) Start(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Start federation failed", args...)

			return
		}
		lm.logger.Info("Start federation completed successfully", args...)
	}(time.Now())

	return lm.svc.Start(ctx)
}

func (lm *loggingMiddleware) Stop(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Stop federation failed", args...)

			return
		}
		lm.logger.Info("Stop federation completed successfully", args...)
	}(time.Now())

	return lm.svc.Stop(ctx)
}

func (lm *loggingMiddleware) ConnectNode(ctx context.Context, n node.Node) (resp node.Node, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("node",
				slog.String("id", n.ID),
				slog.String("address", n.Address),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Connect node failed", args...)

			return
		}
		lm.logger.Info("Connect node completed successfully", args...)
	}(time.Now())

	return lm.svc.ConnectNode(ctx, n)
}

func (lm *loggingMiddleware) DisconnectNode(ctx context.Context, nodeID string) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("node_id", nodeID),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Disconnect node failed", args...)

			return
		}
		lm.logger.Info("Disconnect node completed successfully", args...)
	}(time.Now())

	return lm.svc.DisconnectNode(ctx, nodeID)
}

func (lm *loggingMiddleware) GetNode(ctx context.Context, nodeID string) (resp node.Node, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("node_id", nodeID),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get node failed", args...)

			return
		}
		lm.logger.Info("Get node completed successfully", args...)
	}(time.Now())

	return lm.svc.GetNode(ctx, nodeID)
}

func (lm *loggingMiddleware) ListNodes(ctx context.Context, offset, limit uint64) (resp node.NodePage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List nodes failed", args...)

			return
		}
		lm.logger.Info("List nodes completed successfully", args...)
	}(time.Now())

	return lm.svc.ListNodes(ctx, offset, limit)
}

func (lm *loggingMiddleware) SendMessage(ctx context.Context, msg message.Message) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("message",
				slog.String("id", msg.ID),
				slog.String("type", string(msg.Type)),
				slog.String("target", msg.TargetNodeID),
				slog.String("priority", msg.Priority.String()),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Send message failed", args...)

			return
		}
		lm.logger.Info("Send message completed successfully", args...)
	}(time.Now())

	return lm.svc.SendMessage(ctx, msg)
}

func (lm *loggingMiddleware) BroadcastMessage(ctx context.Context, msg message.Message) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("message",
				slog.String("id", msg.ID),
				slog.String("type", string(msg.Type)),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Broadcast message failed", args...)

			return
		}
		lm.logger.Info("Broadcast message completed successfully", args...)
	}(time.Now())

	return lm.svc.BroadcastMessage(ctx, msg)
}

func (lm *loggingMiddleware) Metrics(ctx context.Context) (resp federation.Metrics, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get metrics failed", args...)

			return
		}
		lm.logger.Info("Get metrics completed successfully", args...)
	}(time.Now())

	return lm.svc.Metrics(ctx)
}
