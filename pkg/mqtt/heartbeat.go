package mqtt

import (
	"context"
	"log/slog"
	"time"
)

const defHeartbeatInterval = 30 * time.Second

// AlivePayload is published on the alive topic on a fixed interval,
// independent of application traffic.
type AlivePayload struct {
	Status string `json:"status"`
	NodeID string `json:"node_id"`
}

// StartHeartbeat publishes liveness until the context is cancelled.
func StartHeartbeat(ctx context.Context, ps PubSub, federation, nodeID string, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = defHeartbeatInterval
	}

	topic := AliveTopic(federation)
	payload := AlivePayload{Status: "online", NodeID: nodeID}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := ps.Publish(ctx, topic, payload); err != nil {
				logger.Warn("failed to publish liveness",
					slog.String("node_id", nodeID),
					slog.Any("error", err))
			}
		case <-ctx.Done():
			return
		}
	}
}
