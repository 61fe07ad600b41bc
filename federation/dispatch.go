package federation

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/fedmesh/fedmesh/pkg/message"
	"github.com/fedmesh/fedmesh/pkg/mqtt"
)

// inbound builds the streaming channel handler. Every received message
// is validated, deduplicated by ID and routed by its type namespace.
// Unhandled types are ignored, never errored.
func (svc *service) inbound(runCtx context.Context) mqtt.Handler {
	return func(topic string, payload []byte) error {
		svc.bytesReceived.Add(uint64(len(payload)))

		var msg message.Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			svc.reportInvalid(runCtx, "", err)

			return nil
		}
		if err := msg.Validate(); err != nil {
			svc.reportInvalid(runCtx, msg.SourceNodeID, err)

			return nil
		}

		// Own messages come back on the broadcast topic.
		if msg.SourceNodeID == svc.cfg.NodeID {
			return nil
		}
		if msg.Expired(time.Now()) {
			return nil
		}
		// Urgent messages arrive on both channels.
		if svc.deduper.Seen(msg.ID) {
			return nil
		}

		svc.messagesReceived.Add(1)
		svc.dispatch(runCtx, msg)

		return nil
	}
}

// HandleRPC ingests a message delivered over the RPC channel, applying
// the same validation, deduplication and routing as the streaming
// path.
func (svc *service) HandleRPC(ctx context.Context, msg message.Message) error {
	if err := msg.Validate(); err != nil {
		svc.errorsTotal.Add(1)

		return err
	}
	if data, err := json.Marshal(msg); err == nil {
		svc.bytesReceived.Add(uint64(len(data)))
	}
	if msg.Expired(time.Now()) {
		return nil
	}
	if svc.deduper.Seen(msg.ID) {
		return nil
	}

	svc.messagesReceived.Add(1)
	svc.dispatch(ctx, msg)

	return nil
}

func (svc *service) dispatch(ctx context.Context, msg message.Message) {
	svc.handlersMu.RLock()
	var handlers []MessageHandler
	switch {
	case msg.IsLearning():
		handlers = svc.learning
	case msg.IsExchange():
		handlers = svc.exchange
	default:
		handlers = svc.generic
	}
	taps := make([]MessageTap, 0, len(svc.taps))
	for _, t := range svc.taps {
		taps = append(taps, t)
	}
	svc.handlersMu.RUnlock()

	for _, t := range taps {
		t(msg)
	}

	for _, h := range handlers {
		if err := h(ctx, msg); err != nil {
			svc.errorsTotal.Add(1)
			svc.events.Emit(EventError, msg.SourceNodeID, err)
			svc.logger.Warn("message handler failed",
				slog.String("message_id", msg.ID),
				slog.String("type", string(msg.Type)),
				slog.Any("error", err))
		}
	}
}

// reportInvalid answers a malformed message with an error report
// instead of crashing the dispatch loop.
func (svc *service) reportInvalid(ctx context.Context, sourceNodeID string, cause error) {
	svc.errorsTotal.Add(1)

	report := message.ErrorReport{Reason: cause.Error()}
	reply, err := message.New(message.TypeErrorReport, svc.cfg.NodeID, report)
	if err != nil {
		return
	}
	reply.TargetNodeID = sourceNodeID

	topic := mqtt.ErrorTopic(svc.cfg.Federation, svc.cfg.NodeID)
	if err := svc.pubsub.Publish(ctx, topic, reply); err != nil {
		svc.logger.Warn("failed to publish error report", slog.Any("error", err))
	}
}
