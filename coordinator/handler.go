package coordinator

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/fedmesh/fedmesh/federation"
	pkgerrors "github.com/fedmesh/fedmesh/pkg/errors"
	"github.com/fedmesh/fedmesh/pkg/fl"
	"github.com/fedmesh/fedmesh/pkg/message"
)

// Handler adapts the coordinator to the federation dispatch plane:
// learning messages received over either transport are decoded and fed
// into the round state machine.
func Handler(svc Service) federation.MessageHandler {
	return func(ctx context.Context, msg message.Message) error {
		switch msg.Type {
		case message.TypeFLGradientUpdate:
			var update fl.GradientUpdate
			if err := json.Unmarshal(msg.Payload, &update); err != nil {
				return errors.Join(pkgerrors.ErrInvalidMessage, err)
			}
			if update.NodeID == "" {
				update.NodeID = msg.SourceNodeID
			}

			return svc.SubmitGradient(ctx, update)
		case message.TypeFLModelUpdate:
			var update fl.ModelUpdate
			if err := json.Unmarshal(msg.Payload, &update); err != nil {
				return errors.Join(pkgerrors.ErrInvalidMessage, err)
			}
			if update.NodeID == "" {
				update.NodeID = msg.SourceNodeID
			}

			return svc.SubmitModel(ctx, update)
		default:
			// Other learning message kinds carry no coordinator state.
			return nil
		}
	}
}
