package crypto

import (
	"context"
	"encoding/json"
	"errors"

	pkgerrors "github.com/fedmesh/fedmesh/pkg/errors"
	"github.com/fedmesh/fedmesh/pkg/message"
)

// ExchangeInitRequest is the payload of a key_exchange_init message.
type ExchangeInitRequest struct {
	Purpose      Purpose  `json:"purpose"`
	Participants []string `json:"participants"`
}

// ExchangeAcceptRequest is the payload of a key_exchange_accept
// message. The accepting node is the message source.
type ExchangeAcceptRequest struct {
	KeyID string `json:"key_id"`
}

// RevokeRequest is the payload of a key_revoke message. An empty
// NodeID revokes the sender's own access.
type RevokeRequest struct {
	KeyID  string `json:"key_id"`
	NodeID string `json:"node_id,omitempty"`
}

// RotateRequest is the payload of a key_rotate message.
type RotateRequest struct {
	KeyID string `json:"key_id"`
}

// Handler adapts the key manager to the federation dispatch plane:
// key exchange messages received over either transport drive the key
// lifecycle. Other message types pass through untouched.
func Handler(km *KeyManager) func(ctx context.Context, msg message.Message) error {
	return func(ctx context.Context, msg message.Message) error {
		switch msg.Type {
		case message.TypeKeyExchangeInit:
			var req ExchangeInitRequest
			if err := json.Unmarshal(msg.Payload, &req); err != nil {
				return errors.Join(pkgerrors.ErrInvalidMessage, err)
			}

			_, err := km.InitiateExchange(ctx, msg.SourceNodeID, req.Purpose, req.Participants)

			return err
		case message.TypeKeyExchangeAccept:
			var req ExchangeAcceptRequest
			if err := json.Unmarshal(msg.Payload, &req); err != nil {
				return errors.Join(pkgerrors.ErrInvalidMessage, err)
			}

			_, err := km.AcceptExchange(ctx, req.KeyID, msg.SourceNodeID)

			return err
		case message.TypeKeyRevoke:
			var req RevokeRequest
			if err := json.Unmarshal(msg.Payload, &req); err != nil {
				return errors.Join(pkgerrors.ErrInvalidMessage, err)
			}
			if req.NodeID == "" {
				req.NodeID = msg.SourceNodeID
			}

			return km.RevokeAccess(ctx, req.KeyID, req.NodeID)
		case message.TypeKeyRotate:
			var req RotateRequest
			if err := json.Unmarshal(msg.Payload, &req); err != nil {
				return errors.Join(pkgerrors.ErrInvalidMessage, err)
			}

			_, err := km.Rotate(ctx, req.KeyID)

			return err
		default:
			return nil
		}
	}
}
