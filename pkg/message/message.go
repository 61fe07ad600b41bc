package message

import (
	"encoding/json"
	"errors"
	"time"

	pkgerrors "github.com/fedmesh/fedmesh/pkg/errors"
	"github.com/google/uuid"
)

// Type identifies the kind of federation message carried on the wire.
type Type string

const (
	TypeHeartbeat      Type = "heartbeat"
	TypeNodeRegister   Type = "node_register"
	TypeNodeUnregister Type = "node_unregister"
	TypeNodeStatus     Type = "node_status"
	TypeHealthCheck    Type = "health_check"
	TypeHealthResponse Type = "health_response"
	TypeErrorReport    Type = "error_report"
	TypeBroadcast      Type = "broadcast"
	TypeDirect         Type = "direct"

	TypeFLRoundStart       Type = "fl_round_start"
	TypeFLRoundComplete    Type = "fl_round_complete"
	TypeFLRoundFailed      Type = "fl_round_failed"
	TypeFLModelUpdate      Type = "fl_model_update"
	TypeFLGradientUpdate   Type = "fl_gradient_update"
	TypeFLParticipantJoin  Type = "fl_participant_join"
	TypeFLParticipantLeave Type = "fl_participant_leave"
	TypeFLModelRequest     Type = "fl_model_request"
	TypeFLModelResponse    Type = "fl_model_response"

	TypeKeyExchangeInit   Type = "key_exchange_init"
	TypeKeyExchangeAccept Type = "key_exchange_accept"
	TypeKeyRevoke         Type = "key_revoke"
	TypeKeyRotate         Type = "key_rotate"

	TypeAIXQuery     Type = "aix_query"
	TypeAIXResponse  Type = "aix_response"
	TypeAIXPublish   Type = "aix_publish"
	TypeAIXSubscribe Type = "aix_subscribe"
)

// Priority orders delivery effort. High and critical messages are sent
// over both transports.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Message is the unit of exchange between federation nodes. It is
// immutable once sent; an absent TargetNodeID means the recipient is
// picked by the load balancer.
type Message struct {
	ID           string          `json:"id"`
	Type         Type            `json:"type"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
	SourceNodeID string          `json:"source_node_id"`
	TargetNodeID string          `json:"target_node_id,omitempty"`
	Priority     Priority        `json:"priority"`
	TTL          time.Duration   `json:"ttl,omitempty"`
}

// New builds a message with a fresh ID and timestamp.
func New(t Type, source string, payload any) (Message, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Message{}, errors.Join(pkgerrors.ErrInvalidMessage, err)
		}
		raw = data
	}

	return Message{
		ID:           uuid.NewString(),
		Type:         t,
		Payload:      raw,
		Timestamp:    time.Now(),
		SourceNodeID: source,
		Priority:     PriorityNormal,
	}, nil
}

// Validate enforces the minimum wire contract. Invalid messages are
// answered with an error_report, the connection stays up.
func (m Message) Validate() error {
	switch {
	case m.ID == "":
		return errors.Join(pkgerrors.ErrInvalidMessage, errors.New("empty id"))
	case m.Type == "":
		return errors.Join(pkgerrors.ErrInvalidMessage, errors.New("empty type"))
	case m.SourceNodeID == "":
		return errors.Join(pkgerrors.ErrInvalidMessage, errors.New("empty source node id"))
	case m.Timestamp.IsZero():
		return errors.Join(pkgerrors.ErrInvalidMessage, errors.New("zero timestamp"))
	case m.Priority < PriorityLow || m.Priority > PriorityCritical:
		return errors.Join(pkgerrors.ErrInvalidMessage, errors.New("priority out of range"))
	}

	return nil
}

// Expired reports whether the message TTL has elapsed at the given time.
// Messages without a TTL never expire.
func (m Message) Expired(now time.Time) bool {
	if m.TTL <= 0 {
		return false
	}

	return now.After(m.Timestamp.Add(m.TTL))
}

// IsLearning reports whether the message belongs to the federated
// learning type namespace.
func (m Message) IsLearning() bool {
	switch m.Type {
	case TypeFLRoundStart, TypeFLRoundComplete, TypeFLRoundFailed,
		TypeFLModelUpdate, TypeFLGradientUpdate,
		TypeFLParticipantJoin, TypeFLParticipantLeave,
		TypeFLModelRequest, TypeFLModelResponse:
		return true
	}

	return false
}

// IsExchange reports whether the message belongs to the intelligence
// exchange type namespace.
func (m Message) IsExchange() bool {
	switch m.Type {
	case TypeAIXQuery, TypeAIXResponse, TypeAIXPublish, TypeAIXSubscribe:
		return true
	}

	return false
}

// ErrorReport is the payload of an error_report reply to an invalid
// inbound message.
type ErrorReport struct {
	MessageID string `json:"message_id,omitempty"`
	Reason    string `json:"reason"`
}
