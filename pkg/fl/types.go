// Package fl implements the model aggregation algorithms, update
// validation and round persistence for federated learning.
package fl

import (
	"time"

	"github.com/fedmesh/fedmesh/pkg/crypto"
)

// Tensors are model weights or gradients keyed by layer name.
type Tensors map[string][][]float64

// Clone returns a deep copy.
func (t Tensors) Clone() Tensors {
	out := make(Tensors, len(t))
	for layer, tensor := range t {
		rows := make([][]float64, len(tensor))
		for i, row := range tensor {
			rows[i] = make([]float64, len(row))
			copy(rows[i], row)
		}
		out[layer] = rows
	}

	return out
}

// Metadata carries the training statistics reported with an update.
type Metadata struct {
	Accuracy    float64 `json:"accuracy"`
	Loss        float64 `json:"loss"`
	Epoch       int     `json:"epoch"`
	DatasetSize int     `json:"dataset_size"`
}

// ModelUpdate is a participant's trained weights for one round.
type ModelUpdate struct {
	RoundID          string              `json:"round_id"`
	NodeID           string              `json:"node_id"`
	Weights          Tensors             `json:"weights,omitempty"`
	Encrypted        bool                `json:"encrypted"`
	HomomorphicKeyID string              `json:"homomorphic_key_id,omitempty"`
	Ciphertexts      []crypto.Ciphertext `json:"ciphertexts,omitempty"`
	Metadata         Metadata            `json:"metadata"`
	ReceivedAt       time.Time           `json:"received_at"`
}

// GradientUpdate is a participant's raw gradients for one round.
type GradientUpdate struct {
	RoundID    string    `json:"round_id"`
	NodeID     string    `json:"node_id"`
	Gradients  Tensors   `json:"gradients"`
	Metadata   Metadata  `json:"metadata"`
	ReceivedAt time.Time `json:"received_at"`
}

// Model is an aggregated global model snapshot.
type Model struct {
	Version   uint64    `json:"version"`
	RoundID   string    `json:"round_id"`
	Weights   Tensors   `json:"weights"`
	Metadata  Metadata  `json:"metadata"`
	Algorithm string    `json:"algorithm"`
	CreatedAt time.Time `json:"created_at"`
}

// Aggregator combines weighted model updates into a new global model.
type Aggregator interface {
	Aggregate(updates []ModelUpdate, weights []float64) (Model, error)
}

// RoundStatus is the lifecycle state of an aggregation round.
type RoundStatus string

const (
	RoundActive    RoundStatus = "active"
	RoundCompleted RoundStatus = "completed"
	RoundFailed    RoundStatus = "failed"
)

// Round is one instance of the aggregation protocol. Terminal states
// are completed and failed; a timed-out round is forcibly failed.
type Round struct {
	RoundID         string      `json:"round_id"`
	Algorithm       string      `json:"algorithm"`
	Participants    []string    `json:"participants"`
	ModelVersion    uint64      `json:"model_version"`
	StartTime       time.Time   `json:"start_time"`
	EndTime         time.Time   `json:"end_time,omitzero"`
	Status          RoundStatus `json:"status"`
	AggregatedModel *Model      `json:"aggregated_model,omitempty"`
}
