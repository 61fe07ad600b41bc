// Package coordinator orchestrates federated learning rounds end to
// end: participant selection, submission ingestion with privacy and
// validation pipelines, quorum tracking and aggregation.
package coordinator

import (
	"context"
	"time"

	"github.com/fedmesh/fedmesh/pkg/fl"
)

// RoundConfig parameterizes one aggregation round.
type RoundConfig struct {
	Algorithm        string        `json:"algorithm"`
	MaxParticipants  int           `json:"max_participants"`
	MinReputation    float64       `json:"min_reputation"`
	Quorum           int           `json:"quorum"`
	Timeout          time.Duration `json:"timeout"`
	Mu               float64       `json:"mu,omitempty"`
	ApplyDP          bool          `json:"apply_dp"`
	Epsilon          float64       `json:"epsilon,omitempty"`
	Delta            float64       `json:"delta,omitempty"`
	Sensitivity      float64       `json:"sensitivity,omitempty"`
	ClipNorm         float64       `json:"clip_norm,omitempty"`
	HomomorphicKeyID string        `json:"homomorphic_key_id,omitempty"`
	Layout           []string      `json:"layout,omitempty"`
}

type Service interface {
	// StartRound selects eligible participants and opens a new
	// aggregation round.
	StartRound(ctx context.Context, cfg RoundConfig) (fl.Round, error)

	// SubmitGradient ingests a gradient update for an active round.
	// Gradients are clipped and, when the round applies differential
	// privacy, noised against the submitter's budget. Duplicate
	// submissions for the same (round, node) pair are no-ops.
	SubmitGradient(ctx context.Context, update fl.GradientUpdate) error

	// SubmitGradientCBOR decodes a CBOR-encoded gradient update and
	// ingests it.
	SubmitGradientCBOR(ctx context.Context, data []byte) error

	// SubmitModel ingests a model update for an active round after
	// structural validation. Poisoning detection is advisory and feeds
	// reputation; it never blocks ingestion.
	SubmitModel(ctx context.Context, update fl.ModelUpdate) error

	// SubmitModelCBOR decodes a CBOR-encoded model update and ingests
	// it.
	SubmitModelCBOR(ctx context.Context, data []byte) error

	// RoundStatus returns the round record.
	RoundStatus(ctx context.Context, roundID string) (fl.Round, error)

	// ListRounds returns the IDs of all persisted rounds.
	ListRounds(ctx context.Context) ([]string, error)

	// GlobalModel returns a model snapshot by version. Version zero
	// means the latest.
	GlobalModel(ctx context.Context, version uint64) (fl.Model, error)
}
