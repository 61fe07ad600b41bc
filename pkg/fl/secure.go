package fl

import (
	"time"

	"github.com/fedmesh/fedmesh/pkg/crypto"
)

// SecureAggregator aggregates homomorphically encrypted updates
// without seeing plaintext weights, then decrypts the joint result.
// In a hardened deployment decryption belongs to a separate threshold
// party rather than the coordinator. TODO: split Decrypt behind a
// remote decryption service once one exists.
type SecureAggregator struct {
	he     crypto.Homomorphic
	layout []string
}

// NewSecureAggregator creates a secure aggregator. layout names the
// layers, in order, that the flattened ciphertext vector encodes.
func NewSecureAggregator(he crypto.Homomorphic, layout []string) *SecureAggregator {
	return &SecureAggregator{he: he, layout: layout}
}

func (s *SecureAggregator) Aggregate(updates []ModelUpdate, weights []float64) (Model, error) {
	norm, err := normalizeWeights(updates, weights)
	if err != nil {
		return Model{}, err
	}

	keyID := ""
	cts := make([]crypto.Ciphertext, 0, len(updates))
	for _, u := range updates {
		if !u.Encrypted || len(u.Ciphertexts) == 0 {
			return Model{}, ErrNotEncrypted
		}
		if keyID == "" {
			keyID = u.HomomorphicKeyID
		}
		cts = append(cts, u.Ciphertexts[0])
	}

	agg, err := s.he.Aggregate(cts, norm)
	if err != nil {
		return Model{}, err
	}
	plain, err := s.he.Decrypt(keyID, agg)
	if err != nil {
		return Model{}, err
	}

	return Model{
		RoundID:   updates[0].RoundID,
		Weights:   s.unflatten(plain),
		Metadata:  aggregateMetadata(updates),
		Algorithm: "secure",
		CreatedAt: time.Now(),
	}, nil
}

// unflatten spreads a flat vector into one row per configured layer.
// With no layout the whole vector lands in a single layer.
func (s *SecureAggregator) unflatten(plain []float64) Tensors {
	if len(s.layout) == 0 {
		return Tensors{"model": {plain}}
	}

	out := make(Tensors, len(s.layout))
	per := len(plain) / len(s.layout)
	for i, layer := range s.layout {
		start := i * per
		end := start + per
		if i == len(s.layout)-1 {
			end = len(plain)
		}
		out[layer] = [][]float64{plain[start:end]}
	}

	return out
}

// Flatten encodes layer tensors into the flat vector layout used by
// the secure aggregation path, in the given layer order.
func Flatten(t Tensors, layout []string) []float64 {
	var flat []float64
	for _, layer := range layout {
		for _, row := range t[layer] {
			flat = append(flat, row...)
		}
	}

	return flat
}
