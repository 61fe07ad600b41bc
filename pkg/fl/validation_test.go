package fl_test

import (
	"math"
	"testing"

	"github.com/fedmesh/fedmesh/pkg/crypto"
	"github.com/fedmesh/fedmesh/pkg/fl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateUpdate(t *testing.T) {
	reference := fl.Tensors{"dense": {{0, 0}, {0, 0}}}

	cases := []struct {
		desc   string
		update fl.ModelUpdate
		valid  bool
	}{
		{
			desc:   "valid update",
			update: fl.ModelUpdate{Weights: fl.Tensors{"dense": {{1, 2}, {3, 4}}}},
			valid:  true,
		},
		{
			desc:   "empty weights",
			update: fl.ModelUpdate{},
		},
		{
			desc:   "empty layer",
			update: fl.ModelUpdate{Weights: fl.Tensors{"dense": {}}},
		},
		{
			desc:   "NaN value",
			update: fl.ModelUpdate{Weights: fl.Tensors{"dense": {{math.NaN(), 1}, {2, 3}}}},
		},
		{
			desc:   "infinite value",
			update: fl.ModelUpdate{Weights: fl.Tensors{"dense": {{math.Inf(1), 1}, {2, 3}}}},
		},
		{
			desc:   "shape mismatch",
			update: fl.ModelUpdate{Weights: fl.Tensors{"dense": {{1, 2, 3}, {4, 5, 6}}}},
		},
		{
			desc:   "row count mismatch",
			update: fl.ModelUpdate{Weights: fl.Tensors{"dense": {{1, 2}}}},
		},
		{
			desc:   "unknown layer skips shape check",
			update: fl.ModelUpdate{Weights: fl.Tensors{"extra": {{1}}}},
			valid:  true,
		},
		{
			desc: "encrypted with ciphertexts",
			update: fl.ModelUpdate{
				Encrypted:   true,
				Ciphertexts: []crypto.Ciphertext{{KeyID: "key-1", Values: []float64{1}}},
			},
			valid: true,
		},
		{
			desc:   "encrypted without ciphertexts",
			update: fl.ModelUpdate{Encrypted: true},
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			res := fl.ValidateUpdate(tc.update, reference)
			assert.Equal(t, tc.valid, res.IsValid)
			if !tc.valid {
				assert.NotEmpty(t, res.Reason)
			}
		})
	}
}

func TestDetectPoisoning(t *testing.T) {
	honest := func(nodeID string, base float64) fl.ModelUpdate {
		return fl.ModelUpdate{
			NodeID:  nodeID,
			Weights: fl.Tensors{"dense": {{base, base + 0.1}}},
		}
	}

	updates := []fl.ModelUpdate{
		honest("node-1", 1.0),
		honest("node-2", 1.1),
		honest("node-3", 0.9),
		honest("node-4", 1.05),
		{
			NodeID:  "node-5",
			Weights: fl.Tensors{"dense": {{100, 100}}},
		},
	}

	results := fl.DetectPoisoning(updates, 0)
	require.Len(t, results, 5)

	byNode := make(map[string]fl.PoisoningResult, len(results))
	for _, r := range results {
		byNode[r.NodeID] = r
	}

	assert.True(t, byNode["node-5"].IsPoisoned)
	assert.Greater(t, byNode["node-5"].Confidence, 0.0)
	for _, id := range []string{"node-1", "node-2", "node-3", "node-4"} {
		assert.False(t, byNode[id].IsPoisoned)
	}
}

func TestDetectPoisoningTooFewSamples(t *testing.T) {
	updates := []fl.ModelUpdate{
		{NodeID: "node-1", Weights: fl.Tensors{"dense": {{1}}}},
		{NodeID: "node-2", Weights: fl.Tensors{"dense": {{1000}}}},
	}

	results := fl.DetectPoisoning(updates, 0)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.IsPoisoned)
	}
}

func TestDetectPoisoningOutlierAmongAgreeingPeers(t *testing.T) {
	updates := []fl.ModelUpdate{
		{NodeID: "node-1", Weights: fl.Tensors{"dense": {{1}}}},
		{NodeID: "node-2", Weights: fl.Tensors{"dense": {{1}}}},
		{NodeID: "node-3", Weights: fl.Tensors{"dense": {{1}}}},
		{NodeID: "node-4", Weights: fl.Tensors{"dense": {{50}}}},
	}

	results := fl.DetectPoisoning(updates, 0)
	require.Len(t, results, 4)

	byNode := make(map[string]fl.PoisoningResult, len(results))
	for _, r := range results {
		byNode[r.NodeID] = r
	}

	assert.True(t, byNode["node-4"].IsPoisoned)
	assert.Equal(t, 1.0, byNode["node-4"].Confidence)
	for _, id := range []string{"node-1", "node-2", "node-3"} {
		assert.False(t, byNode[id].IsPoisoned)
	}
}

func TestDetectPoisoningUniformPopulation(t *testing.T) {
	updates := []fl.ModelUpdate{
		{NodeID: "node-1", Weights: fl.Tensors{"dense": {{1}}}},
		{NodeID: "node-2", Weights: fl.Tensors{"dense": {{1}}}},
		{NodeID: "node-3", Weights: fl.Tensors{"dense": {{1}}}},
	}

	for _, r := range fl.DetectPoisoning(updates, 0) {
		assert.False(t, r.IsPoisoned)
	}
}
