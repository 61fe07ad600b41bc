package fl_test

import (
	"testing"

	"github.com/fedmesh/fedmesh/pkg/crypto"
	"github.com/fedmesh/fedmesh/pkg/fl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFedAvg(t *testing.T) {
	updates := []fl.ModelUpdate{
		{
			RoundID:  "round-1",
			NodeID:   "node-1",
			Weights:  fl.Tensors{"dense": {{1, 2}, {3, 4}}},
			Metadata: fl.Metadata{Accuracy: 0.8, Loss: 0.4, Epoch: 3, DatasetSize: 100},
		},
		{
			RoundID:  "round-1",
			NodeID:   "node-2",
			Weights:  fl.Tensors{"dense": {{3, 4}, {5, 6}}},
			Metadata: fl.Metadata{Accuracy: 0.6, Loss: 0.6, Epoch: 5, DatasetSize: 50},
		},
	}

	model, err := fl.NewFedAvgAggregator().Aggregate(updates, []float64{0.5, 0.5})
	require.NoError(t, err)

	want := [][]float64{{2, 3}, {4, 5}}
	require.Len(t, model.Weights["dense"], 2)
	for i := range want {
		for j := range want[i] {
			assert.InDelta(t, want[i][j], model.Weights["dense"][i][j], 1e-9)
		}
	}

	assert.InDelta(t, 0.7, model.Metadata.Accuracy, 1e-9)
	assert.InDelta(t, 0.5, model.Metadata.Loss, 1e-9)
	assert.Equal(t, 5, model.Metadata.Epoch)
	assert.Equal(t, 150, model.Metadata.DatasetSize)
	assert.Equal(t, "fedavg", model.Algorithm)
}

func TestFedAvgUnnormalizedWeights(t *testing.T) {
	updates := []fl.ModelUpdate{
		{Weights: fl.Tensors{"dense": {{2}}}},
		{Weights: fl.Tensors{"dense": {{4}}}},
	}

	// Weights 100 and 300 normalize to 0.25 and 0.75.
	model, err := fl.NewFedAvgAggregator().Aggregate(updates, []float64{100, 300})
	require.NoError(t, err)
	assert.InDelta(t, 3.5, model.Weights["dense"][0][0], 1e-9)
}

func TestFedAvgMissingLayer(t *testing.T) {
	updates := []fl.ModelUpdate{
		{Weights: fl.Tensors{"dense": {{2}}, "bias": {{1}}}},
		{Weights: fl.Tensors{"dense": {{4}}}},
	}

	model, err := fl.NewFedAvgAggregator().Aggregate(updates, []float64{0.5, 0.5})
	require.NoError(t, err)
	assert.InDelta(t, 3.0, model.Weights["dense"][0][0], 1e-9)
	// Only the first update carries the bias layer.
	assert.InDelta(t, 1.0, model.Weights["bias"][0][0], 1e-9)
}

func TestFedAvgErrors(t *testing.T) {
	_, err := fl.NewFedAvgAggregator().Aggregate(nil, nil)
	assert.ErrorIs(t, err, fl.ErrNoUpdates)

	updates := []fl.ModelUpdate{{Weights: fl.Tensors{"dense": {{1}}}}}
	_, err = fl.NewFedAvgAggregator().Aggregate(updates, []float64{0.5, 0.5})
	assert.ErrorIs(t, err, fl.ErrWeightMismatch)

	_, err = fl.NewFedAvgAggregator().Aggregate(updates, []float64{0})
	assert.ErrorIs(t, err, fl.ErrWeightMismatch)
}

func TestFedProx(t *testing.T) {
	updates := []fl.ModelUpdate{
		{Weights: fl.Tensors{"dense": {{2, 4}}}},
		{Weights: fl.Tensors{"dense": {{4, 6}}}},
	}

	model, err := fl.NewFedProxAggregator(0.1).Aggregate(updates, []float64{0.5, 0.5})
	require.NoError(t, err)
	assert.InDelta(t, 3*0.9, model.Weights["dense"][0][0], 1e-9)
	assert.InDelta(t, 5*0.9, model.Weights["dense"][0][1], 1e-9)
	assert.Equal(t, "fedprox", model.Algorithm)
}

func TestAggregateGradients(t *testing.T) {
	updates := []fl.GradientUpdate{
		{Gradients: fl.Tensors{"dense": {{1, 2}}}},
		{Gradients: fl.Tensors{"dense": {{3, 4}}}},
	}

	grads, err := fl.AggregateGradients(updates, []float64{0.5, 0.5})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, grads["dense"][0][0], 1e-9)
	assert.InDelta(t, 3.0, grads["dense"][0][1], 1e-9)

	_, err = fl.AggregateGradients(nil, nil)
	assert.ErrorIs(t, err, fl.ErrNoUpdates)
}

func TestSecureAggregator(t *testing.T) {
	he := crypto.NewSimulatedHomomorphic()
	layout := []string{"dense"}

	mk := func(nodeID string, values []float64) fl.ModelUpdate {
		ct, err := he.Encrypt("key-1", values)
		require.NoError(t, err)

		return fl.ModelUpdate{
			RoundID:          "round-1",
			NodeID:           nodeID,
			Encrypted:        true,
			HomomorphicKeyID: "key-1",
			Ciphertexts:      []crypto.Ciphertext{ct},
		}
	}

	updates := []fl.ModelUpdate{
		mk("node-1", fl.Flatten(fl.Tensors{"dense": {{1, 2}}}, layout)),
		mk("node-2", fl.Flatten(fl.Tensors{"dense": {{3, 4}}}, layout)),
	}

	model, err := fl.NewSecureAggregator(he, layout).Aggregate(updates, []float64{0.5, 0.5})
	require.NoError(t, err)
	require.Len(t, model.Weights["dense"], 1)
	assert.InDelta(t, 2.0, model.Weights["dense"][0][0], 1e-9)
	assert.InDelta(t, 3.0, model.Weights["dense"][0][1], 1e-9)
	assert.Equal(t, "secure", model.Algorithm)

	// Plaintext updates are refused on the secure path.
	_, err = fl.NewSecureAggregator(he, layout).Aggregate([]fl.ModelUpdate{
		{Weights: fl.Tensors{"dense": {{1}}}},
	}, []float64{1})
	assert.ErrorIs(t, err, fl.ErrNotEncrypted)
}
