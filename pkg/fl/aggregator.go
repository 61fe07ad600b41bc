package fl

import (
	"time"
)

// FedAvgAggregator implements federated averaging: weights are
// normalized to sum one and every layer present in the first update is
// averaged elementwise across the updates that carry it.
type FedAvgAggregator struct{}

func NewFedAvgAggregator() Aggregator {
	return &FedAvgAggregator{}
}

func (f *FedAvgAggregator) Aggregate(updates []ModelUpdate, weights []float64) (Model, error) {
	norm, err := normalizeWeights(updates, weights)
	if err != nil {
		return Model{}, err
	}

	aggregated := averageLayers(updates, norm, func(u ModelUpdate) Tensors { return u.Weights })

	return Model{
		RoundID:   updates[0].RoundID,
		Weights:   aggregated,
		Metadata:  aggregateMetadata(updates),
		Algorithm: "fedavg",
		CreatedAt: time.Now(),
	}, nil
}

// FedProxAggregator runs federated averaging and then shrinks every
// weight by (1 - mu) as the proximal regularization term.
type FedProxAggregator struct {
	mu float64
}

func NewFedProxAggregator(mu float64) Aggregator {
	return &FedProxAggregator{mu: mu}
}

func (f *FedProxAggregator) Aggregate(updates []ModelUpdate, weights []float64) (Model, error) {
	inner := FedAvgAggregator{}
	model, err := inner.Aggregate(updates, weights)
	if err != nil {
		return Model{}, err
	}

	factor := 1 - f.mu
	for _, tensor := range model.Weights {
		for i := range tensor {
			for j := range tensor[i] {
				tensor[i][j] *= factor
			}
		}
	}
	model.Algorithm = "fedprox"

	return model, nil
}

// AggregateGradients applies the weighted-average machinery to raw
// gradient tensors.
func AggregateGradients(updates []GradientUpdate, weights []float64) (Tensors, error) {
	if len(updates) == 0 {
		return nil, ErrNoUpdates
	}
	if len(weights) != len(updates) {
		return nil, ErrWeightMismatch
	}

	var sum float64
	for _, w := range weights {
		sum += w
	}
	if sum == 0 {
		return nil, ErrWeightMismatch
	}
	norm := make([]float64, len(weights))
	for i, w := range weights {
		norm[i] = w / sum
	}

	wrapped := make([]ModelUpdate, len(updates))
	for i, u := range updates {
		wrapped[i] = ModelUpdate{Weights: u.Gradients}
	}

	return averageLayers(wrapped, norm, func(u ModelUpdate) Tensors { return u.Weights }), nil
}

func normalizeWeights(updates []ModelUpdate, weights []float64) ([]float64, error) {
	if len(updates) == 0 {
		return nil, ErrNoUpdates
	}
	if len(weights) != len(updates) {
		return nil, ErrWeightMismatch
	}

	var sum float64
	for _, w := range weights {
		sum += w
	}
	if sum == 0 {
		return nil, ErrWeightMismatch
	}

	norm := make([]float64, len(weights))
	for i, w := range weights {
		norm[i] = w / sum
	}

	return norm, nil
}

// averageLayers averages every layer of the first update across all
// updates carrying that layer. Updates missing a layer are skipped for
// that layer only, with the weights renormalized over the carriers.
func averageLayers(updates []ModelUpdate, norm []float64, tensors func(ModelUpdate) Tensors) Tensors {
	out := make(Tensors)
	for layer, ref := range tensors(updates[0]) {
		var carrierWeight float64
		for i, u := range updates {
			if _, ok := tensors(u)[layer]; ok {
				carrierWeight += norm[i]
			}
		}
		if carrierWeight == 0 {
			continue
		}

		acc := make([][]float64, len(ref))
		for i, row := range ref {
			acc[i] = make([]float64, len(row))
		}
		for i, u := range updates {
			tensor, ok := tensors(u)[layer]
			if !ok {
				continue
			}
			w := norm[i] / carrierWeight
			for r, row := range tensor {
				if r >= len(acc) {
					break
				}
				for c, v := range row {
					if c >= len(acc[r]) {
						break
					}
					acc[r][c] += v * w
				}
			}
		}
		out[layer] = acc
	}

	return out
}

// aggregateMetadata combines update metadata: accuracy and loss are
// plain means, epoch is the max, dataset size is summed.
func aggregateMetadata(updates []ModelUpdate) Metadata {
	var meta Metadata
	for _, u := range updates {
		meta.Accuracy += u.Metadata.Accuracy
		meta.Loss += u.Metadata.Loss
		if u.Metadata.Epoch > meta.Epoch {
			meta.Epoch = u.Metadata.Epoch
		}
		meta.DatasetSize += u.Metadata.DatasetSize
	}
	n := float64(len(updates))
	meta.Accuracy /= n
	meta.Loss /= n

	return meta
}
