package fl

import (
	"fmt"
	"math"
	"time"
)

// ValidationResult is the outcome of a structural model update check.
type ValidationResult struct {
	IsValid bool   `json:"is_valid"`
	Reason  string `json:"reason,omitempty"`
}

// PoisoningResult flags a statistically deviant update. Detection is
// advisory: it feeds reputation scoring and alerting, never blocks
// ingestion on its own.
type PoisoningResult struct {
	NodeID     string    `json:"node_id"`
	IsPoisoned bool      `json:"is_poisoned"`
	Confidence float64   `json:"confidence"`
	Method     string    `json:"detection_method"`
	Timestamp  time.Time `json:"timestamp"`
}

// ValidateUpdate checks an update for structural sanity: non-empty
// weights, finite values and shapes matching the reference model when
// one is given.
func ValidateUpdate(update ModelUpdate, reference Tensors) ValidationResult {
	if update.Encrypted {
		if len(update.Ciphertexts) == 0 {
			return ValidationResult{Reason: "encrypted update carries no ciphertexts"}
		}

		return ValidationResult{IsValid: true}
	}

	if len(update.Weights) == 0 {
		return ValidationResult{Reason: "update has no weights"}
	}

	for layer, tensor := range update.Weights {
		if len(tensor) == 0 {
			return ValidationResult{Reason: fmt.Sprintf("layer %s is empty", layer)}
		}
		for _, row := range tensor {
			for _, v := range row {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return ValidationResult{Reason: fmt.Sprintf("layer %s contains non-finite values", layer)}
				}
			}
		}
	}

	if reference != nil {
		for layer, ref := range reference {
			tensor, ok := update.Weights[layer]
			if !ok {
				continue
			}
			if len(tensor) != len(ref) {
				return ValidationResult{Reason: fmt.Sprintf("layer %s row count mismatch", layer)}
			}
			for i := range ref {
				if len(tensor[i]) != len(ref[i]) {
					return ValidationResult{Reason: fmt.Sprintf("layer %s shape mismatch", layer)}
				}
			}
		}
	}

	return ValidationResult{IsValid: true}
}

// defaultDeviationThreshold is the z-score multiple beyond which an
// update's L2 norm is considered an outlier.
const defaultDeviationThreshold = 2.0

// DetectPoisoning scores every update's L2 norm against leave-one-out
// statistics of the remaining submissions and flags updates deviating
// beyond threshold standard deviations. Scoring each update against
// the others only keeps a single large outlier from inflating the
// population spread and masking itself. threshold <= 0 uses the
// default.
func DetectPoisoning(updates []ModelUpdate, threshold float64) []PoisoningResult {
	if threshold <= 0 {
		threshold = defaultDeviationThreshold
	}

	now := time.Now()
	results := make([]PoisoningResult, len(updates))
	if len(updates) < 3 {
		// Too few samples for meaningful statistics.
		for i, u := range updates {
			results[i] = PoisoningResult{NodeID: u.NodeID, Method: "zscore_l2norm", Timestamp: now}
		}

		return results
	}

	norms := make([]float64, len(updates))
	for i, u := range updates {
		norms[i] = l2Norm(u.Weights)
	}

	for i, u := range updates {
		r := PoisoningResult{NodeID: u.NodeID, Method: "zscore_l2norm", Timestamp: now}

		var mean float64
		for j, n := range norms {
			if j == i {
				continue
			}
			mean += n
		}
		mean /= float64(len(norms) - 1)

		var variance float64
		for j, n := range norms {
			if j == i {
				continue
			}
			variance += (n - mean) * (n - mean)
		}
		variance /= float64(len(norms) - 1)
		stddev := math.Sqrt(variance)

		deviation := math.Abs(norms[i] - mean)
		switch {
		case stddev > 0:
			z := deviation / stddev
			if z > threshold {
				r.IsPoisoned = true
				r.Confidence = math.Min(1, z/(2*threshold))
			}
		case deviation > 0:
			// The rest of the population agrees exactly and this
			// update does not.
			r.IsPoisoned = true
			r.Confidence = 1
		}
		results[i] = r
	}

	return results
}

func l2Norm(t Tensors) float64 {
	var sum float64
	for _, tensor := range t {
		for _, row := range tensor {
			for _, v := range row {
				sum += v * v
			}
		}
	}

	return math.Sqrt(sum)
}
