// Package privacy implements differential privacy mechanisms for
// federated learning: calibrated noise injection, gradient clipping
// and per-participant privacy budget accounting.
package privacy

import (
	crand "crypto/rand"
	"errors"
	"math"

	pkgerrors "github.com/fedmesh/fedmesh/pkg/errors"
)

// Gradients are layer-keyed tensors as exchanged between participants.
type Gradients map[string][][]float64

var (
	errInvalidEpsilon     = errors.New("epsilon must be positive")
	errInvalidDelta       = errors.New("delta must be in (0, 1)")
	errInvalidSensitivity = errors.New("sensitivity must be positive")
)

// GaussianNoise returns a copy of grad with Gaussian noise calibrated
// for (epsilon, delta)-differential privacy. The standard deviation is
// sigma = sqrt(2*ln(1.25/delta)) * sensitivity / epsilon.
func GaussianNoise(grad Gradients, epsilon, delta, sensitivity float64) (Gradients, error) {
	if epsilon <= 0 {
		return nil, errors.Join(pkgerrors.ErrInvalidMessage, errInvalidEpsilon)
	}
	if delta <= 0 || delta >= 1 {
		return nil, errors.Join(pkgerrors.ErrInvalidMessage, errInvalidDelta)
	}
	if sensitivity <= 0 {
		return nil, errors.Join(pkgerrors.ErrInvalidMessage, errInvalidSensitivity)
	}

	sigma := math.Sqrt(2*math.Log(1.25/delta)) * sensitivity / epsilon
	out := make(Gradients, len(grad))
	for layer, tensor := range grad {
		noised := make([][]float64, len(tensor))
		for i, row := range tensor {
			noised[i] = make([]float64, len(row))
			for j, v := range row {
				noised[i][j] = v + sampleGaussian()*sigma
			}
		}
		out[layer] = noised
	}

	return out, nil
}

// LaplaceNoise returns a copy of grad with Laplace noise of scale
// sensitivity/epsilon added to every element.
func LaplaceNoise(grad Gradients, epsilon, sensitivity float64) (Gradients, error) {
	if epsilon <= 0 {
		return nil, errors.Join(pkgerrors.ErrInvalidMessage, errInvalidEpsilon)
	}
	if sensitivity <= 0 {
		return nil, errors.Join(pkgerrors.ErrInvalidMessage, errInvalidSensitivity)
	}

	scale := sensitivity / epsilon
	out := make(Gradients, len(grad))
	for layer, tensor := range grad {
		noised := make([][]float64, len(tensor))
		for i, row := range tensor {
			noised[i] = make([]float64, len(row))
			for j, v := range row {
				noised[i][j] = v + sampleLaplace(scale)
			}
		}
		out[layer] = noised
	}

	return out, nil
}

// ClipGradients rescales grad so that its global L2 norm does not
// exceed maxNorm. Gradients already within the bound are copied
// unchanged, so clipping is idempotent.
func ClipGradients(grad Gradients, maxNorm float64) (Gradients, error) {
	if maxNorm <= 0 {
		return nil, errors.Join(pkgerrors.ErrInvalidMessage, errors.New("max norm must be positive"))
	}

	var sum float64
	for _, tensor := range grad {
		for _, row := range tensor {
			for _, v := range row {
				sum += v * v
			}
		}
	}
	norm := math.Sqrt(sum)

	scale := 1.0
	if norm > maxNorm {
		scale = maxNorm / norm
	}

	out := make(Gradients, len(grad))
	for layer, tensor := range grad {
		clipped := make([][]float64, len(tensor))
		for i, row := range tensor {
			clipped[i] = make([]float64, len(row))
			for j, v := range row {
				clipped[i][j] = v * scale
			}
		}
		out[layer] = clipped
	}

	return out, nil
}

// Norm returns the global L2 norm of grad.
func Norm(grad Gradients) float64 {
	var sum float64
	for _, tensor := range grad {
		for _, row := range tensor {
			for _, v := range row {
				sum += v * v
			}
		}
	}

	return math.Sqrt(sum)
}

// sampleGaussian draws from the standard normal distribution using the
// Box-Muller transform over cryptographically random uniforms.
func sampleGaussian() float64 {
	u1 := sampleUniform()
	u2 := sampleUniform()
	if u1 < 1e-12 {
		u1 = 1e-12
	}

	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

// sampleLaplace draws from the Laplace distribution with the given
// scale using the inverse CDF method.
func sampleLaplace(scale float64) float64 {
	u := sampleUniform() - 0.5
	if u == 0 {
		u = 1e-12
	}

	sign := 1.0
	if u < 0 {
		sign = -1.0
		u = -u
	}

	return -scale * sign * math.Log(1-2*u)
}

// sampleUniform draws from Uniform(0, 1) using crypto/rand.
func sampleUniform() float64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0.5
	}
	n := uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
		uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7])

	return float64(n>>11) / float64(1<<53)
}
