package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"

	pkgerrors "github.com/fedmesh/fedmesh/pkg/errors"
)

// Ciphertext is a homomorphically aggregatable encrypted vector. The
// mask scale tracks the sum of aggregation weights applied so far so
// decryption can strip the accumulated masks.
type Ciphertext struct {
	KeyID     string    `json:"key_id"`
	Values    []float64 `json:"values"`
	MaskScale float64   `json:"mask_scale"`
}

// Homomorphic is the strategy contract for additively homomorphic
// encryption. The simulated implementation uses deterministic additive
// masks; a real backend plugs in without changing callers.
type Homomorphic interface {
	Encrypt(keyID string, plaintext []float64) (Ciphertext, error)
	Aggregate(ciphertexts []Ciphertext, weights []float64) (Ciphertext, error)
	Decrypt(keyID string, ct Ciphertext) ([]float64, error)
}

var (
	errNoCiphertexts   = errors.New("no ciphertexts to aggregate")
	errWeightMismatch  = errors.New("weights and ciphertexts length mismatch")
	errKeyMismatch     = errors.New("ciphertexts encrypted under different keys")
	errLengthMismatch  = errors.New("ciphertext vector length mismatch")
	errWrongDecryptKey = errors.New("ciphertext was not encrypted under this key")
)

// SimulatedHomomorphic stands in for a real additively homomorphic
// scheme. Each key derives a deterministic per-index mask; encryption
// adds the mask, weighted aggregation scales it linearly, decryption
// subtracts it.
type SimulatedHomomorphic struct{}

func NewSimulatedHomomorphic() *SimulatedHomomorphic {
	return &SimulatedHomomorphic{}
}

func (s *SimulatedHomomorphic) Encrypt(keyID string, plaintext []float64) (Ciphertext, error) {
	if keyID == "" {
		return Ciphertext{}, errors.Join(pkgerrors.ErrInvalidMessage, errors.New("empty key id"))
	}

	values := make([]float64, len(plaintext))
	for i, v := range plaintext {
		values[i] = v + mask(keyID, i)
	}

	return Ciphertext{KeyID: keyID, Values: values, MaskScale: 1}, nil
}

func (s *SimulatedHomomorphic) Aggregate(ciphertexts []Ciphertext, weights []float64) (Ciphertext, error) {
	if len(ciphertexts) == 0 {
		return Ciphertext{}, errors.Join(pkgerrors.ErrInvalidMessage, errNoCiphertexts)
	}
	if len(weights) != len(ciphertexts) {
		return Ciphertext{}, errors.Join(pkgerrors.ErrInvalidMessage, errWeightMismatch)
	}

	keyID := ciphertexts[0].KeyID
	dim := len(ciphertexts[0].Values)
	out := Ciphertext{KeyID: keyID, Values: make([]float64, dim)}
	for i, ct := range ciphertexts {
		if ct.KeyID != keyID {
			return Ciphertext{}, errors.Join(pkgerrors.ErrInvalidMessage, errKeyMismatch)
		}
		if len(ct.Values) != dim {
			return Ciphertext{}, errors.Join(pkgerrors.ErrInvalidMessage, errLengthMismatch)
		}
		for j, v := range ct.Values {
			out.Values[j] += weights[i] * v
		}
		out.MaskScale += weights[i] * ct.MaskScale
	}

	return out, nil
}

func (s *SimulatedHomomorphic) Decrypt(keyID string, ct Ciphertext) ([]float64, error) {
	if ct.KeyID != keyID {
		return nil, errors.Join(pkgerrors.ErrAuthorizationFailed, errWrongDecryptKey)
	}

	plain := make([]float64, len(ct.Values))
	for i, v := range ct.Values {
		plain[i] = v - ct.MaskScale*mask(keyID, i)
	}

	return plain, nil
}

// mask derives the deterministic additive mask for a key at an index.
func mask(keyID string, index int) float64 {
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], uint64(index))
	sum := sha256.Sum256(append([]byte(keyID), idx[:]...))
	n := binary.BigEndian.Uint64(sum[:8])

	return float64(n%1_000_000) / 1000.0
}
