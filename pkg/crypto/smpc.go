package crypto

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"

	pkgerrors "github.com/fedmesh/fedmesh/pkg/errors"
)

// Protocol selects the multi-party computation flavor.
type Protocol string

const (
	ProtocolSecretSharing Protocol = "secret_sharing"
	ProtocolHomomorphic   Protocol = "homomorphic"
)

// SMPC is the strategy contract for secure multi-party computation
// over per-participant scalar inputs. All methods reconstruct a single
// result from the joint inputs.
type SMPC interface {
	SecretSharing(participants []string, inputs map[string]float64) (float64, error)
	HomomorphicComputation(participants []string, inputs map[string]float64) (float64, error)
	MultiParty(participants []string, inputs map[string]float64, protocol Protocol) (float64, error)
}

var (
	errNoInputs        = errors.New("no participant inputs")
	errMissingInput    = errors.New("participant has no input")
	errUnknownProtocol = errors.New("unknown computation protocol")
)

// SimulatedSMPC implements the multi-party contract with additive
// secret sharing over plain arithmetic. The sharing round trip is
// faithful (shares sum to the input) even though no network peers are
// involved.
type SimulatedSMPC struct {
	he Homomorphic
}

func NewSimulatedSMPC(he Homomorphic) *SimulatedSMPC {
	return &SimulatedSMPC{he: he}
}

// SecretSharing splits every participant's input into one additive
// share per participant, sums the shares column-wise and reconstructs
// the joint sum.
func (s *SimulatedSMPC) SecretSharing(participants []string, inputs map[string]float64) (float64, error) {
	if err := checkInputs(participants, inputs); err != nil {
		return 0, err
	}

	n := len(participants)
	columns := make([]float64, n)
	for _, p := range participants {
		shares := split(inputs[p], n)
		for i, sh := range shares {
			columns[i] += sh
		}
	}

	var result float64
	for _, c := range columns {
		result += c
	}

	return result, nil
}

// HomomorphicComputation encrypts every input under a shared session
// key, aggregates the ciphertexts and decrypts the joint sum.
func (s *SimulatedSMPC) HomomorphicComputation(participants []string, inputs map[string]float64) (float64, error) {
	if err := checkInputs(participants, inputs); err != nil {
		return 0, err
	}

	const sessionKey = "smpc-session"
	cts := make([]Ciphertext, 0, len(participants))
	weights := make([]float64, 0, len(participants))
	for _, p := range participants {
		ct, err := s.he.Encrypt(sessionKey, []float64{inputs[p]})
		if err != nil {
			return 0, err
		}
		cts = append(cts, ct)
		weights = append(weights, 1)
	}

	agg, err := s.he.Aggregate(cts, weights)
	if err != nil {
		return 0, err
	}
	plain, err := s.he.Decrypt(sessionKey, agg)
	if err != nil {
		return 0, err
	}

	return plain[0], nil
}

// MultiParty dispatches to the selected protocol.
func (s *SimulatedSMPC) MultiParty(participants []string, inputs map[string]float64, protocol Protocol) (float64, error) {
	switch protocol {
	case ProtocolSecretSharing:
		return s.SecretSharing(participants, inputs)
	case ProtocolHomomorphic:
		return s.HomomorphicComputation(participants, inputs)
	default:
		return 0, errors.Join(pkgerrors.ErrInvalidMessage, errUnknownProtocol)
	}
}

func checkInputs(participants []string, inputs map[string]float64) error {
	if len(participants) == 0 || len(inputs) == 0 {
		return errors.Join(pkgerrors.ErrInvalidMessage, errNoInputs)
	}
	for _, p := range participants {
		if _, ok := inputs[p]; !ok {
			return errors.Join(pkgerrors.ErrInvalidMessage, errMissingInput)
		}
	}

	return nil
}

// split produces n additive shares of value: n-1 random shares and one
// balancing share so they sum back to the value.
func split(value float64, n int) []float64 {
	shares := make([]float64, n)
	var sum float64
	for i := range n - 1 {
		shares[i] = randomShare()
		sum += shares[i]
	}
	shares[n-1] = value - sum

	return shares
}

func randomShare() float64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0
	}
	n := binary.BigEndian.Uint64(b[:])

	return float64(n>>11)/float64(1<<53)*200 - 100
}
