package crypto_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fedmesh/fedmesh/pkg/crypto"
	pkgerrors "github.com/fedmesh/fedmesh/pkg/errors"
	"github.com/fedmesh/fedmesh/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, ttl time.Duration) *crypto.KeyManager {
	t.Helper()

	return crypto.NewKeyManager(storage.NewInMemoryStorage(), ttl)
}

func TestInitiateExchange(t *testing.T) {
	km := newManager(t, 0)

	cases := []struct {
		desc         string
		purpose      crypto.Purpose
		participants []string
		err          error
	}{
		{
			desc:         "valid exchange",
			purpose:      crypto.PurposeSecureAggregation,
			participants: []string{"node-1", "node-2"},
		},
		{
			desc:         "invalid purpose",
			purpose:      crypto.Purpose("signing-party"),
			participants: []string{"node-1"},
			err:          pkgerrors.ErrInvalidMessage,
		},
		{
			desc:    "no participants",
			purpose: crypto.PurposeHomomorphic,
			err:     pkgerrors.ErrInvalidMessage,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			entry, err := km.InitiateExchange(context.Background(), "node-0", tc.purpose, tc.participants)
			if tc.err != nil {
				assert.True(t, errors.Is(err, tc.err))

				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, entry.KeyID)
			assert.NotEmpty(t, entry.KeyPair.Public)
			assert.Contains(t, entry.Participants, "node-0")
			assert.Equal(t, []string{"node-0"}, entry.ActiveParticipants)
		})
	}
}

func TestAcceptExchange(t *testing.T) {
	km := newManager(t, 0)
	entry, err := km.InitiateExchange(context.Background(), "node-0", crypto.PurposeSecureAggregation, []string{"node-1", "node-2"})
	require.NoError(t, err)

	got, err := km.AcceptExchange(context.Background(), entry.KeyID, "node-1")
	require.NoError(t, err)
	assert.Contains(t, got.ActiveParticipants, "node-1")

	// Accepting twice is a no-op.
	got, err = km.AcceptExchange(context.Background(), entry.KeyID, "node-1")
	require.NoError(t, err)
	assert.Len(t, got.ActiveParticipants, 2)

	// An outsider cannot join.
	_, err = km.AcceptExchange(context.Background(), entry.KeyID, "node-9")
	assert.True(t, errors.Is(err, pkgerrors.ErrAuthorizationFailed))

	_, err = km.AcceptExchange(context.Background(), "missing", "node-1")
	assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
}

func TestRevokeAccess(t *testing.T) {
	km := newManager(t, 0)
	entry, err := km.InitiateExchange(context.Background(), "node-0", crypto.PurposeSignature, []string{"node-1"})
	require.NoError(t, err)

	_, err = km.AcceptExchange(context.Background(), entry.KeyID, "node-1")
	require.NoError(t, err)
	require.NoError(t, km.RevokeAccess(context.Background(), entry.KeyID, "node-1"))

	_, err = km.AcceptExchange(context.Background(), entry.KeyID, "node-1")
	assert.True(t, errors.Is(err, pkgerrors.ErrAuthorizationFailed))
}

func TestRotate(t *testing.T) {
	km := newManager(t, time.Hour)
	entry, err := km.InitiateExchange(context.Background(), "node-0", crypto.PurposeHomomorphic, []string{"node-1"})
	require.NoError(t, err)

	fresh, err := km.Rotate(context.Background(), entry.KeyID)
	require.NoError(t, err)
	assert.NotEqual(t, entry.KeyID, fresh.KeyID)
	assert.Equal(t, entry.Purpose, fresh.Purpose)
	assert.ElementsMatch(t, entry.Participants, fresh.Participants)

	// The old key is expired and unusable.
	_, err = km.Key(context.Background(), entry.KeyID)
	assert.True(t, errors.Is(err, pkgerrors.ErrAuthorizationFailed))

	removed, err := km.CleanupExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestKeyUsageTracking(t *testing.T) {
	km := newManager(t, 0)
	entry, err := km.InitiateExchange(context.Background(), "node-0", crypto.PurposeSignature, []string{"node-1"})
	require.NoError(t, err)

	got, err := km.Key(context.Background(), entry.KeyID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.UsageCount)
	assert.False(t, got.LastUsed.IsZero())

	got, err = km.Key(context.Background(), entry.KeyID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.UsageCount)
}

func TestHomomorphicRoundTrip(t *testing.T) {
	he := crypto.NewSimulatedHomomorphic()

	ct1, err := he.Encrypt("key-1", []float64{1, 2, 3})
	require.NoError(t, err)
	ct2, err := he.Encrypt("key-1", []float64{3, 4, 5})
	require.NoError(t, err)

	// Ciphertext differs from plaintext.
	assert.NotEqual(t, []float64{1, 2, 3}, ct1.Values)

	agg, err := he.Aggregate([]crypto.Ciphertext{ct1, ct2}, []float64{0.5, 0.5})
	require.NoError(t, err)

	plain, err := he.Decrypt("key-1", agg)
	require.NoError(t, err)
	require.Len(t, plain, 3)
	assert.InDelta(t, 2.0, plain[0], 1e-9)
	assert.InDelta(t, 3.0, plain[1], 1e-9)
	assert.InDelta(t, 4.0, plain[2], 1e-9)

	_, err = he.Decrypt("key-2", agg)
	assert.True(t, errors.Is(err, pkgerrors.ErrAuthorizationFailed))
}

func TestHomomorphicAggregateErrors(t *testing.T) {
	he := crypto.NewSimulatedHomomorphic()

	_, err := he.Aggregate(nil, nil)
	assert.True(t, errors.Is(err, pkgerrors.ErrInvalidMessage))

	ct1, _ := he.Encrypt("key-1", []float64{1})
	ct2, _ := he.Encrypt("key-2", []float64{1})
	_, err = he.Aggregate([]crypto.Ciphertext{ct1, ct2}, []float64{0.5, 0.5})
	assert.True(t, errors.Is(err, pkgerrors.ErrInvalidMessage))

	_, err = he.Aggregate([]crypto.Ciphertext{ct1}, []float64{0.5, 0.5})
	assert.True(t, errors.Is(err, pkgerrors.ErrInvalidMessage))
}

func TestSecretSharing(t *testing.T) {
	smpc := crypto.NewSimulatedSMPC(crypto.NewSimulatedHomomorphic())

	participants := []string{"node-1", "node-2", "node-3"}
	inputs := map[string]float64{"node-1": 1.5, "node-2": 2.5, "node-3": -1.0}

	sum, err := smpc.SecretSharing(participants, inputs)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, sum, 1e-6)

	_, err = smpc.SecretSharing(participants, map[string]float64{"node-1": 1})
	assert.True(t, errors.Is(err, pkgerrors.ErrInvalidMessage))
}

func TestMultiParty(t *testing.T) {
	smpc := crypto.NewSimulatedSMPC(crypto.NewSimulatedHomomorphic())

	participants := []string{"node-1", "node-2"}
	inputs := map[string]float64{"node-1": 4, "node-2": 6}

	sum, err := smpc.MultiParty(participants, inputs, crypto.ProtocolSecretSharing)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, sum, 1e-6)

	sum, err = smpc.MultiParty(participants, inputs, crypto.ProtocolHomomorphic)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, sum, 1e-6)

	_, err = smpc.MultiParty(participants, inputs, crypto.Protocol("quantum"))
	assert.True(t, errors.Is(err, pkgerrors.ErrInvalidMessage))
}
