package crypto_test

import (
	"context"
	"testing"

	"github.com/fedmesh/fedmesh/pkg/crypto"
	pkgerrors "github.com/fedmesh/fedmesh/pkg/errors"
	"github.com/fedmesh/fedmesh/pkg/message"
	"github.com/fedmesh/fedmesh/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerInitiate(t *testing.T) {
	ctx := context.Background()
	store := storage.NewInMemoryStorage()
	km := crypto.NewKeyManager(store, 0)
	handle := crypto.Handler(km)

	msg, err := message.New(message.TypeKeyExchangeInit, "node-1", crypto.ExchangeInitRequest{
		Purpose:      crypto.PurposeSecureAggregation,
		Participants: []string{"node-2", "node-3"},
	})
	require.NoError(t, err)
	require.NoError(t, handle(ctx, msg))

	entries, total, err := store.List(ctx, 0, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(1), total)

	entry, ok := entries[0].(crypto.Entry)
	require.True(t, ok)
	assert.Equal(t, crypto.PurposeSecureAggregation, entry.Purpose)
	assert.ElementsMatch(t, []string{"node-1", "node-2", "node-3"}, entry.Participants)
	assert.Equal(t, []string{"node-1"}, entry.ActiveParticipants)
}

func TestHandlerAcceptRevokeRotate(t *testing.T) {
	ctx := context.Background()
	km := crypto.NewKeyManager(storage.NewInMemoryStorage(), 0)
	handle := crypto.Handler(km)

	entry, err := km.InitiateExchange(ctx, "node-1", crypto.PurposeHomomorphic, []string{"node-2"})
	require.NoError(t, err)

	msg, err := message.New(message.TypeKeyExchangeAccept, "node-2", crypto.ExchangeAcceptRequest{KeyID: entry.KeyID})
	require.NoError(t, err)
	require.NoError(t, handle(ctx, msg))

	got, err := km.Key(ctx, entry.KeyID)
	require.NoError(t, err)
	assert.Contains(t, got.ActiveParticipants, "node-2")

	msg, err = message.New(message.TypeKeyExchangeAccept, "node-3", crypto.ExchangeAcceptRequest{KeyID: entry.KeyID})
	require.NoError(t, err)
	assert.ErrorIs(t, handle(ctx, msg), pkgerrors.ErrAuthorizationFailed)

	msg, err = message.New(message.TypeKeyRevoke, "node-2", crypto.RevokeRequest{KeyID: entry.KeyID})
	require.NoError(t, err)
	require.NoError(t, handle(ctx, msg))

	got, err = km.Key(ctx, entry.KeyID)
	require.NoError(t, err)
	assert.NotContains(t, got.Participants, "node-2")
	assert.NotContains(t, got.ActiveParticipants, "node-2")

	msg, err = message.New(message.TypeKeyRotate, "node-1", crypto.RotateRequest{KeyID: entry.KeyID})
	require.NoError(t, err)
	require.NoError(t, handle(ctx, msg))

	_, err = km.Key(ctx, entry.KeyID)
	assert.ErrorIs(t, err, pkgerrors.ErrAuthorizationFailed)
}

func TestHandlerIgnoresOtherTypes(t *testing.T) {
	km := crypto.NewKeyManager(storage.NewInMemoryStorage(), 0)
	handle := crypto.Handler(km)

	msg, err := message.New(message.TypeDirect, "node-1", map[string]string{"note": "hello"})
	require.NoError(t, err)
	assert.NoError(t, handle(context.Background(), msg))
}

func TestHandlerMalformedPayload(t *testing.T) {
	km := crypto.NewKeyManager(storage.NewInMemoryStorage(), 0)
	handle := crypto.Handler(km)

	msg, err := message.New(message.TypeKeyExchangeInit, "node-1", nil)
	require.NoError(t, err)
	msg.Payload = []byte("{not-json")

	assert.ErrorIs(t, handle(context.Background(), msg), pkgerrors.ErrInvalidMessage)
}
