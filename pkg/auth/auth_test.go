package auth

import (
	"testing"
	"time"

	pkgerrors "github.com/fedmesh/fedmesh/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	a := NewTokenAuthenticator([]byte("secret"), time.Minute)

	cred, err := a.Mint("node-1")
	require.NoError(t, err)
	assert.Equal(t, SchemeToken, cred.Scheme)

	nodeID, err := a.Verify(cred)
	require.NoError(t, err)
	assert.Equal(t, "node-1", nodeID)
}

func TestTokenTampered(t *testing.T) {
	a := NewTokenAuthenticator([]byte("secret"), time.Minute)

	cred, err := a.Mint("node-1")
	require.NoError(t, err)

	cred.Value = "x" + cred.Value
	_, err = a.Verify(cred)
	assert.ErrorIs(t, err, pkgerrors.ErrAuthenticationFailed)

	_, err = a.Verify(Credential{Scheme: SchemeToken, Value: "not-a-token"})
	assert.ErrorIs(t, err, pkgerrors.ErrAuthenticationFailed)
}

func TestTokenExpired(t *testing.T) {
	a := NewTokenAuthenticator([]byte("secret"), time.Minute)
	cred, err := a.Mint("node-1")
	require.NoError(t, err)

	a.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = a.Verify(cred)
	assert.ErrorIs(t, err, pkgerrors.ErrAuthenticationFailed)
}

func TestTokenWrongSecret(t *testing.T) {
	mint := NewTokenAuthenticator([]byte("secret-a"), time.Minute)
	verify := NewTokenAuthenticator([]byte("secret-b"), time.Minute)

	cred, err := mint.Mint("node-1")
	require.NoError(t, err)

	_, err = verify.Verify(cred)
	assert.ErrorIs(t, err, pkgerrors.ErrAuthenticationFailed)
}

func TestAPIKey(t *testing.T) {
	a := NewAPIKeyAuthenticator("key-1")

	nodeID, err := a.Verify(Credential{Scheme: SchemeAPIKey, Value: "key-1"})
	require.NoError(t, err)
	assert.Equal(t, NodeIDFromKey("key-1"), nodeID)

	// Same key always derives the same identity.
	again, err := a.Verify(Credential{Scheme: SchemeAPIKey, Value: "key-1"})
	require.NoError(t, err)
	assert.Equal(t, nodeID, again)

	_, err = a.Verify(Credential{Scheme: SchemeAPIKey, Value: "unknown"})
	assert.ErrorIs(t, err, pkgerrors.ErrAuthenticationFailed)
}

func TestManagerRouting(t *testing.T) {
	m := NewManager()
	m.Register(SchemeToken, NewTokenAuthenticator([]byte("secret"), time.Minute))
	m.Register(SchemeAPIKey, NewAPIKeyAuthenticator("key-1"))

	cred, err := m.Mint(SchemeToken, "node-1")
	require.NoError(t, err)

	nodeID, err := m.Verify(cred)
	require.NoError(t, err)
	assert.Equal(t, "node-1", nodeID)

	_, err = m.Verify(Credential{Scheme: "unknown"})
	assert.ErrorIs(t, err, pkgerrors.ErrAuthenticationFailed)
}
