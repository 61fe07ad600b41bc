package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"

	pkgerrors "github.com/fedmesh/fedmesh/pkg/errors"
)

// APIKeyAuthenticator maps shared API keys to node identities. The node
// ID is derived deterministically from the key, so both sides agree on
// it without coordination.
type APIKeyAuthenticator struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

func NewAPIKeyAuthenticator(keys ...string) *APIKeyAuthenticator {
	a := &APIKeyAuthenticator{
		keys: make(map[string]struct{}, len(keys)),
	}
	for _, k := range keys {
		a.keys[k] = struct{}{}
	}

	return a
}

func (a *APIKeyAuthenticator) AddKey(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.keys[key] = struct{}{}
}

// NodeIDFromKey derives the deterministic node identity of a key.
func NodeIDFromKey(key string) string {
	sum := sha256.Sum256([]byte(key))

	return "node-" + hex.EncodeToString(sum[:8])
}

func (a *APIKeyAuthenticator) Mint(nodeID string) (Credential, error) {
	return Credential{}, errors.Join(pkgerrors.ErrAuthenticationFailed,
		errors.New("api keys are provisioned out of band"))
}

func (a *APIKeyAuthenticator) Verify(cred Credential) (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if _, ok := a.keys[cred.Value]; !ok {
		return "", errors.Join(pkgerrors.ErrAuthenticationFailed, errors.New("unknown api key"))
	}

	return NodeIDFromKey(cred.Value), nil
}
