package auth

import (
	"errors"

	pkgerrors "github.com/fedmesh/fedmesh/pkg/errors"
)

// Scheme names the supported credential kinds.
type Scheme string

const (
	SchemeToken       Scheme = "token"
	SchemeCertificate Scheme = "certificate"
	SchemeAPIKey      Scheme = "api_key"
)

// Credential is what a node presents when connecting.
type Credential struct {
	Scheme Scheme `json:"scheme"`
	Value  string `json:"value"`
}

// Authenticator verifies inbound credentials and mints outbound ones.
type Authenticator interface {
	// Mint issues a credential asserting the given node identity.
	Mint(nodeID string) (Credential, error)
	// Verify resolves a credential to the node identity it asserts,
	// or ErrAuthenticationFailed.
	Verify(cred Credential) (string, error)
}

// Manager routes credentials to the authenticator registered for their
// scheme.
type Manager struct {
	schemes map[Scheme]Authenticator
}

func NewManager() *Manager {
	return &Manager{
		schemes: make(map[Scheme]Authenticator),
	}
}

func (m *Manager) Register(s Scheme, a Authenticator) {
	m.schemes[s] = a
}

func (m *Manager) Verify(cred Credential) (string, error) {
	a, ok := m.schemes[cred.Scheme]
	if !ok {
		return "", errors.Join(pkgerrors.ErrAuthenticationFailed, errors.New("unknown scheme"))
	}

	return a.Verify(cred)
}

func (m *Manager) Mint(s Scheme, nodeID string) (Credential, error) {
	a, ok := m.schemes[s]
	if !ok {
		return Credential{}, errors.Join(pkgerrors.ErrAuthenticationFailed, errors.New("unknown scheme"))
	}

	return a.Mint(nodeID)
}
