// Package crypto provides key lifecycle management and the secure
// computation primitives consumed by aggregation. The homomorphic and
// multi-party arithmetic is simulated; the interfaces are shaped so a
// real backend can replace the simulation without touching callers.
package crypto

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"slices"
	"time"

	pkgerrors "github.com/fedmesh/fedmesh/pkg/errors"
	"github.com/fedmesh/fedmesh/pkg/storage"
	"github.com/google/uuid"
)

// Purpose tags a key with the operation class it may be used for.
type Purpose string

const (
	PurposeHomomorphic       Purpose = "homomorphic_encryption"
	PurposeSecureAggregation Purpose = "secure_aggregation"
	PurposeSignature         Purpose = "signature_verification"
)

func (p Purpose) Valid() bool {
	switch p {
	case PurposeHomomorphic, PurposeSecureAggregation, PurposeSignature:
		return true
	default:
		return false
	}
}

// KeyPair holds the key material. Only the manager ever sees the
// private half; participants hold the key ID and the public share.
type KeyPair struct {
	Public  []byte `json:"public"`
	Private []byte `json:"-"`
}

// Entry is a managed key with its participant sets. Participants is
// the intended membership fixed at exchange initiation;
// ActiveParticipants grows as members accept the exchange.
type Entry struct {
	KeyID              string    `json:"key_id"`
	KeyPair            KeyPair   `json:"key_pair"`
	Purpose            Purpose   `json:"purpose"`
	Participants       []string  `json:"participants"`
	ActiveParticipants []string  `json:"active_participants"`
	Created            time.Time `json:"created"`
	Expires            time.Time `json:"expires,omitzero"`
	UsageCount         uint64    `json:"usage_count"`
	LastUsed           time.Time `json:"last_used,omitzero"`
}

// Expired reports whether the entry has an expiry in the past.
func (e Entry) Expired(now time.Time) bool {
	return !e.Expires.IsZero() && e.Expires.Before(now)
}

var (
	errInvalidPurpose = errors.New("invalid key purpose")
	errNotParticipant = errors.New("node is not a participant of the key exchange")
	errNoParticipants = errors.New("key exchange requires at least one participant")
	errKeyExpired     = errors.New("key has expired")
)

// KeyManager owns all key material. Entries live in the shared keyed
// registry under their key ID.
type KeyManager struct {
	store storage.Storage
	ttl   time.Duration
}

// NewKeyManager creates a key manager backed by the given registry.
// ttl of zero means keys never expire on their own.
func NewKeyManager(store storage.Storage, ttl time.Duration) *KeyManager {
	return &KeyManager{store: store, ttl: ttl}
}

// InitiateExchange creates a key entry for the given purpose and
// records the intended participant set. The initiator is always part
// of the active set.
func (km *KeyManager) InitiateExchange(ctx context.Context, initiator string, purpose Purpose, participants []string) (Entry, error) {
	if !purpose.Valid() {
		return Entry{}, errors.Join(pkgerrors.ErrInvalidMessage, errInvalidPurpose)
	}
	if len(participants) == 0 {
		return Entry{}, errors.Join(pkgerrors.ErrInvalidMessage, errNoParticipants)
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Entry{}, err
	}

	members := slices.Clone(participants)
	if !slices.Contains(members, initiator) {
		members = append(members, initiator)
	}

	entry := Entry{
		KeyID:              uuid.NewString(),
		KeyPair:            KeyPair{Public: pub, Private: priv},
		Purpose:            purpose,
		Participants:       members,
		ActiveParticipants: []string{initiator},
		Created:            time.Now(),
	}
	if km.ttl > 0 {
		entry.Expires = entry.Created.Add(km.ttl)
	}

	if err := km.store.Create(ctx, entry.KeyID, entry); err != nil {
		return Entry{}, err
	}

	return entry, nil
}

// AcceptExchange adds a node to the key's active participant set. The
// node must be in the intended participant list.
func (km *KeyManager) AcceptExchange(ctx context.Context, keyID, nodeID string) (Entry, error) {
	entry, err := km.get(ctx, keyID)
	if err != nil {
		return Entry{}, err
	}
	if entry.Expired(time.Now()) {
		return Entry{}, errors.Join(pkgerrors.ErrAuthorizationFailed, errKeyExpired)
	}
	if !slices.Contains(entry.Participants, nodeID) {
		return Entry{}, errors.Join(pkgerrors.ErrAuthorizationFailed, errNotParticipant)
	}

	if !slices.Contains(entry.ActiveParticipants, nodeID) {
		entry.ActiveParticipants = append(entry.ActiveParticipants, nodeID)
		if err := km.store.Update(ctx, entry.KeyID, entry); err != nil {
			return Entry{}, err
		}
	}

	return entry, nil
}

// RevokeAccess removes a node from both participant sets of a key.
func (km *KeyManager) RevokeAccess(ctx context.Context, keyID, nodeID string) error {
	entry, err := km.get(ctx, keyID)
	if err != nil {
		return err
	}

	entry.Participants = slices.DeleteFunc(entry.Participants, func(id string) bool {
		return id == nodeID
	})
	entry.ActiveParticipants = slices.DeleteFunc(entry.ActiveParticipants, func(id string) bool {
		return id == nodeID
	})

	return km.store.Update(ctx, entry.KeyID, entry)
}

// Rotate issues a fresh key with the same purpose and participant
// list and expires the old one immediately.
func (km *KeyManager) Rotate(ctx context.Context, keyID string) (Entry, error) {
	old, err := km.get(ctx, keyID)
	if err != nil {
		return Entry{}, err
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Entry{}, err
	}

	fresh := Entry{
		KeyID:              uuid.NewString(),
		KeyPair:            KeyPair{Public: pub, Private: priv},
		Purpose:            old.Purpose,
		Participants:       slices.Clone(old.Participants),
		ActiveParticipants: slices.Clone(old.ActiveParticipants),
		Created:            time.Now(),
	}
	if km.ttl > 0 {
		fresh.Expires = fresh.Created.Add(km.ttl)
	}

	if err := km.store.Create(ctx, fresh.KeyID, fresh); err != nil {
		return Entry{}, err
	}

	old.Expires = time.Now()
	if err := km.store.Update(ctx, old.KeyID, old); err != nil {
		return Entry{}, err
	}

	return fresh, nil
}

// Key returns a key entry and records the use.
func (km *KeyManager) Key(ctx context.Context, keyID string) (Entry, error) {
	entry, err := km.get(ctx, keyID)
	if err != nil {
		return Entry{}, err
	}
	if entry.Expired(time.Now()) {
		return Entry{}, errors.Join(pkgerrors.ErrAuthorizationFailed, errKeyExpired)
	}

	entry.UsageCount++
	entry.LastUsed = time.Now()
	if err := km.store.Update(ctx, entry.KeyID, entry); err != nil {
		return Entry{}, err
	}

	return entry, nil
}

// CleanupExpired deletes all expired key entries and returns how many
// were removed.
func (km *KeyManager) CleanupExpired(ctx context.Context) (int, error) {
	now := time.Now()
	var expired []string
	var offset uint64
	for {
		items, total, err := km.store.List(ctx, offset, 100)
		if err != nil {
			return 0, err
		}
		for _, item := range items {
			entry, ok := item.(Entry)
			if !ok {
				continue
			}
			if entry.Expired(now) {
				expired = append(expired, entry.KeyID)
			}
		}
		offset += uint64(len(items))
		if offset >= total || len(items) == 0 {
			break
		}
	}

	for _, id := range expired {
		if err := km.store.Delete(ctx, id); err != nil {
			return 0, err
		}
	}

	return len(expired), nil
}

func (km *KeyManager) get(ctx context.Context, keyID string) (Entry, error) {
	item, err := km.store.Get(ctx, keyID)
	if err != nil {
		return Entry{}, err
	}
	entry, ok := item.(Entry)
	if !ok {
		return Entry{}, pkgerrors.ErrInvalidData
	}

	return entry, nil
}
