package participant

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	pkgerrors "github.com/fedmesh/fedmesh/pkg/errors"
	"github.com/fedmesh/fedmesh/pkg/privacy"
	"github.com/fedmesh/fedmesh/pkg/storage"
)

var (
	errBlacklisted   = errors.New("participant is blacklisted")
	errNotActive     = errors.New("participant is not active")
	errInvalidStatus = errors.New("invalid participant status")
)

// defaultReputation is the score assigned to newly registered
// participants. It sits above the round-selection floor so a fresh
// federation can seat its first round without manual reputation bumps.
const defaultReputation = 0.6

// Manager owns the participant registry. All reputation and status
// mutations go through it.
type Manager struct {
	store   storage.Storage
	budgets *privacy.BudgetManager
	logger  *slog.Logger
}

func NewManager(store storage.Storage, budgets *privacy.BudgetManager, logger *slog.Logger) *Manager {
	return &Manager{store: store, budgets: budgets, logger: logger}
}

// Register adds a participant to the registry with the default
// reputation and an empty contribution record.
func (m *Manager) Register(ctx context.Context, p Participant) (Participant, error) {
	if p.NodeID == "" {
		return Participant{}, errors.Join(pkgerrors.ErrInvalidMessage, errors.New("empty node id"))
	}

	p.ReputationScore = defaultReputation
	p.ContributionCount = 0
	p.Status = Active
	p.RegisteredAt = time.Now()

	if err := m.store.Create(ctx, p.NodeID, p); err != nil {
		return Participant{}, err
	}

	m.logger.Info("participant registered",
		slog.String("node_id", p.NodeID),
		slog.Float64("reputation", p.ReputationScore))

	return p, nil
}

// Unregister removes a participant from the registry.
func (m *Manager) Unregister(ctx context.Context, nodeID string) error {
	return m.store.Delete(ctx, nodeID)
}

// Participant returns a registry entry.
func (m *Manager) Participant(ctx context.Context, nodeID string) (Participant, error) {
	return m.get(ctx, nodeID)
}

// List returns a page of participants.
func (m *Manager) List(ctx context.Context, offset, limit uint64) (Page, error) {
	items, total, err := m.store.List(ctx, offset, limit)
	if err != nil {
		return Page{}, err
	}

	participants := make([]Participant, 0, len(items))
	for _, item := range items {
		if p, ok := item.(Participant); ok {
			participants = append(participants, p)
		}
	}

	return Page{Offset: offset, Limit: limit, Total: total, Participants: participants}, nil
}

// UpdateReputation applies a delta to a participant's reputation,
// clamping the result to [0, 1].
func (m *Manager) UpdateReputation(ctx context.Context, nodeID string, delta float64, reason string) (Participant, error) {
	p, err := m.get(ctx, nodeID)
	if err != nil {
		return Participant{}, err
	}

	p.ReputationScore = clamp(p.ReputationScore + delta)
	if err := m.store.Update(ctx, nodeID, p); err != nil {
		return Participant{}, err
	}

	m.logger.Info("reputation updated",
		slog.String("node_id", nodeID),
		slog.Float64("delta", delta),
		slog.Float64("score", p.ReputationScore),
		slog.String("reason", reason))

	return p, nil
}

// RecordContribution bumps the contribution counter and timestamp.
func (m *Manager) RecordContribution(ctx context.Context, nodeID string) error {
	p, err := m.get(ctx, nodeID)
	if err != nil {
		return err
	}

	p.ContributionCount++
	p.LastContribution = time.Now()

	return m.store.Update(ctx, nodeID, p)
}

// Suspend moves an active participant to suspended. Blacklisted
// participants stay blacklisted.
func (m *Manager) Suspend(ctx context.Context, nodeID, reason string) error {
	return m.transition(ctx, nodeID, Suspended, reason)
}

// Reactivate moves a suspended participant back to active. This is the
// only path out of suspension and there is none out of blacklisting.
func (m *Manager) Reactivate(ctx context.Context, nodeID string) error {
	return m.transition(ctx, nodeID, Active, "reactivated")
}

// Blacklist permanently bans a participant for a severe violation.
func (m *Manager) Blacklist(ctx context.Context, nodeID, reason string) error {
	return m.transition(ctx, nodeID, Blacklisted, reason)
}

// EligibleParticipants returns active participants with reputation
// above the floor, ordered by reputation descending. This is the
// selection pool for new aggregation rounds.
func (m *Manager) EligibleParticipants(ctx context.Context, minReputation float64) ([]Participant, error) {
	var eligible []Participant
	var offset uint64
	for {
		items, total, err := m.store.List(ctx, offset, 100)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			p, ok := item.(Participant)
			if !ok {
				continue
			}
			if p.Status == Active && p.ReputationScore > minReputation {
				eligible = append(eligible, p)
			}
		}
		offset += uint64(len(items))
		if offset >= total || len(items) == 0 {
			break
		}
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].ReputationScore == eligible[j].ReputationScore {
			return eligible[i].NodeID < eligible[j].NodeID
		}

		return eligible[i].ReputationScore > eligible[j].ReputationScore
	})

	return eligible, nil
}

// CanContribute reports whether a participant may submit updates:
// active status and privacy budget left for the spend.
func (m *Manager) CanContribute(ctx context.Context, nodeID string, epsilon float64) error {
	p, err := m.get(ctx, nodeID)
	if err != nil {
		return err
	}
	if p.Status == Blacklisted {
		return errors.Join(pkgerrors.ErrAuthorizationFailed, errBlacklisted)
	}
	if p.Status != Active {
		return errors.Join(pkgerrors.ErrAuthorizationFailed, errNotActive)
	}
	if m.budgets != nil && epsilon > 0 && !m.budgets.CanApply(nodeID, epsilon) {
		return errors.Join(pkgerrors.ErrAuthorizationFailed, errors.New("privacy budget exhausted"))
	}

	return nil
}

func (m *Manager) transition(ctx context.Context, nodeID string, to Status, reason string) error {
	if !to.Valid() {
		return errors.Join(pkgerrors.ErrInvalidMessage, errInvalidStatus)
	}

	p, err := m.get(ctx, nodeID)
	if err != nil {
		return err
	}
	if p.Status == Blacklisted {
		return errors.Join(pkgerrors.ErrAuthorizationFailed, errBlacklisted)
	}
	if p.Status == to {
		return nil
	}

	p.Status = to
	if err := m.store.Update(ctx, nodeID, p); err != nil {
		return err
	}

	m.logger.Info("participant status changed",
		slog.String("node_id", nodeID),
		slog.String("status", string(to)),
		slog.String("reason", reason))

	return nil
}

func (m *Manager) get(ctx context.Context, nodeID string) (Participant, error) {
	item, err := m.store.Get(ctx, nodeID)
	if err != nil {
		return Participant{}, err
	}
	p, ok := item.(Participant)
	if !ok {
		return Participant{}, pkgerrors.ErrInvalidData
	}

	return p, nil
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}

	return v
}
