package participant_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/fedmesh/fedmesh/participant"
	pkgerrors "github.com/fedmesh/fedmesh/pkg/errors"
	"github.com/fedmesh/fedmesh/pkg/privacy"
	"github.com/fedmesh/fedmesh/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) *participant.Manager {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	budgets := privacy.NewBudgetManager(privacy.BudgetConfig{MaxBudget: 1.0}, logger)

	return participant.NewManager(storage.NewInMemoryStorage(), budgets, logger)
}

func register(t *testing.T, m *participant.Manager, nodeID string) participant.Participant {
	t.Helper()

	p, err := m.Register(context.Background(), participant.Participant{NodeID: nodeID})
	require.NoError(t, err)

	return p
}

func TestRegister(t *testing.T) {
	m := newManager(t)

	p := register(t, m, "node-1")
	assert.Equal(t, 0.6, p.ReputationScore)
	assert.Equal(t, participant.Active, p.Status)
	assert.False(t, p.RegisteredAt.IsZero())

	_, err := m.Register(context.Background(), participant.Participant{NodeID: "node-1"})
	assert.True(t, errors.Is(err, pkgerrors.ErrEntityExists))

	_, err = m.Register(context.Background(), participant.Participant{})
	assert.True(t, errors.Is(err, pkgerrors.ErrInvalidMessage))
}

func TestReputationClamping(t *testing.T) {
	m := newManager(t)
	register(t, m, "node-1")

	// Repeated large positive deltas never push the score above 1.
	for range 5 {
		p, err := m.UpdateReputation(context.Background(), "node-1", 10, "test")
		require.NoError(t, err)
		assert.LessOrEqual(t, p.ReputationScore, 1.0)
	}
	p, err := m.Participant(context.Background(), "node-1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, p.ReputationScore)

	// Repeated negative deltas never push it below 0.
	for range 5 {
		p, err = m.UpdateReputation(context.Background(), "node-1", -10, "test")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, p.ReputationScore, 0.0)
	}
	p, err = m.Participant(context.Background(), "node-1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.ReputationScore)
}

func TestStatusTransitions(t *testing.T) {
	m := newManager(t)
	register(t, m, "node-1")

	require.NoError(t, m.Suspend(context.Background(), "node-1", "poor behavior"))
	p, err := m.Participant(context.Background(), "node-1")
	require.NoError(t, err)
	assert.Equal(t, participant.Suspended, p.Status)

	require.NoError(t, m.Reactivate(context.Background(), "node-1"))
	p, _ = m.Participant(context.Background(), "node-1")
	assert.Equal(t, participant.Active, p.Status)

	// Blacklisting is terminal.
	require.NoError(t, m.Blacklist(context.Background(), "node-1", "severe violation"))
	err = m.Reactivate(context.Background(), "node-1")
	assert.True(t, errors.Is(err, pkgerrors.ErrAuthorizationFailed))
	p, _ = m.Participant(context.Background(), "node-1")
	assert.Equal(t, participant.Blacklisted, p.Status)
}

func TestEligibleParticipants(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	register(t, m, "node-low")
	register(t, m, "node-high")
	register(t, m, "node-mid")
	register(t, m, "node-suspended")

	_, err := m.UpdateReputation(ctx, "node-high", 0.4, "test")
	require.NoError(t, err)
	_, err = m.UpdateReputation(ctx, "node-mid", 0.2, "test")
	require.NoError(t, err)
	_, err = m.UpdateReputation(ctx, "node-low", -0.2, "test")
	require.NoError(t, err)
	_, err = m.UpdateReputation(ctx, "node-suspended", 0.4, "test")
	require.NoError(t, err)
	require.NoError(t, m.Suspend(ctx, "node-suspended", "test"))

	eligible, err := m.EligibleParticipants(ctx, 0.5)
	require.NoError(t, err)
	require.Len(t, eligible, 2)
	assert.Equal(t, "node-high", eligible[0].NodeID)
	assert.Equal(t, "node-mid", eligible[1].NodeID)
}

func TestFreshParticipantEligible(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	register(t, m, "node-1")

	// A fresh registration clears the default selection floor without
	// any reputation bump.
	eligible, err := m.EligibleParticipants(ctx, 0.5)
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, "node-1", eligible[0].NodeID)
}

func TestCanContribute(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()
	register(t, m, "node-1")

	require.NoError(t, m.CanContribute(ctx, "node-1", 0.5))

	// Budget cap is 1.0; asking for more is refused.
	err := m.CanContribute(ctx, "node-1", 2.0)
	assert.True(t, errors.Is(err, pkgerrors.ErrAuthorizationFailed))

	require.NoError(t, m.Suspend(ctx, "node-1", "test"))
	err = m.CanContribute(ctx, "node-1", 0.1)
	assert.True(t, errors.Is(err, pkgerrors.ErrAuthorizationFailed))

	err = m.CanContribute(ctx, "missing", 0.1)
	assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
}

func TestRecordContribution(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()
	register(t, m, "node-1")

	require.NoError(t, m.RecordContribution(ctx, "node-1"))
	require.NoError(t, m.RecordContribution(ctx, "node-1"))

	p, err := m.Participant(ctx, "node-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), p.ContributionCount)
	assert.False(t, p.LastContribution.IsZero())
}

func TestUnregister(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()
	register(t, m, "node-1")

	require.NoError(t, m.Unregister(ctx, "node-1"))
	_, err := m.Participant(ctx, "node-1")
	assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
}
