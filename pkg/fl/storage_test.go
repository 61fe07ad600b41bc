package fl_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/fedmesh/fedmesh/pkg/fl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStorage(t *testing.T) *fl.PersistentStorage {
	t.Helper()

	dir := t.TempDir()
	ps, err := fl.NewPersistentStorage(filepath.Join(dir, "rounds"), filepath.Join(dir, "models"))
	require.NoError(t, err)

	return ps
}

func TestRoundPersistence(t *testing.T) {
	ps := newStorage(t)

	round := fl.Round{
		RoundID:      "round-1",
		Algorithm:    "fedavg",
		Participants: []string{"node-1", "node-2"},
		ModelVersion: 3,
		StartTime:    time.Now().UTC(),
		Status:       fl.RoundActive,
	}
	require.NoError(t, ps.SaveRound(round))

	got, err := ps.LoadRound("round-1")
	require.NoError(t, err)
	assert.Equal(t, round.RoundID, got.RoundID)
	assert.Equal(t, round.Participants, got.Participants)
	assert.Equal(t, fl.RoundActive, got.Status)

	ids, err := ps.ListRounds()
	require.NoError(t, err)
	assert.Equal(t, []string{"round-1"}, ids)

	_, err = ps.LoadRound("missing")
	assert.Error(t, err)

	assert.Error(t, ps.SaveRound(fl.Round{RoundID: "../"}))
}

func TestModelLog(t *testing.T) {
	ps := newStorage(t)

	latest, err := ps.LatestVersion()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), latest)

	for v := uint64(1); v <= 3; v++ {
		model := fl.Model{
			Version: v,
			RoundID: "round-1",
			Weights: fl.Tensors{"dense": {{float64(v)}}},
		}
		require.NoError(t, ps.SaveModel(model))
	}

	latest, err = ps.LatestVersion()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), latest)

	got, err := ps.LoadModel(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Version)
	assert.InDelta(t, 2.0, got.Weights["dense"][0][0], 1e-9)

	versions, err := ps.ListModels()
	require.NoError(t, err)
	assert.Len(t, versions, 3)
}
