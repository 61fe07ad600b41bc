package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fedmesh/fedmesh/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHysteresisUnhealthy(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)

	probe := func(_ context.Context, _ node.Node) error {
		if fail.Load() {
			return errors.New("probe refused")
		}

		return nil
	}

	c := NewChecker(Config{UnhealthyThreshold: 3, HealthyThreshold: 2}, probe, nil)

	var events []Event
	c.OnTransition(func(ev Event) {
		events = append(events, ev)
	})

	n := node.Node{ID: "n1"}
	c.AddNode(n)
	assert.True(t, c.Healthy("n1"))

	ctx := context.Background()

	// Flips only after the third consecutive failure, not before.
	c.CheckAll(ctx)
	assert.True(t, c.Healthy("n1"))
	c.CheckAll(ctx)
	assert.True(t, c.Healthy("n1"))
	c.CheckAll(ctx)
	assert.False(t, c.Healthy("n1"))
	require.Len(t, events, 1)
	assert.False(t, events[0].Healthy)

	// Recovery needs healthyThreshold consecutive successes.
	fail.Store(false)
	c.CheckAll(ctx)
	assert.False(t, c.Healthy("n1"))
	c.CheckAll(ctx)
	assert.True(t, c.Healthy("n1"))
	require.Len(t, events, 2)
	assert.True(t, events[1].Healthy)
}

func TestRecoveryResetsFailureStreak(t *testing.T) {
	results := []error{errors.New("fail"), errors.New("fail"), nil, errors.New("fail"), errors.New("fail")}
	i := 0
	probe := func(_ context.Context, _ node.Node) error {
		err := results[i%len(results)]
		i++

		return err
	}

	c := NewChecker(Config{UnhealthyThreshold: 3, HealthyThreshold: 1}, probe, nil)
	c.AddNode(node.Node{ID: "n1"})

	ctx := context.Background()
	for range results {
		c.CheckAll(ctx)
	}

	// Two failures, success, two failures: threshold of three never crossed.
	assert.True(t, c.Healthy("n1"))
}

func TestStateRecording(t *testing.T) {
	probe := func(_ context.Context, _ node.Node) error {
		time.Sleep(time.Millisecond)

		return nil
	}

	c := NewChecker(Config{}, probe, nil)
	c.AddNode(node.Node{ID: "n1"})
	c.CheckAll(context.Background())

	s, ok := c.NodeState("n1")
	require.True(t, ok)
	assert.False(t, s.LastCheck.IsZero())
	assert.Greater(t, s.ResponseTime, time.Duration(0))
	assert.Equal(t, 1, s.ConsecutiveSuccesses)
}

func TestRemoveNode(t *testing.T) {
	c := NewChecker(Config{}, func(_ context.Context, _ node.Node) error { return nil }, nil)
	c.AddNode(node.Node{ID: "n1"})
	c.RemoveNode("n1")

	assert.False(t, c.Healthy("n1"))
	_, ok := c.NodeState("n1")
	assert.False(t, ok)
}
