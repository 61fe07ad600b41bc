package node

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewNode(t *testing.T) {
	n := NewNode("edge-1", "10.0.0.4", 7400, []Capability{CapabilityCompute})

	assert.NotEmpty(t, n.ID)
	assert.Equal(t, "edge-1", n.Name)
	assert.Equal(t, "10.0.0.4:7400", n.Endpoint())
	assert.Equal(t, StatusOffline, n.Status)
}

func TestTouchBoundsHistory(t *testing.T) {
	n := NewNode("edge-1", "10.0.0.4", 7400, nil)

	for i := 0; i < aliveHistoryLimit+5; i++ {
		n.Touch(time.Now())
	}

	assert.Len(t, n.AliveHistory, aliveHistoryLimit)
	assert.Equal(t, StatusOnline, n.Status)
}

func TestRefresh(t *testing.T) {
	n := NewNode("edge-1", "10.0.0.4", 7400, nil)

	n.Touch(time.Now())
	n.Refresh()
	assert.Equal(t, StatusOnline, n.Status)

	n.LastSeen = time.Now().Add(-10 * time.Minute)
	n.Refresh()
	assert.Equal(t, StatusOffline, n.Status)

	n.Status = StatusMaintenance
	n.Refresh()
	assert.Equal(t, StatusMaintenance, n.Status)
}

func TestHasCapability(t *testing.T) {
	n := NewNode("edge-1", "10.0.0.4", 7400, []Capability{CapabilityCompute, CapabilityTraining})

	assert.True(t, n.HasCapability(CapabilityCompute))
	assert.True(t, n.HasCapability(CapabilityTraining))
	assert.False(t, n.HasCapability(CapabilityStorage))
}
