package message

import (
	"fmt"
	"testing"
	"time"

	pkgerrors "github.com/fedmesh/fedmesh/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	msg, err := New(TypeHeartbeat, "node-1", map[string]any{"status": "online"})
	require.NoError(t, err)

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, TypeHeartbeat, msg.Type)
	assert.Equal(t, "node-1", msg.SourceNodeID)
	assert.Equal(t, PriorityNormal, msg.Priority)
	assert.False(t, msg.Timestamp.IsZero())
	assert.NoError(t, msg.Validate())
}

func TestValidate(t *testing.T) {
	valid := Message{
		ID:           "m1",
		Type:         TypeDirect,
		Timestamp:    time.Now(),
		SourceNodeID: "node-1",
		Priority:     PriorityNormal,
	}

	cases := []struct {
		name   string
		mutate func(m Message) Message
		err    bool
	}{
		{
			name:   "valid message",
			mutate: func(m Message) Message { return m },
		},
		{
			name:   "empty id",
			mutate: func(m Message) Message { m.ID = ""; return m },
			err:    true,
		},
		{
			name:   "empty type",
			mutate: func(m Message) Message { m.Type = ""; return m },
			err:    true,
		},
		{
			name:   "empty source",
			mutate: func(m Message) Message { m.SourceNodeID = ""; return m },
			err:    true,
		},
		{
			name:   "zero timestamp",
			mutate: func(m Message) Message { m.Timestamp = time.Time{}; return m },
			err:    true,
		},
		{
			name:   "priority out of range",
			mutate: func(m Message) Message { m.Priority = Priority(10); return m },
			err:    true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.mutate(valid).Validate()
			if tc.err {
				assert.ErrorIs(t, err, pkgerrors.ErrInvalidMessage)

				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()

	msg := Message{Timestamp: now, TTL: time.Second}
	assert.False(t, msg.Expired(now))
	assert.True(t, msg.Expired(now.Add(2*time.Second)))

	noTTL := Message{Timestamp: now}
	assert.False(t, noTTL.Expired(now.Add(time.Hour)))
}

func TestTypeNamespaces(t *testing.T) {
	assert.True(t, Message{Type: TypeFLGradientUpdate}.IsLearning())
	assert.False(t, Message{Type: TypeFLGradientUpdate}.IsExchange())
	assert.True(t, Message{Type: TypeAIXQuery}.IsExchange())
	assert.False(t, Message{Type: TypeAIXQuery}.IsLearning())
	assert.False(t, Message{Type: TypeHeartbeat}.IsLearning())
	assert.False(t, Message{Type: TypeHeartbeat}.IsExchange())
}

func TestDeduper(t *testing.T) {
	d := NewDeduper(3)

	assert.False(t, d.Seen("a"))
	assert.True(t, d.Seen("a"))

	assert.False(t, d.Seen("b"))
	assert.False(t, d.Seen("c"))
	assert.False(t, d.Seen("d"))
	assert.Equal(t, 3, d.Len())

	// "a" was evicted by the window bound.
	assert.False(t, d.Seen("a"))
}

func TestDeduperEmptyID(t *testing.T) {
	d := NewDeduper(0)
	assert.False(t, d.Seen(""))
	assert.False(t, d.Seen(""))
	assert.Equal(t, 0, d.Len())
}

func TestDeduperWindowEviction(t *testing.T) {
	d := NewDeduper(8)
	for i := 0; i < 20; i++ {
		d.Seen(fmt.Sprintf("msg-%d", i))
	}
	assert.Equal(t, 8, d.Len())
	assert.True(t, d.Seen("msg-19"))
	assert.False(t, d.Seen("msg-0"))
}
