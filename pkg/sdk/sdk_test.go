package sdk

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fedmesh/fedmesh/node"
	pkgerrors "github.com/fedmesh/fedmesh/pkg/errors"
	"github.com/fedmesh/fedmesh/pkg/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessage(t *testing.T) {
	var got message.Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewSDK(Config{BaseURL: srv.URL})

	msg := message.Message{
		ID:           "m1",
		Type:         message.TypeDirect,
		Timestamp:    time.Now(),
		SourceNodeID: "node-1",
		Priority:     message.PriorityHigh,
	}
	require.NoError(t, s.SendMessage(msg))
	assert.Equal(t, "m1", got.ID)
	assert.Equal(t, message.PriorityHigh, got.Priority)
}

func TestDeliverMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/messages/inbound", r.URL.Path)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewSDK(Config{BaseURL: srv.URL})
	assert.NoError(t, s.DeliverMessage(message.Message{ID: "m1"}))
}

func TestSendMessageAuthHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)

			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	withToken := NewSDK(Config{BaseURL: srv.URL, Token: "tok-1"})
	assert.NoError(t, withToken.SendMessage(message.Message{ID: "m1"}))

	without := NewSDK(Config{BaseURL: srv.URL})
	assert.ErrorIs(t, without.SendMessage(message.Message{ID: "m1"}), pkgerrors.ErrAuthenticationFailed)
}

func TestGetNode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/nodes/n1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(node.Node{ID: "n1", Address: "10.0.0.4", Port: 7400})
	}))
	defer srv.Close()

	s := NewSDK(Config{BaseURL: srv.URL})

	n, err := s.GetNode("n1")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.4:7400", n.Endpoint())
}

func TestGetNodeNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewSDK(Config{BaseURL: srv.URL})

	_, err := s.GetNode("missing")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSDK(Config{BaseURL: srv.URL})
	assert.NoError(t, s.HealthCheck())
}

func TestHealthCheckConnectionFailed(t *testing.T) {
	s := NewSDK(Config{BaseURL: "http://127.0.0.1:1"})
	assert.ErrorIs(t, s.HealthCheck(), pkgerrors.ErrConnectionFailed)
}

func TestRoundLifecycleCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/rounds":
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(RoundStatus{RoundID: "r1", Status: "active"})
		case r.Method == http.MethodGet && r.URL.Path == "/rounds/r1":
			_ = json.NewEncoder(w).Encode(RoundStatus{RoundID: "r1", Status: "completed", ModelVersion: 2})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	s := NewSDK(Config{BaseURL: srv.URL})

	started, err := s.StartRound(RoundConfig{Algorithm: "fedavg", MaxParticipants: 5})
	require.NoError(t, err)
	assert.Equal(t, "active", started.Status)

	status, err := s.GetRound("r1")
	require.NoError(t, err)
	assert.Equal(t, "completed", status.Status)
	assert.Equal(t, 2, status.ModelVersion)
}
