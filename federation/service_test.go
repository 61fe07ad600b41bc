package federation_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/fedmesh/fedmesh/federation"
	"github.com/fedmesh/fedmesh/node"
	"github.com/fedmesh/fedmesh/pkg/balancer"
	pkgerrors "github.com/fedmesh/fedmesh/pkg/errors"
	"github.com/fedmesh/fedmesh/pkg/health"
	"github.com/fedmesh/fedmesh/pkg/message"
	"github.com/fedmesh/fedmesh/pkg/mqtt"
	mqttmocks "github.com/fedmesh/fedmesh/pkg/mqtt/mocks"
	"github.com/fedmesh/fedmesh/pkg/pool"
	sdkmocks "github.com/fedmesh/fedmesh/pkg/sdk/mocks"
	"github.com/fedmesh/fedmesh/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testFederation = "fed-test"

type fixture struct {
	svc      *federation.Servicer
	pubsub   *mqttmocks.PubSub
	registry *balancer.Registry
	events   *federation.Emitter
	rpc      *sdkmocks.SDK
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	pubsub := new(mqttmocks.PubSub)
	registry := balancer.NewRegistry()
	events := federation.NewEmitter()
	rpc := new(sdkmocks.SDK)

	factory := func(ctx context.Context, n node.Node) (*pool.Conn, error) {
		return &pool.Conn{ID: "conn-" + n.ID, NodeID: n.ID, Stream: pubsub, RPC: rpc}, nil
	}
	connPool := pool.New(pool.Config{MaxConnections: 4}, factory, logger)

	probe := func(ctx context.Context, n node.Node) error { return nil }
	checker := health.NewChecker(health.Config{Interval: time.Hour}, probe, logger)

	svc := federation.NewService(
		federation.Config{Federation: testFederation, NodeID: "self"},
		storage.NewInMemoryStorage(),
		registry,
		balancer.NewRoundRobin(registry),
		connPool,
		checker,
		pubsub,
		events,
		logger,
	)

	return &fixture{svc: svc, pubsub: pubsub, registry: registry, events: events, rpc: rpc}
}

func onlineNode(id string) node.Node {
	return node.Node{ID: id, Address: "10.0.0.1", Port: 7070}
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.pubsub.On("Subscribe", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.pubsub.On("Unsubscribe", mock.Anything, mock.Anything).Return(nil)
	f.pubsub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	var mu sync.Mutex
	var kinds []federation.EventKind
	f.events.Listen(func(ev federation.Event) {
		mu.Lock()
		kinds = append(kinds, ev.Kind)
		mu.Unlock()
	})

	require.NoError(t, f.svc.Start(ctx))
	assert.Error(t, f.svc.Start(ctx))

	require.NoError(t, f.svc.Stop(ctx))
	assert.Error(t, f.svc.Stop(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, kinds, federation.EventStarted)
	assert.Contains(t, kinds, federation.EventStopped)
}

func TestConnectNode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.svc.ConnectNode(ctx, onlineNode("node-1"))
	require.NoError(t, err)
	assert.Equal(t, node.StatusOnline, n.Status)
	assert.True(t, f.registry.Healthy("node-1"))

	got, err := f.svc.GetNode(ctx, "node-1")
	require.NoError(t, err)
	assert.Equal(t, "node-1", got.ID)

	_, err = f.svc.ConnectNode(ctx, node.Node{})
	assert.True(t, errors.Is(err, pkgerrors.ErrInvalidMessage))
}

func TestConnectNodeTransportFailure(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	pubsub := new(mqttmocks.PubSub)
	registry := balancer.NewRegistry()

	factory := func(ctx context.Context, n node.Node) (*pool.Conn, error) {
		return nil, errors.New("dial refused")
	}
	connPool := pool.New(pool.Config{MaxConnections: 4}, factory, logger)
	checker := health.NewChecker(health.Config{Interval: time.Hour}, func(ctx context.Context, n node.Node) error { return nil }, logger)

	svc := federation.NewService(
		federation.Config{Federation: testFederation, NodeID: "self"},
		storage.NewInMemoryStorage(),
		registry,
		balancer.NewRoundRobin(registry),
		connPool,
		checker,
		pubsub,
		federation.NewEmitter(),
		logger,
	)

	_, err := svc.ConnectNode(context.Background(), onlineNode("node-1"))
	assert.True(t, errors.Is(err, pkgerrors.ErrConnectionFailed))

	// Registration was rolled back.
	_, err = svc.GetNode(context.Background(), "node-1")
	assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
}

func TestDisconnectNode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ConnectNode(ctx, onlineNode("node-1"))
	require.NoError(t, err)

	require.NoError(t, f.svc.DisconnectNode(ctx, "node-1"))
	_, err = f.svc.GetNode(ctx, "node-1")
	assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))

	err = f.svc.DisconnectNode(ctx, "node-1")
	assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
}

func TestSendMessageTargeted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ConnectNode(ctx, onlineNode("node-1"))
	require.NoError(t, err)

	msg, err := message.New(message.TypeDirect, "self", map[string]string{"k": "v"})
	require.NoError(t, err)
	msg.TargetNodeID = "node-1"

	topic := mqtt.InboxTopic(testFederation, "node-1")
	f.pubsub.On("Publish", mock.Anything, topic, mock.Anything).Return(nil)

	require.NoError(t, f.svc.SendMessage(ctx, msg))
	f.pubsub.AssertCalled(t, "Publish", mock.Anything, topic, mock.Anything)
	f.rpc.AssertNotCalled(t, "DeliverMessage", mock.Anything)

	metrics, err := f.svc.Metrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), metrics.MessagesSent)
	assert.NotZero(t, metrics.BytesSent)
}

func TestSendMessageHighPriorityDualPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ConnectNode(ctx, onlineNode("node-1"))
	require.NoError(t, err)

	msg, err := message.New(message.TypeFLModelUpdate, "self", map[string]string{"k": "v"})
	require.NoError(t, err)
	msg.TargetNodeID = "node-1"
	msg.Priority = message.PriorityCritical

	f.pubsub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.rpc.On("DeliverMessage", mock.Anything).Return(nil)

	require.NoError(t, f.svc.SendMessage(ctx, msg))
	f.rpc.AssertCalled(t, "DeliverMessage", mock.Anything)
}

func TestSendMessageBalanced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ConnectNode(ctx, onlineNode("node-1"))
	require.NoError(t, err)

	msg, err := message.New(message.TypeDirect, "self", nil)
	require.NoError(t, err)

	f.pubsub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	require.NoError(t, f.svc.SendMessage(ctx, msg))
}

func TestSendMessageNoHealthyNodes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, err := message.New(message.TypeDirect, "self", nil)
	require.NoError(t, err)

	err = f.svc.SendMessage(ctx, msg)
	assert.True(t, errors.Is(err, pkgerrors.ErrNodeUnavailable))
}

func TestBroadcastMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, err := message.New(message.TypeBroadcast, "self", map[string]string{"note": "hello"})
	require.NoError(t, err)

	topic := mqtt.BroadcastTopic(testFederation)
	f.pubsub.On("Publish", mock.Anything, topic, mock.Anything).Return(nil)

	require.NoError(t, f.svc.BroadcastMessage(ctx, msg))
	f.pubsub.AssertCalled(t, "Publish", mock.Anything, topic, mock.Anything)
}

func TestInboundDispatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var mu sync.Mutex
	var learning, exchange, generic int
	f.svc.HandleLearning(func(ctx context.Context, msg message.Message) error {
		mu.Lock()
		learning++
		mu.Unlock()

		return nil
	})
	f.svc.HandleExchange(func(ctx context.Context, msg message.Message) error {
		mu.Lock()
		exchange++
		mu.Unlock()

		return nil
	})
	f.svc.HandleMessage(func(ctx context.Context, msg message.Message) error {
		mu.Lock()
		generic++
		mu.Unlock()

		return nil
	})

	send := func(t *testing.T, typ message.Type) message.Message {
		t.Helper()
		msg, err := message.New(typ, "node-1", nil)
		require.NoError(t, err)
		require.NoError(t, f.svc.HandleRPC(ctx, msg))

		return msg
	}

	first := send(t, message.TypeFLGradientUpdate)
	send(t, message.TypeAIXQuery)
	send(t, message.TypeDirect)

	// A resend of the same message is deduplicated.
	require.NoError(t, f.svc.HandleRPC(ctx, first))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, learning)
	assert.Equal(t, 1, exchange)
	assert.Equal(t, 1, generic)

	metrics, err := f.svc.Metrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), metrics.MessagesReceived)
}

func TestInboundInvalidMessage(t *testing.T) {
	f := newFixture(t)

	err := f.svc.HandleRPC(context.Background(), message.Message{})
	assert.True(t, errors.Is(err, pkgerrors.ErrInvalidMessage))

	metrics, merr := f.svc.Metrics(context.Background())
	require.NoError(t, merr)
	assert.Equal(t, uint64(1), metrics.ErrorsTotal)
}
