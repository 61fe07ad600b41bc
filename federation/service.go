package federation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fedmesh/fedmesh/node"
	"github.com/fedmesh/fedmesh/pkg/balancer"
	pkgerrors "github.com/fedmesh/fedmesh/pkg/errors"
	"github.com/fedmesh/fedmesh/pkg/health"
	"github.com/fedmesh/fedmesh/pkg/message"
	"github.com/fedmesh/fedmesh/pkg/mqtt"
	"github.com/fedmesh/fedmesh/pkg/pool"
	"github.com/fedmesh/fedmesh/pkg/storage"
)

const (
	defOffset = 0
	defLimit  = 100

	defHeartbeatInterval = 30 * time.Second
)

var (
	errAlreadyStarted = errors.New("federation already started")
	errNotStarted     = errors.New("federation not started")
)

// Config carries the federation identity and runtime knobs.
type Config struct {
	Federation        string
	NodeID            string
	HeartbeatInterval time.Duration
}

type service struct {
	cfg      Config
	nodesDB  storage.Storage
	registry *balancer.Registry
	balancer balancer.Balancer
	pool     *pool.Pool
	health   *health.Checker
	pubsub   mqtt.PubSub
	events   *Emitter
	deduper  *message.Deduper
	logger   *slog.Logger

	handlersMu sync.RWMutex
	learning   []MessageHandler
	exchange   []MessageHandler
	generic    []MessageHandler
	taps       map[uint64]MessageTap
	nextTap    uint64

	started   atomic.Bool
	startTime time.Time
	cancel    context.CancelFunc

	messagesSent     atomic.Uint64
	messagesReceived atomic.Uint64
	bytesSent        atomic.Uint64
	bytesReceived    atomic.Uint64
	connectionsTotal atomic.Uint64
	errorsTotal      atomic.Uint64
	latencyEWMA      atomic.Uint64 // microseconds
}

func NewService(
	cfg Config,
	nodesDB storage.Storage,
	registry *balancer.Registry,
	lb balancer.Balancer,
	connPool *pool.Pool,
	checker *health.Checker,
	pubsub mqtt.PubSub,
	events *Emitter,
	logger *slog.Logger,
) *Servicer {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defHeartbeatInterval
	}

	svc := &service{
		cfg:      cfg,
		nodesDB:  nodesDB,
		registry: registry,
		balancer: lb,
		pool:     connPool,
		health:   checker,
		pubsub:   pubsub,
		events:   events,
		deduper:  message.NewDeduper(0),
		taps:     make(map[uint64]MessageTap),
		logger:   logger,
	}

	checker.OnTransition(func(ev health.Event) {
		registry.SetHealthy(ev.NodeID, ev.Healthy)
		kind := EventNodeUnhealthy
		if ev.Healthy {
			kind = EventNodeHealthy
		}
		events.Emit(kind, ev.NodeID, nil)
	})

	return &Servicer{service: svc}
}

// Servicer exposes the concrete service so callers can register
// message handlers before wrapping it in middleware.
type Servicer struct {
	*service
}

// HandleLearning registers a handler for federated learning messages.
func (s *Servicer) HandleLearning(h MessageHandler) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()

	s.learning = append(s.learning, h)
}

// HandleExchange registers a handler for intelligence exchange
// messages.
func (s *Servicer) HandleExchange(h MessageHandler) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()

	s.exchange = append(s.exchange, h)
}

// HandleMessage registers a generic subscriber for messages outside
// the learning and exchange namespaces.
func (s *Servicer) HandleMessage(h MessageHandler) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()

	s.generic = append(s.generic, h)
}

// TapMessages registers an observer invoked for every accepted inbound
// message regardless of its type namespace. The returned cancel
// removes the tap. Taps run on the dispatch goroutine and must not
// block.
func (s *Servicer) TapMessages(t MessageTap) (cancel func()) {
	s.handlersMu.Lock()
	id := s.nextTap
	s.nextTap++
	s.taps[id] = t
	s.handlersMu.Unlock()

	return func() {
		s.handlersMu.Lock()
		delete(s.taps, id)
		s.handlersMu.Unlock()
	}
}

func (svc *service) Start(ctx context.Context) error {
	if !svc.started.CompareAndSwap(false, true) {
		return errAlreadyStarted
	}
	svc.startTime = time.Now()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	svc.cancel = cancel

	inbox := mqtt.InboxTopic(svc.cfg.Federation, svc.cfg.NodeID)
	if err := svc.pubsub.Subscribe(ctx, inbox, svc.inbound(runCtx)); err != nil {
		svc.started.Store(false)
		cancel()

		return errors.Join(pkgerrors.ErrConnectionFailed, err)
	}
	broadcast := mqtt.BroadcastTopic(svc.cfg.Federation)
	if err := svc.pubsub.Subscribe(ctx, broadcast, svc.inbound(runCtx)); err != nil {
		svc.started.Store(false)
		cancel()

		return errors.Join(pkgerrors.ErrConnectionFailed, err)
	}

	go svc.health.Start(runCtx)
	go mqtt.StartHeartbeat(runCtx, svc.pubsub, svc.cfg.Federation, svc.cfg.NodeID, svc.cfg.HeartbeatInterval, svc.logger)

	svc.events.Emit(EventStarted, svc.cfg.NodeID, nil)

	return nil
}

func (svc *service) Stop(ctx context.Context) error {
	if !svc.started.CompareAndSwap(true, false) {
		return errNotStarted
	}

	svc.health.Stop()
	if svc.cancel != nil {
		svc.cancel()
	}

	if err := svc.pubsub.Unsubscribe(ctx, mqtt.InboxTopic(svc.cfg.Federation, svc.cfg.NodeID)); err != nil {
		svc.logger.Warn("failed to unsubscribe inbox", slog.Any("error", err))
	}
	if err := svc.pubsub.Unsubscribe(ctx, mqtt.BroadcastTopic(svc.cfg.Federation)); err != nil {
		svc.logger.Warn("failed to unsubscribe broadcast", slog.Any("error", err))
	}

	if err := svc.pool.Shutdown(ctx); err != nil {
		return err
	}

	svc.events.Emit(EventStopped, svc.cfg.NodeID, nil)

	return nil
}

func (svc *service) ConnectNode(ctx context.Context, n node.Node) (node.Node, error) {
	if n.ID == "" || n.Address == "" {
		return node.Node{}, errors.Join(pkgerrors.ErrInvalidMessage, errors.New("node id and address are required"))
	}

	n.Status = node.StatusOnline
	n.Touch(time.Now())
	if err := svc.nodesDB.Create(ctx, n.ID, n); err != nil {
		if !errors.Is(err, pkgerrors.ErrEntityExists) {
			return node.Node{}, err
		}
		if err := svc.nodesDB.Update(ctx, n.ID, n); err != nil {
			return node.Node{}, err
		}
	}

	// Establish both transport channels up front so a dead node fails
	// fast instead of on first send.
	conn, err := svc.pool.Get(ctx, n)
	if err != nil {
		if derr := svc.nodesDB.Delete(ctx, n.ID); derr != nil && !errors.Is(derr, pkgerrors.ErrNotFound) {
			svc.logger.Warn("failed to roll back node registration", slog.Any("error", derr))
		}
		svc.errorsTotal.Add(1)

		return node.Node{}, errors.Join(pkgerrors.ErrConnectionFailed, err)
	}
	svc.pool.Release(conn.ID)
	svc.connectionsTotal.Add(1)

	svc.registry.SetHealthy(n.ID, true)
	svc.health.AddNode(n)
	svc.events.Emit(EventNodeConnected, n.ID, nil)

	return n, nil
}

func (svc *service) DisconnectNode(ctx context.Context, nodeID string) error {
	if _, err := svc.getNode(ctx, nodeID); err != nil {
		return err
	}

	svc.health.RemoveNode(nodeID)
	svc.registry.SetHealthy(nodeID, false)
	svc.pool.RemoveNode(nodeID)
	if err := svc.nodesDB.Delete(ctx, nodeID); err != nil {
		return err
	}

	svc.events.Emit(EventNodeDisconnected, nodeID, nil)

	return nil
}

func (svc *service) GetNode(ctx context.Context, nodeID string) (node.Node, error) {
	n, err := svc.getNode(ctx, nodeID)
	if err != nil {
		return node.Node{}, err
	}
	n.Refresh()

	return n, nil
}

func (svc *service) ListNodes(ctx context.Context, offset, limit uint64) (node.NodePage, error) {
	data, total, err := svc.nodesDB.List(ctx, offset, limit)
	if err != nil {
		return node.NodePage{}, err
	}

	nodes := make([]node.Node, 0, len(data))
	for i := range data {
		n, ok := data[i].(node.Node)
		if !ok {
			return node.NodePage{}, pkgerrors.ErrInvalidData
		}
		n.Refresh()
		nodes = append(nodes, n)
	}

	return node.NodePage{
		Offset: offset,
		Limit:  limit,
		Total:  total,
		Nodes:  nodes,
	}, nil
}

func (svc *service) SendMessage(ctx context.Context, msg message.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	target := msg.TargetNodeID
	if target == "" {
		page, err := svc.ListNodes(ctx, defOffset, defLimit)
		if err != nil {
			return err
		}
		picked, err := svc.balancer.SelectNode(page.Nodes)
		if err != nil {
			svc.errorsTotal.Add(1)

			return errors.Join(pkgerrors.ErrNodeUnavailable, err)
		}
		target = picked.ID
		msg.TargetNodeID = target
	}

	n, err := svc.getNode(ctx, target)
	if err != nil {
		return errors.Join(pkgerrors.ErrNodeUnavailable, err)
	}

	conn, err := svc.pool.Get(ctx, n)
	if err != nil {
		svc.errorsTotal.Add(1)
		svc.registry.RecordFailure(target)

		return err
	}
	svc.registry.AddConnection(target)
	defer func() {
		svc.registry.ReleaseConnection(target)
		svc.pool.Release(conn.ID)
	}()

	begin := time.Now()
	topic := mqtt.InboxTopic(svc.cfg.Federation, target)
	if err := conn.Stream.Publish(ctx, topic, msg); err != nil {
		svc.errorsTotal.Add(1)
		svc.registry.RecordFailure(target)

		return errors.Join(pkgerrors.ErrConnectionFailed, err)
	}

	// Urgent messages go out over both channels; the receiver
	// deduplicates by message ID.
	if msg.Priority >= message.PriorityHigh {
		if err := conn.RPC.DeliverMessage(msg); err != nil {
			svc.errorsTotal.Add(1)
			svc.registry.RecordFailure(target)

			return errors.Join(pkgerrors.ErrConnectionFailed, err)
		}
	}

	latency := time.Since(begin)
	svc.registry.RecordSuccess(target, latency)
	svc.recordLatency(latency)
	svc.messagesSent.Add(1)
	if data, err := json.Marshal(msg); err == nil {
		svc.bytesSent.Add(uint64(len(data)))
	}

	return nil
}

func (svc *service) BroadcastMessage(ctx context.Context, msg message.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	topic := mqtt.BroadcastTopic(svc.cfg.Federation)
	if err := svc.pubsub.Publish(ctx, topic, msg); err != nil {
		svc.errorsTotal.Add(1)

		return errors.Join(pkgerrors.ErrConnectionFailed, err)
	}

	svc.messagesSent.Add(1)
	if data, err := json.Marshal(msg); err == nil {
		svc.bytesSent.Add(uint64(len(data)))
	}

	return nil
}

func (svc *service) Metrics(_ context.Context) (Metrics, error) {
	var uptime float64
	if svc.started.Load() {
		uptime = time.Since(svc.startTime).Seconds()
	}

	return Metrics{
		MessagesSent:      svc.messagesSent.Load(),
		MessagesReceived:  svc.messagesReceived.Load(),
		BytesSent:         svc.bytesSent.Load(),
		BytesReceived:     svc.bytesReceived.Load(),
		ConnectionsActive: svc.pool.Len(),
		ConnectionsTotal:  svc.connectionsTotal.Load(),
		ErrorsTotal:       svc.errorsTotal.Load(),
		LatencyMs:         float64(svc.latencyEWMA.Load()) / 1000.0,
		UptimeSeconds:     uptime,
	}, nil
}

func (svc *service) getNode(ctx context.Context, nodeID string) (node.Node, error) {
	data, err := svc.nodesDB.Get(ctx, nodeID)
	if err != nil {
		return node.Node{}, err
	}
	n, ok := data.(node.Node)
	if !ok {
		return node.Node{}, pkgerrors.ErrInvalidData
	}

	return n, nil
}

// recordLatency keeps an exponentially weighted latency average in
// microseconds.
func (svc *service) recordLatency(d time.Duration) {
	const alpha = 0.2
	sample := uint64(d.Microseconds())
	for {
		old := svc.latencyEWMA.Load()
		var next uint64
		if old == 0 {
			next = sample
		} else {
			next = uint64(float64(old)*(1-alpha) + float64(sample)*alpha)
		}
		if svc.latencyEWMA.CompareAndSwap(old, next) {
			return
		}
	}
}
