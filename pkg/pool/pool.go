package pool

import (
	"container/list"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fedmesh/fedmesh/node"
	pkgerrors "github.com/fedmesh/fedmesh/pkg/errors"
	"github.com/google/uuid"
)

const (
	defMaxConnections = 10
	defIdleTimeout    = 5 * time.Minute
	defAcquireTimeout = 30 * time.Second
	reaperInterval    = time.Minute
)

// Factory establishes both transport handles for a node. Creation
// carries a hard dial timeout enforced by the pool.
type Factory func(ctx context.Context, n node.Node) (*Conn, error)

type Config struct {
	MaxConnections int
	IdleTimeout    time.Duration
	AcquireTimeout time.Duration
	DialTimeout    time.Duration
}

type result struct {
	conn *Conn
	err  error
}

type waiter struct {
	node node.Node
	ch   chan result
}

// Pool hands out per-node pooled connections. When every slot is taken
// the caller queues FIFO until a release or the acquire timeout.
type Pool struct {
	mu       sync.Mutex
	cfg      Config
	factory  Factory
	conns    map[string]*Conn // conn ID -> conn
	waiters  *list.List
	creating int
	closed   bool
	stop     chan struct{}
	stopOnce sync.Once
	logger   *slog.Logger
}

func New(cfg Config, factory Factory, logger *slog.Logger) *Pool {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = defMaxConnections
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defIdleTimeout
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = defAcquireTimeout
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}

	p := &Pool{
		cfg:     cfg,
		factory: factory,
		conns:   make(map[string]*Conn),
		waiters: list.New(),
		stop:    make(chan struct{}),
		logger:  logger,
	}

	go p.reap()

	return p
}

// Get returns an idle pooled connection for the node, creating one when
// the pool has capacity. With the pool exhausted the call queues until
// a connection frees or the acquire timeout elapses.
func (p *Pool) Get(ctx context.Context, n node.Node) (*Conn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()

		return nil, pkgerrors.ErrPoolExhausted
	}

	if c := p.idleForNodeLocked(n.ID); c != nil {
		c.active = true
		c.lastUsed = time.Now()
		p.mu.Unlock()

		return c, nil
	}

	if len(p.conns)+p.creating < p.cfg.MaxConnections {
		p.creating++
		p.mu.Unlock()

		return p.create(ctx, n)
	}

	w := &waiter{node: n, ch: make(chan result, 1)}
	elem := p.waiters.PushBack(w)
	p.mu.Unlock()

	select {
	case res := <-w.ch:
		return res.conn, res.err
	case <-time.After(p.cfg.AcquireTimeout):
		p.abandon(w, elem)

		return nil, pkgerrors.ErrPoolExhausted
	case <-ctx.Done():
		p.abandon(w, elem)

		return nil, ctx.Err()
	}
}

// Release marks the connection idle and hands it to the oldest waiter,
// if any. A waiter for a different node gets a fresh connection in the
// freed slot instead.
func (p *Pool) Release(connID string) {
	p.mu.Lock()

	c, ok := p.conns[connID]
	if !ok {
		p.mu.Unlock()

		return
	}
	c.active = false
	c.lastUsed = time.Now()

	elem := p.waiters.Front()
	if elem == nil {
		p.mu.Unlock()

		return
	}
	w := p.waiters.Remove(elem).(*waiter)

	if w.node.ID == c.NodeID {
		c.active = true
		c.lastUsed = time.Now()
		p.mu.Unlock()
		w.ch <- result{conn: c}

		return
	}

	// Free the slot for the waiter's node.
	delete(p.conns, connID)
	p.creating++
	p.mu.Unlock()
	c.close()

	go func() {
		conn, err := p.create(context.Background(), w.node)
		w.ch <- result{conn: conn, err: err}
	}()
}

// Remove drops a connection from the pool, e.g. after a send error.
func (p *Pool) Remove(connID string) {
	p.mu.Lock()
	c, ok := p.conns[connID]
	if ok {
		delete(p.conns, connID)
	}
	p.mu.Unlock()

	if ok {
		c.close()
	}
}

// RemoveNode drops every pooled connection for a node, e.g. when the
// node disconnects from the federation.
func (p *Pool) RemoveNode(nodeID string) {
	p.mu.Lock()
	var victims []*Conn
	for id, c := range p.conns {
		if c.NodeID == nodeID {
			delete(p.conns, id)
			victims = append(victims, c)
		}
	}
	p.mu.Unlock()

	for _, c := range victims {
		c.close()
	}
}

// Shutdown fails every waiter, then disconnects all pooled connections.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() {
		close(p.stop)
	})

	p.mu.Lock()
	p.closed = true
	for elem := p.waiters.Front(); elem != nil; elem = elem.Next() {
		elem.Value.(*waiter).ch <- result{err: pkgerrors.ErrPoolExhausted}
	}
	p.waiters.Init()

	conns := make([]*Conn, 0, len(p.conns))
	for _, c := range p.conns {
		conns = append(conns, c)
	}
	p.conns = make(map[string]*Conn)
	p.mu.Unlock()

	for _, c := range conns {
		c.close()
	}

	return nil
}

// Len returns the number of live pooled connections.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.conns) + p.creating
}

func (p *Pool) create(ctx context.Context, n node.Node) (*Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, p.cfg.DialTimeout)
	defer cancel()

	c, err := p.factory(dialCtx, n)

	p.mu.Lock()
	p.creating--
	if err != nil {
		p.mu.Unlock()

		return nil, errors.Join(pkgerrors.ErrConnectionFailed, err)
	}
	if p.closed {
		p.mu.Unlock()
		c.close()

		return nil, pkgerrors.ErrPoolExhausted
	}

	c.ID = uuid.NewString()
	c.NodeID = n.ID
	c.created = time.Now()
	c.lastUsed = time.Now()
	c.active = true
	p.conns[c.ID] = c
	p.mu.Unlock()

	if p.logger != nil {
		p.logger.Debug("established pooled connection",
			slog.String("conn_id", c.ID),
			slog.String("node_id", n.ID))
	}

	return c, nil
}

func (p *Pool) idleForNodeLocked(nodeID string) *Conn {
	now := time.Now()
	for _, c := range p.conns {
		if c.NodeID == nodeID && !c.active && now.Sub(c.lastUsed) < p.cfg.IdleTimeout {
			return c
		}
	}

	return nil
}

// abandon withdraws a waiter, returning any connection that was handed
// over concurrently with the timeout.
func (p *Pool) abandon(w *waiter, elem *list.Element) {
	p.removeWaiter(elem)

	select {
	case res := <-w.ch:
		if res.conn != nil {
			p.Release(res.conn.ID)
		}
	default:
	}
}

func (p *Pool) removeWaiter(elem *list.Element) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for e := p.waiters.Front(); e != nil; e = e.Next() {
		if e == elem {
			p.waiters.Remove(e)

			return
		}
	}
}

func (p *Pool) reap() {
	ticker := time.NewTicker(reaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.reapIdle()
		case <-p.stop:
			return
		}
	}
}

func (p *Pool) reapIdle() {
	now := time.Now()

	p.mu.Lock()
	var expired []*Conn
	for id, c := range p.conns {
		if !c.active && now.Sub(c.lastUsed) >= p.cfg.IdleTimeout {
			delete(p.conns, id)
			expired = append(expired, c)
		}
	}
	p.mu.Unlock()

	for _, c := range expired {
		c.close()
	}
}
