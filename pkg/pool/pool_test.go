package pool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fedmesh/fedmesh/node"
	pkgerrors "github.com/fedmesh/fedmesh/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubFactory() Factory {
	return func(_ context.Context, _ node.Node) (*Conn, error) {
		return &Conn{}, nil
	}
}

func TestGetReusesIdleConnection(t *testing.T) {
	p := New(Config{MaxConnections: 2}, stubFactory(), nil)
	defer p.Shutdown(context.Background())

	n := node.Node{ID: "n1"}

	c1, err := p.Get(context.Background(), n)
	require.NoError(t, err)
	p.Release(c1.ID)

	c2, err := p.Get(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, c1.ID, c2.ID)
	assert.Equal(t, 1, p.Len())
}

func TestPoolBound(t *testing.T) {
	p := New(Config{MaxConnections: 2, AcquireTimeout: 100 * time.Millisecond}, stubFactory(), nil)
	defer p.Shutdown(context.Background())

	ctx := context.Background()

	c1, err := p.Get(ctx, node.Node{ID: "n1"})
	require.NoError(t, err)
	_, err = p.Get(ctx, node.Node{ID: "n2"})
	require.NoError(t, err)
	assert.Equal(t, 2, p.Len())

	// Third concurrent request blocks, then times out with the pool
	// still at its bound.
	_, err = p.Get(ctx, node.Node{ID: "n3"})
	assert.ErrorIs(t, err, pkgerrors.ErrPoolExhausted)
	assert.Equal(t, 2, p.Len())

	// After a release the blocked request gets through.
	done := make(chan error, 1)
	go func() {
		_, err := p.Get(ctx, node.Node{ID: "n1"})
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	p.Release(c1.ID)
	require.NoError(t, <-done)
	assert.LessOrEqual(t, p.Len(), 2)
}

func TestReleaseWakesWaiterForOtherNode(t *testing.T) {
	p := New(Config{MaxConnections: 1, AcquireTimeout: time.Second}, stubFactory(), nil)
	defer p.Shutdown(context.Background())

	ctx := context.Background()

	c1, err := p.Get(ctx, node.Node{ID: "n1"})
	require.NoError(t, err)

	done := make(chan *Conn, 1)
	go func() {
		c, err := p.Get(ctx, node.Node{ID: "n2"})
		require.NoError(t, err)
		done <- c
	}()
	time.Sleep(20 * time.Millisecond)
	p.Release(c1.ID)

	c2 := <-done
	assert.Equal(t, "n2", c2.NodeID)
	assert.Equal(t, 1, p.Len())
}

func TestFactoryFailure(t *testing.T) {
	failing := func(_ context.Context, _ node.Node) (*Conn, error) {
		return nil, errors.New("dial refused")
	}
	p := New(Config{MaxConnections: 2}, failing, nil)
	defer p.Shutdown(context.Background())

	_, err := p.Get(context.Background(), node.Node{ID: "n1"})
	assert.ErrorIs(t, err, pkgerrors.ErrConnectionFailed)
	// The failed slot is freed again.
	assert.Equal(t, 0, p.Len())
}

func TestShutdownFailsWaiters(t *testing.T) {
	p := New(Config{MaxConnections: 1, AcquireTimeout: 5 * time.Second}, stubFactory(), nil)

	ctx := context.Background()
	_, err := p.Get(ctx, node.Node{ID: "n1"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Get(ctx, node.Node{ID: "n2"})
			errs <- err
		}()
	}
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, p.Shutdown(ctx))
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.ErrorIs(t, err, pkgerrors.ErrPoolExhausted)
	}

	// The pool refuses new acquisitions after shutdown.
	_, err = p.Get(ctx, node.Node{ID: "n1"})
	assert.ErrorIs(t, err, pkgerrors.ErrPoolExhausted)
}

func TestIdleReap(t *testing.T) {
	p := New(Config{MaxConnections: 2, IdleTimeout: 10 * time.Millisecond}, stubFactory(), nil)
	defer p.Shutdown(context.Background())

	c, err := p.Get(context.Background(), node.Node{ID: "n1"})
	require.NoError(t, err)
	p.Release(c.ID)

	time.Sleep(20 * time.Millisecond)
	p.reapIdle()
	assert.Equal(t, 0, p.Len())
}
