package pool

import (
	"context"
	"time"

	"github.com/fedmesh/fedmesh/node"
	"github.com/fedmesh/fedmesh/pkg/mqtt"
	"github.com/fedmesh/fedmesh/pkg/sdk"
	"golang.org/x/sync/errgroup"
)

// Conn bundles both transport handles for one node: the streaming
// channel publisher and the RPC client.
type Conn struct {
	ID     string
	NodeID string
	Stream mqtt.PubSub
	RPC    sdk.SDK

	created  time.Time
	lastUsed time.Time
	active   bool
	onClose  func()
}

func (c *Conn) close() {
	if c.onClose != nil {
		c.onClose()
	}
}

// NewFactory builds the default connection factory. The streaming
// channel is a shared broker session; the RPC client is bound to the
// node endpoint and probed before the connection is handed out, so both
// paths are established concurrently.
func NewFactory(stream mqtt.PubSub, token string, tlsVerification bool) Factory {
	return func(ctx context.Context, n node.Node) (*Conn, error) {
		rpc := sdk.NewSDK(sdk.Config{
			BaseURL:         "http://" + n.Endpoint(),
			Token:           token,
			TLSVerification: tlsVerification,
		})

		g, _ := errgroup.WithContext(ctx)
		g.Go(func() error {
			return rpc.HealthCheck()
		})
		g.Go(func() error {
			// The broker session is shared and already up; nothing to
			// establish per node on the streaming side.
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		return &Conn{
			Stream: stream,
			RPC:    rpc,
		}, nil
	}
}
