package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/fedmesh/fedmesh/federation"
	"github.com/fedmesh/fedmesh/pkg/message"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
	wsEventQueue = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type wsEvent struct {
	Kind   federation.EventKind `json:"kind"`
	NodeID string               `json:"node_id,omitempty"`
	Error  string               `json:"error,omitempty"`
	At     time.Time            `json:"at"`
}

// StreamMessages upgrades the request to a websocket and pushes every
// subsequently accepted inbound message until the client goes away.
// Messages that arrive faster than the client reads are dropped.
func StreamMessages(tapper federation.MessageTapper, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", slog.Any("error", err))

			return
		}
		defer conn.Close()

		queue := make(chan message.Message, wsEventQueue)
		cancel := tapper.TapMessages(func(msg message.Message) {
			select {
			case queue <- msg:
			default:
			}
		})
		defer cancel()

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()

		for {
			select {
			case msg := <-queue:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(msg); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-done:
				return
			case <-r.Context().Done():
				return
			}
		}
	}
}

// StreamEvents upgrades the request to a websocket and streams
// federation lifecycle events until the client goes away. Events that
// arrive faster than the client reads are dropped, the stream is a
// monitoring surface, not a durable feed.
func StreamEvents(events *federation.Emitter, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", slog.Any("error", err))

			return
		}
		defer conn.Close()

		queue := make(chan wsEvent, wsEventQueue)
		events.Listen(func(ev federation.Event) {
			out := wsEvent{Kind: ev.Kind, NodeID: ev.NodeID, At: ev.At}
			if ev.Err != nil {
				out.Error = ev.Err.Error()
			}
			select {
			case queue <- out:
			default:
			}
		})

		// Reader goroutine detects client close.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()

		for {
			select {
			case ev := <-queue:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(ev); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-done:
				return
			case <-r.Context().Done():
				return
			}
		}
	}
}
