/*
PURPOSE:
  Live progress feed for long batches. Browsers or scripts connect to /ws
  and receive every batch event as a JSON message.

REQUIREMENTS:
  User-specified:
  - Failed, skipped and completed designs are distinguishable to observers.

  Implementation-discovered:
  - A slow client must never stall the workers: Publish never blocks and
    clients that fall behind are dropped.

ARCHITECTURE INTEGRATION:
  - Used by: internal/engine (Publisher), internal/cli (run --progress-addr)
  - Dependencies: github.com/gorilla/websocket

ERROR HANDLING:
  - Upgrade and write errors disconnect the client and are logged.

IMPLEMENTATION RULES:
  - Client set is owned by the Run goroutine.

USAGE:
  hub := progress.NewHub(logger)
  go hub.Run(ctx)
  http.Handle("/ws", hub)

SELF-HEALING INSTRUCTIONS:
  - If clients need history, keep a ring of recent events in Run.

RELATED FILES:
  - internal/progress/server.go
  - internal/engine/runner.go

MAINTENANCE:
  - Event is the wire format; add fields, do not rename.
*/

package progress

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	eventBuffer  = 256
	clientBuffer = 64
	writeWait    = 10 * time.Second
)

type client struct {
	conn *websocket.Conn
	send chan Event
}

// Hub maintains the set of active clients and broadcasts events to them.
type Hub struct {
	upgrader   websocket.Upgrader
	register   chan *client
	unregister chan *client
	events     chan Event
	done       chan struct{}
	clients    atomic.Int64
	log        *slog.Logger
}

// NewHub returns a hub; call Run to start it.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		register:   make(chan *client),
		unregister: make(chan *client),
		events:     make(chan Event, eventBuffer),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Publish queues e for broadcast. Events are dropped when the hub is behind.
func (h *Hub) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	select {
	case h.events <- e:
	default:
		h.log.Debug("progress event dropped", "kind", e.Kind, "design", e.Design)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	return int(h.clients.Load())
}

// Run broadcasts events until ctx is done, then delivers the events already
// published and disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	clients := make(map[*client]bool)
	for {
		select {
		case <-ctx.Done():
			h.shutdown(clients)
			return
		case c := <-h.register:
			clients[c] = true
			h.clients.Add(1)
		case c := <-h.unregister:
			h.drop(clients, c)
		case e := <-h.events:
			h.broadcast(clients, e)
		}
	}
}

func (h *Hub) broadcast(clients map[*client]bool, e Event) {
	for c := range clients {
		select {
		case c.send <- e:
		default:
			h.log.Warn("progress client too slow, disconnecting", "remote", c.conn.RemoteAddr())
			h.drop(clients, c)
		}
	}
}

// shutdown flushes queued events, so the final batch-done reaches clients
// even when the batch ends right before the hub is stopped.
func (h *Hub) shutdown(clients map[*client]bool) {
	for {
		select {
		case e := <-h.events:
			h.broadcast(clients, e)
		default:
			for c := range clients {
				h.drop(clients, c)
			}
			return
		}
	}
}

func (h *Hub) drop(clients map[*client]bool, c *client) {
	if clients[c] {
		delete(clients, c)
		close(c.send)
		h.clients.Add(-1)
	}
}

// ServeHTTP upgrades the request and streams events to it.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan Event, clientBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	go h.writePump(c)
	h.readPump(c)
}

// readPump discards client messages and notices disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for e := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(&e); err != nil {
			h.log.Debug("progress write failed", "error", err)
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
