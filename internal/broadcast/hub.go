package broadcast

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// DefaultPingInterval is how often silent connections are pinged.
	DefaultPingInterval = 30 * time.Second
	// DefaultGracePeriod is how long a connection may stay silent before
	// it is terminated.
	DefaultGracePeriod = 60 * time.Second

	// DefaultWriteTimeout bounds every data write. A connection that cannot
	// take a frame within it is treated as dead.
	DefaultWriteTimeout = 10 * time.Second
)

// Conn is the subset of *websocket.Conn the hub uses, abstracted so tests
// can inject fakes.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// client is one live connection in the fan-out set.
type client struct {
	id           string
	conn         Conn
	lastActivity time.Time
}

// Hub owns the set of live connections. All registry mutation happens under
// one mutex so the liveness sweep and broadcast never race with
// connect/disconnect.
type Hub struct {
	mu           sync.Mutex
	clients      map[string]*client
	dedup        dedup
	pingInterval time.Duration
	gracePeriod  time.Duration
	writeTimeout time.Duration
}

// Opts tunes the hub's liveness sweep and write deadline.
type Opts struct {
	PingInterval time.Duration
	GracePeriod  time.Duration
	WriteTimeout time.Duration
}

// NewHub creates an empty hub.
func NewHub(opts Opts) *Hub {
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultPingInterval
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	return &Hub{
		clients:      make(map[string]*client),
		pingInterval: opts.PingInterval,
		gracePeriod:  opts.GracePeriod,
		writeTimeout: opts.WriteTimeout,
	}
}

// Register adds a connection to the fan-out set and sends the handshake
// event. The handshake carries no business data; consumers must ignore it
// for dedup and state purposes. Returns the connection's id.
func (h *Hub) Register(conn Conn) (string, error) {
	id := uuid.NewString()
	c := &client{id: id, conn: conn, lastActivity: time.Now()}

	conn.SetPongHandler(func(string) error {
		h.touch(id)
		return nil
	})

	handshake := Envelope{
		Type:      EventConnected,
		Timestamp: time.Now().UTC(),
		Message:   "connected to dutywatch",
	}
	payload, err := json.Marshal(handshake)
	if err != nil {
		return "", err
	}
	if err := writeWithDeadline(conn, payload, h.writeTimeout); err != nil {
		conn.Close()
		return "", err
	}

	h.mu.Lock()
	h.clients[id] = c
	h.mu.Unlock()
	return id, nil
}

// Unregister removes a connection on explicit close.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	h.mu.Unlock()
	if ok {
		c.conn.Close()
	}
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast serializes an event once and writes it to every open
// connection. Every write is bounded by the hub's write timeout, so a
// client that stops reading surfaces as a write error instead of wedging
// the registry; the failed connection is removed without affecting
// delivery to the others. Duplicate suppression drops the event when it
// matches the most recent one sent. Fire-and-forget: failures are logged,
// never returned.
func (h *Hub) Broadcast(evt Envelope) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dedup.shouldSend(evt.Type, evt.Data) {
		return
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		log.Printf("broadcast: marshal %s event: %v", evt.Type, err)
		return
	}

	for id, c := range h.clients {
		if err := writeWithDeadline(c.conn, payload, h.writeTimeout); err != nil {
			log.Printf("broadcast: write to %s failed, dropping connection: %v", id, err)
			c.conn.Close()
			delete(h.clients, id)
		}
	}
}

// writeWithDeadline arms a deadline before the data write so a stalled
// peer fails the write instead of blocking it forever.
func writeWithDeadline(conn Conn, payload []byte, timeout time.Duration) error {
	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// Sweep pings connections silent for the ping interval and terminates any
// still silent past the grace period. Connections are removed from the
// fan-out set on termination.
func (h *Hub) Sweep(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, c := range h.clients {
		silent := now.Sub(c.lastActivity)
		switch {
		case silent >= h.gracePeriod:
			log.Printf("broadcast: connection %s unresponsive for %s, terminating", id, silent.Truncate(time.Second))
			c.conn.Close()
			delete(h.clients, id)
		case silent >= h.pingInterval:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, now.Add(h.writeTimeout)); err != nil {
				c.conn.Close()
				delete(h.clients, id)
			}
		}
	}
}

// RunSweeper runs the liveness sweep at the ping interval until ctx is
// cancelled.
func (h *Hub) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.Sweep(now)
		}
	}
}

// touch records activity on a connection, keeping it out of the sweep.
func (h *Hub) touch(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		c.lastActivity = time.Now()
	}
}
