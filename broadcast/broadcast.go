// Package broadcast implements the live observer registry and its fan-out.
//
// The hub owns the only in-memory shared mutable structure in the system:
// the set of live connections. Register, Unregister, and Broadcast are all
// safe to call concurrently. Delivery is best-effort; there is no queuing
// for absent observers and no replay on reconnect.
package broadcast

import (
	"log/slog"
	"sync"

	"github.com/nexushub/nexus/id"
	"github.com/nexushub/nexus/observability"
)

const defaultBuffer = 32

// Sink is the transport half of an observer connection. Send must not be
// called concurrently; the hub serializes sends per connection.
type Sink interface {
	// Send writes one message to the peer.
	Send(msg []byte) error

	// Close tears down the transport. Called at most once.
	Close() error
}

// Config holds hub configuration.
type Config struct {
	// Buffer is the per-connection outbound queue depth. A connection
	// whose queue is full is treated as failed and removed.
	Buffer int

	// Metrics instruments fan-out outcomes. Optional.
	Metrics *observability.Metrics
}

// Conn is one live observer connection registered with the hub.
//
// Each connection has a dedicated writer goroutine draining its outbound
// queue, which gives FIFO delivery per observer without letting a slow
// peer block the broadcaster.
type Conn struct {
	id   id.ID
	sink Sink
	out  chan []byte

	closeOnce sync.Once
}

// ID returns the connection's opaque identity.
func (c *Conn) ID() string { return c.id.String() }

// close shuts the outbound queue exactly once. The writer goroutine
// drains what remains and closes the sink.
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.out)
	})
}

// Hub is the registry of live observer connections.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*Conn
	config Config
	logger *slog.Logger
}

// NewHub creates a new connection registry.
func NewHub(cfg Config, logger *slog.Logger) *Hub {
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		conns:  make(map[string]*Conn),
		config: cfg,
		logger: logger,
	}
}

// Register adds a connection for the given transport and starts its
// writer goroutine. Safe to call concurrently with ongoing broadcasts.
func (h *Hub) Register(sink Sink) *Conn {
	c := &Conn{
		id:   id.NewConnectionID(),
		sink: sink,
		out:  make(chan []byte, h.config.Buffer),
	}

	h.mu.Lock()
	h.conns[c.id.String()] = c
	n := len(h.conns)
	h.mu.Unlock()

	go h.writeLoop(c)

	if h.config.Metrics != nil {
		h.config.Metrics.LiveObservers.Set(float64(n))
	}
	h.logger.Debug("observer registered", "conn_id", c.id, "observers", n)
	return c
}

// Unregister removes a connection from the registry and tears down its
// transport. Idempotent: unregistering an absent connection is a no-op,
// which absorbs the race between a failing send and an explicit disconnect.
func (h *Hub) Unregister(c *Conn) {
	if c == nil {
		return
	}

	h.mu.Lock()
	_, present := h.conns[c.id.String()]
	if present {
		delete(h.conns, c.id.String())
	}
	n := len(h.conns)
	h.mu.Unlock()

	c.close()

	if !present {
		return
	}
	if h.config.Metrics != nil {
		h.config.Metrics.LiveObservers.Set(float64(n))
	}
	h.logger.Debug("observer unregistered", "conn_id", c.id, "observers", n)
}

// Broadcast enqueues a message to every currently-registered connection.
// The enqueue is non-blocking: a connection whose queue is full is dropped
// from the registry instead of delaying the caller. Delivery to one
// observer is independent of delivery to the others.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.enqueue(msg) {
			h.logger.Warn("observer queue full, dropping connection", "conn_id", c.id)
			if h.config.Metrics != nil {
				h.config.Metrics.RecordBroadcast("dropped")
			}
			h.Unregister(c)
			continue
		}
		if h.config.Metrics != nil {
			h.config.Metrics.RecordBroadcast("enqueued")
		}
	}
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// enqueue offers a message to the connection's outbound queue. Returns
// false when the queue is full or already closed.
func (c *Conn) enqueue(msg []byte) (ok bool) {
	defer func() {
		// The queue may close concurrently with a broadcast; a send on a
		// closed channel is equivalent to a failed delivery.
		if recover() != nil {
			ok = false
		}
	}()

	select {
	case c.out <- msg:
		return true
	default:
		return false
	}
}

// writeLoop drains the connection's outbound queue in order. A write
// failure removes the connection from the registry; delivery to other
// connections is unaffected.
func (h *Hub) writeLoop(c *Conn) {
	defer c.sink.Close() //nolint:errcheck // peer may already be gone

	for msg := range c.out {
		if err := c.sink.Send(msg); err != nil {
			h.logger.Debug("observer send failed", "conn_id", c.id, "error", err)
			h.Unregister(c)
			return
		}
	}
}
