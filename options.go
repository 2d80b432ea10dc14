package nexus

import (
	"log/slog"
	"time"

	"github.com/nexushub/nexus/auth"
	"github.com/nexushub/nexus/broadcast"
	"github.com/nexushub/nexus/observability"
	"github.com/nexushub/nexus/relayer"
	"github.com/nexushub/nexus/schema"
	"github.com/nexushub/nexus/store"
)

// Hub is the root webhook capture-and-relay engine.
type Hub struct {
	config        Config
	store         store.Store
	captureSchema any
	guard         *schema.Guard
	logger        *slog.Logger
	metrics       *observability.Metrics
	tracer        *observability.Tracer

	broadcaster *broadcast.Hub
	relaySvc    *relayer.Forwarder
	authGate    *auth.Gate
}

// Option configures a Hub instance.
type Option func(*Hub) error

// New creates a new Hub with the given options.
func New(opts ...Option) (*Hub, error) {
	h := &Hub{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, err
		}
	}
	if h.store == nil {
		return nil, ErrNoStore
	}
	h.wireServices()
	return h, nil
}

// WithStore sets the persistence backend for the Hub instance.
func WithStore(s store.Store) Option {
	return func(h *Hub) error {
		h.store = s
		return nil
	}
}

// WithLogger sets the structured logger for the Hub instance.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) error {
		h.logger = logger
		return nil
	}
}

// WithRelayTimeout sets the timeout for a single outbound relay attempt.
func WithRelayTimeout(d time.Duration) Option {
	return func(h *Hub) error {
		h.config.RelayTimeout = d
		return nil
	}
}

// WithHostAlias sets the replacement for loopback addresses in relay targets.
func WithHostAlias(alias string) Option {
	return func(h *Hub) error {
		h.config.HostAlias = alias
		return nil
	}
}

// WithHistoryLimit sets the default size of recency listings.
func WithHistoryLimit(n int) Option {
	return func(h *Hub) error {
		h.config.HistoryLimit = n
		return nil
	}
}

// WithObserverBuffer sets the per-connection outbound queue depth.
func WithObserverBuffer(n int) Option {
	return func(h *Hub) error {
		h.config.ObserverBuffer = n
		return nil
	}
}

// WithCaptureSchema enables JSON Schema validation of inbound webhook
// payloads. By default no schema is enforced and arbitrary payloads
// round-trip verbatim.
func WithCaptureSchema(schema any) Option {
	return func(h *Hub) error {
		h.captureSchema = schema
		return nil
	}
}

// WithMetrics sets the metric instruments for the Hub instance.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Hub) error {
		h.metrics = m
		return nil
	}
}

// WithTracer sets the tracer used for outbound relay spans.
func WithTracer(t *observability.Tracer) Option {
	return func(h *Hub) error {
		h.tracer = t
		return nil
	}
}
