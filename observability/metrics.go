package observability

import (
	gu "github.com/xraph/go-utils/metrics"
)

// Metrics holds metric instruments for the hub, backed by any go-utils
// MetricFactory.
type Metrics struct {
	EventsCapturedTotal gu.Counter
	BroadcastsTotal     gu.Counter
	RelaysTotal         gu.Counter
	RelayLatency        gu.Histogram
	LiveObservers       gu.Gauge
}

// NewMetrics creates hub metric instruments using the supplied factory.
func NewMetrics(factory gu.MetricFactory) *Metrics {
	return &Metrics{
		EventsCapturedTotal: factory.Counter("nexus_events_captured_total"),
		BroadcastsTotal:     factory.Counter("nexus_broadcasts_total"),
		RelaysTotal:         factory.Counter("nexus_relays_total"),
		RelayLatency:        factory.Histogram("nexus_relay_latency_seconds"),
		LiveObservers:       factory.Gauge("nexus_live_observers"),
	}
}

// RecordBroadcast records a per-observer delivery outcome.
func (m *Metrics) RecordBroadcast(outcome string) {
	m.BroadcastsTotal.WithLabels(map[string]string{"outcome": outcome}).Inc()
}

// RecordRelay records an outbound relay attempt with its outcome and latency.
func (m *Metrics) RecordRelay(outcome string, latencySeconds float64) {
	m.RelaysTotal.WithLabels(map[string]string{"outcome": outcome}).Inc()
	m.RelayLatency.Observe(latencySeconds)
}
