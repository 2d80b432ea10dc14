package nexus

import "time"

// Config holds the configuration for a Hub instance.
type Config struct {
	// RelayTimeout is the HTTP timeout for a single outbound relay attempt.
	// There are no retries; a timed-out attempt is a caller-visible failure.
	RelayTimeout time.Duration

	// HostAlias replaces loopback addresses in relay targets before
	// dispatch. The hub typically runs inside an isolated network
	// namespace, where a caller's "localhost" would otherwise point at the
	// hub itself.
	HostAlias string

	// HistoryLimit is the default number of events returned by recency
	// listings.
	HistoryLimit int

	// ObserverBuffer is the per-connection outbound queue depth. An
	// observer that falls this far behind is dropped.
	ObserverBuffer int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RelayTimeout:   10 * time.Second,
		HostAlias:      "host.docker.internal",
		HistoryLimit:   10,
		ObserverBuffer: 32,
	}
}
