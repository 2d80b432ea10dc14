// Package nexus provides a webhook capture-and-relay hub for Go.
//
// Nexus accepts arbitrary inbound HTTP requests, persists them as structured
// events, fans them out in real time to connected observers, and can
// re-forward a stored or ad-hoc payload to an arbitrary target endpoint.
// Access to the management surface is gated by a single machine token
// generated on first use.
//
// Key pieces:
//   - Durable event ledger with soft delete and favorite flags
//     (Memory, SQLite, Postgres, Bun, Redis backends)
//   - Concurrency-safe observer registry with per-connection FIFO fan-out
//   - Outbound relay with loopback-address resolution and strict failure
//     containment (a broken remote never takes down the hub)
//   - Configure-once machine token with authenticated rotation
//
// Quick start:
//
//	h, err := nexus.New(
//	    nexus.WithStore(memoryStore),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	evt, err := h.Capture(ctx, nexus.Inbound{
//	    SourceAddress: "10.0.0.7",
//	    Method:        "POST",
//	    Body:          []byte(`{"order_id":"ORD-001"}`),
//	})
package nexus
