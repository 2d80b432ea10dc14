// Package relayer forwards stored or ad-hoc payloads to external endpoints.
//
// A relay is a single attempt under a bounded timeout. Remote failures are
// contained here: a transport error or timeout surfaces as ErrRelayFailed,
// and a remote non-2xx status is reported inside the Result rather than
// treated as a hub failure. Nothing a remote endpoint does can crash the hub.
package relayer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/nexushub/nexus/event"
	"github.com/nexushub/nexus/observability"
)

// maxResponseBody caps how much of a remote response is read. The response
// becomes the recorded event payload on manual sends, so the cap is
// generous compared to a plain delivery receipt.
const maxResponseBody = 64 << 10

// Sentinel errors returned by relay operations.
var (
	// ErrMissingTarget is returned when no target address is given.
	ErrMissingTarget = errors.New("relayer: target address is required")

	// ErrRelayFailed is returned on transport-level failure: connection
	// error, timeout, or an unreadable response.
	ErrRelayFailed = errors.New("relayer: relay failed")
)

// Config holds forwarder configuration.
type Config struct {
	// Timeout bounds a single outbound attempt. No retries.
	Timeout time.Duration

	// HostAlias replaces loopback addresses in target URLs before
	// dispatch. Empty disables the rewrite.
	HostAlias string

	// Metrics instruments relay outcomes. Optional.
	Metrics *observability.Metrics

	// Tracer wraps each attempt in a span. Optional.
	Tracer *observability.Tracer
}

// SendInput describes an ad-hoc operator send.
type SendInput struct {
	// TargetURL is the destination address. Required.
	TargetURL string

	// Payload is the body forwarded on non-GET sends. May be nil.
	Payload any

	// Method is the HTTP verb. Defaults to POST.
	Method string
}

// Result reports the outcome of a relay attempt.
type Result struct {
	Status string `json:"status"`

	// TargetURL is the address as given by the caller; ResolvedURL is the
	// address actually dialed after the loopback rewrite. Both are
	// reported for transparency.
	TargetURL   string `json:"target_url"`
	ResolvedURL string `json:"resolved_url"`

	// StatusCode and Response describe the remote's reply. A remote 4xx
	// or 5xx lands here; it is not a hub failure.
	StatusCode int    `json:"status_code"`
	Response   string `json:"response"`

	// EventID is the ledger record created for a manual send. Zero for
	// replays, which never persist.
	EventID int64 `json:"event_id,omitempty"`
}

// Forwarder performs outbound relay calls and records manual sends.
type Forwarder struct {
	ledger event.Store
	client *http.Client
	config Config
	logger *slog.Logger
}

// NewForwarder creates a forwarder with the given ledger and configuration.
func NewForwarder(ledger event.Store, cfg Config, logger *slog.Logger) *Forwarder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{
		ledger: ledger,
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
		logger: logger,
	}
}

// Resolve applies the loopback-address rule to a target URL. The rewrite
// is a textual substring replacement applied before the request is issued;
// non-loopback addresses pass through unchanged.
func (f *Forwarder) Resolve(target string) string {
	if f.config.HostAlias == "" {
		return target
	}
	resolved := strings.ReplaceAll(target, "localhost", f.config.HostAlias)
	resolved = strings.ReplaceAll(resolved, "127.0.0.1", f.config.HostAlias)
	return resolved
}

// Replay forwards a stored event's payload to the target address as a JSON
// POST. Replays never create a new ledger record.
func (f *Forwarder) Replay(ctx context.Context, evt *event.Event, target string) (*Result, error) {
	if target == "" {
		return nil, ErrMissingTarget
	}
	resolved := f.Resolve(target)

	body, err := json.Marshal(evt.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal payload: %s", ErrRelayFailed, err.Error())
	}

	statusCode, respBody, err := f.dispatch(ctx, http.MethodPost, resolved, body)
	if err != nil {
		return nil, err
	}

	f.logger.DebugContext(ctx, "event replayed",
		"event_id", evt.ID,
		"target", target,
		"resolved", resolved,
		"status", statusCode,
	)

	return &Result{
		Status:      "replayed",
		TargetURL:   target,
		ResolvedURL: resolved,
		StatusCode:  statusCode,
		Response:    string(respBody),
	}, nil
}

// Send forwards an ad-hoc payload to the target address and records the
// interaction as a manual_send event. The event is written only after a
// response is obtained, so a failed attempt leaves no partial record.
func (f *Forwarder) Send(ctx context.Context, in SendInput) (*Result, error) {
	if in.TargetURL == "" {
		return nil, ErrMissingTarget
	}
	method := strings.ToUpper(in.Method)
	if method == "" {
		method = http.MethodPost
	}
	resolved := f.Resolve(in.TargetURL)

	var body []byte
	if method != http.MethodGet {
		var err error
		body, err = json.Marshal(in.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal payload: %s", ErrRelayFailed, err.Error())
		}
	}

	statusCode, respBody, err := f.dispatch(ctx, method, resolved, body)
	if err != nil {
		return nil, err
	}

	recorded := f.recordedPayload(method, in.Payload, respBody)

	evt := &event.Event{
		SourceAddress: event.SourceManualSend,
		Method:        method,
		Headers: map[string]any{
			"target_url":   in.TargetURL,
			"resolved_url": resolved,
		},
		Payload: recorded,
	}
	if insertErr := f.ledger.InsertEvent(ctx, evt); insertErr != nil {
		return nil, fmt.Errorf("relayer: record manual send: %w", insertErr)
	}

	f.logger.DebugContext(ctx, "manual send recorded",
		"event_id", evt.ID,
		"target", in.TargetURL,
		"resolved", resolved,
		"status", statusCode,
	)

	return &Result{
		Status:      "sent",
		TargetURL:   in.TargetURL,
		ResolvedURL: resolved,
		StatusCode:  statusCode,
		Response:    string(respBody),
		EventID:     evt.ID,
	}, nil
}

// dispatch performs one HTTP call under the forwarder's timeout. Only
// transport-level problems become errors; any remote status code is a
// successful dispatch.
func (f *Forwarder) dispatch(ctx context.Context, method, url string, body []byte) (int, []byte, error) {
	var span trace.Span
	if f.config.Tracer != nil {
		ctx, span = f.config.Tracer.StartRelaySpan(ctx, url, method)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		f.finish(span, 0, 0, err.Error())
		return 0, nil, fmt.Errorf("%w: %s", ErrRelayFailed, err.Error())
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "Nexus/1.0")

	start := time.Now()
	resp, err := f.client.Do(req) //nolint:gosec // G704: the URL is an operator-chosen relay destination; SSRF is by design.
	latency := time.Since(start)

	if err != nil {
		f.finish(span, 0, int(latency.Milliseconds()), err.Error())
		if f.config.Metrics != nil {
			f.config.Metrics.RecordRelay("transport_error", latency.Seconds())
		}
		return 0, nil, fmt.Errorf("%w: %s", ErrRelayFailed, err.Error())
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if readErr != nil {
		f.finish(span, resp.StatusCode, int(latency.Milliseconds()), readErr.Error())
		if f.config.Metrics != nil {
			f.config.Metrics.RecordRelay("transport_error", latency.Seconds())
		}
		return 0, nil, fmt.Errorf("%w: read response: %s", ErrRelayFailed, readErr.Error())
	}

	f.finish(span, resp.StatusCode, int(latency.Milliseconds()), "")
	if f.config.Metrics != nil {
		f.config.Metrics.RecordRelay("completed", latency.Seconds())
	}
	return resp.StatusCode, respBody, nil
}

// recordedPayload builds the payload stored on a manual_send event: the
// remote response parsed as structured data when possible, raw text
// otherwise. Non-GET sends keep the sent payload alongside for context.
func (f *Forwarder) recordedPayload(method string, sent any, respBody []byte) any {
	var parsed any
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		parsed = string(respBody)
	}
	if method == http.MethodGet {
		return parsed
	}
	return map[string]any{
		"sent_payload": sent,
		"response":     parsed,
	}
}

func (f *Forwarder) finish(span trace.Span, statusCode, latencyMs int, errMsg string) {
	if span == nil || f.config.Tracer == nil {
		return
	}
	f.config.Tracer.EndRelaySpan(span, statusCode, latencyMs, errMsg)
}
