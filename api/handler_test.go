package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"

	nexus "github.com/nexushub/nexus"
	"github.com/nexushub/nexus/api"
	"github.com/nexushub/nexus/store/memory"
)

// testServer creates a handler backed by a memory store. The loopback
// rewrite is disabled so relay targets resolve to local httptest servers;
// tests that exercise the rewrite pass their own alias.
func testServer(t *testing.T, opts ...nexus.Option) *httptest.Server {
	t.Helper()

	opts = append([]nexus.Option{
		nexus.WithStore(memory.New()),
		nexus.WithHostAlias(""),
	}, opts...)
	hub, err := nexus.New(opts...)
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(api.NewHandler(hub, slog.Default()))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func capture(t *testing.T, srv *httptest.Server, payload any) int64 {
	t.Helper()
	resp := doJSON(t, "POST", srv.URL+"/webhook", payload, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("capture: expected 200, got %d", resp.StatusCode)
	}
	var out struct {
		ID int64 `json:"id"`
	}
	decodeBody(t, resp, &out)
	return out.ID
}

// --- Capture ---

func TestCaptureWebhook(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/webhook", map[string]any{"order": "ord_1"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out struct {
		Status string `json:"status"`
		ID     int64  `json:"id"`
	}
	decodeBody(t, resp, &out)
	if out.Status != "captured" || out.ID != 1 {
		t.Fatalf("unexpected capture response: %+v", out)
	}
}

func TestCaptureAnyMethod(t *testing.T) {
	srv := testServer(t)

	for _, method := range []string{"PUT", "PATCH", "DELETE"} {
		resp := doJSON(t, method, srv.URL+"/webhook", map[string]any{"m": method}, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s /webhook: expected 200, got %d", method, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestCaptureRejectsNonJSON(t *testing.T) {
	srv := testServer(t)

	req, _ := http.NewRequestWithContext(context.Background(), "POST",
		srv.URL+"/webhook", strings.NewReader("not json"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// --- Health and dashboard ---

func TestHealth(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestDashboard(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("expected HTML, got %q", ct)
	}
}

// --- History ---

func TestHistoryFlow(t *testing.T) {
	srv := testServer(t)

	capture(t, srv, map[string]any{"n": 1})
	second := capture(t, srv, map[string]any{"n": 2})

	// Newest first.
	resp := doJSON(t, "GET", srv.URL+"/api/history", nil, nil)
	var events []map[string]any
	decodeBody(t, resp, &events)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if int64(events[0]["id"].(float64)) != second {
		t.Fatalf("expected newest first, got %v", events[0]["id"])
	}
	if _, err := time.Parse("15:04:05", events[0]["time"].(string)); err != nil {
		t.Fatalf("expected HH:MM:SS time, got %v", events[0]["time"])
	}

	// Favorite.
	resp = doJSON(t, "PATCH", srv.URL+"/api/events/1/favorite", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("favorite: expected 200, got %d", resp.StatusCode)
	}
	var fav struct {
		Status     string `json:"status"`
		EventID    int64  `json:"event_id"`
		IsFavorite bool   `json:"is_favorite"`
	}
	decodeBody(t, resp, &fav)
	if fav.Status != "updated" || !fav.IsFavorite {
		t.Fatalf("unexpected favorite response: %+v", fav)
	}

	// Soft delete hides from history.
	resp = doJSON(t, "DELETE", srv.URL+"/api/events/1", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", resp.StatusCode)
	}
	var del struct {
		Status  string `json:"status"`
		EventID int64  `json:"event_id"`
	}
	decodeBody(t, resp, &del)
	if del.Status != "deleted" || del.EventID != 1 {
		t.Fatalf("unexpected delete response: %+v", del)
	}

	resp = doJSON(t, "GET", srv.URL+"/api/history", nil, nil)
	decodeBody(t, resp, &events)
	if len(events) != 1 || int64(events[0]["id"].(float64)) != second {
		t.Fatalf("expected only event %d, got %v", second, events)
	}
}

func TestEventNotFound(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "DELETE", srv.URL+"/api/events/99", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "PATCH", srv.URL+"/api/events/abc/favorite", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad ID, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// --- Relay ---

func TestReplayEvent(t *testing.T) {
	srv := testServer(t)

	var received map[string]any
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received) //nolint:errcheck
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	id := capture(t, srv, map[string]any{"order": "ord_1"})

	// A soft-deleted event is still replayable.
	resp := doJSON(t, "DELETE", srv.URL+"/api/events/1", nil, nil)
	resp.Body.Close()

	resp = doJSON(t, "POST",
		srv.URL+"/api/events/1/replay?target_url="+target.URL, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("replay: expected 200, got %d", resp.StatusCode)
	}
	var result struct {
		Status  string `json:"status"`
		EventID int64  `json:"event_id"`
	}
	decodeBody(t, resp, &result)
	if result.Status != "replayed" {
		t.Fatalf("expected replayed, got %q", result.Status)
	}
	if result.EventID != 0 {
		t.Fatal("replay must not create a new event")
	}
	if received["order"] != "ord_1" {
		t.Fatalf("target did not receive payload of event %d: %v", id, received)
	}
}

func TestReplayRequiresTarget(t *testing.T) {
	srv := testServer(t)
	capture(t, srv, map[string]any{"n": 1})

	resp := doJSON(t, "POST", srv.URL+"/api/events/1/replay", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestReplayUnknownEvent(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/api/events/42/replay?target_url=http://example.com", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSendEndpoint(t *testing.T) {
	srv := testServer(t)

	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"pong":true}`)
	}))
	defer target.Close()

	resp := doJSON(t, "POST", srv.URL+"/api/send", map[string]any{
		"url":     target.URL,
		"payload": map[string]any{"ping": 1},
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("send: expected 200, got %d", resp.StatusCode)
	}
	var result struct {
		Status  string `json:"status"`
		EventID int64  `json:"event_id"`
	}
	decodeBody(t, resp, &result)
	if result.Status != "sent" || result.EventID == 0 {
		t.Fatalf("unexpected send result: %+v", result)
	}

	// The manual send shows up in history.
	resp = doJSON(t, "GET", srv.URL+"/api/history", nil, nil)
	var events []map[string]any
	decodeBody(t, resp, &events)
	if len(events) != 1 || events[0]["source_address"] != "manual_send" {
		t.Fatalf("expected a manual_send record, got %v", events)
	}
}

func TestSendViaGet(t *testing.T) {
	srv := testServer(t)

	var gotMethod string
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		io.WriteString(w, "ok")
	}))
	defer target.Close()

	resp := doJSON(t, "GET", srv.URL+"/api/send?url="+target.URL, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
	if gotMethod != "GET" {
		t.Fatalf("expected GET at the target, got %s", gotMethod)
	}
}

func TestSendQueryOnlyInput(t *testing.T) {
	srv := testServer(t)

	var gotMethod string
	var received map[string]any
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		json.NewDecoder(r.Body).Decode(&received) //nolint:errcheck
		io.WriteString(w, "ok")
	}))
	defer target.Close()

	// A bodyless POST with query-only inputs is valid.
	resp := doJSON(t, "POST", srv.URL+"/api/send?url="+target.URL, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("query-only POST: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
	if gotMethod != "POST" {
		t.Fatalf("expected POST at the target, got %s", gotMethod)
	}

	// The GET form honors method and payload overrides from the query.
	resp = doJSON(t, "GET",
		srv.URL+"/api/send?url="+target.URL+"&method=POST&payload=%7B%22ping%22%3A1%7D", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET with overrides: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
	if gotMethod != "POST" {
		t.Fatalf("expected method override to reach the target, got %s", gotMethod)
	}
	if received["ping"] != float64(1) {
		t.Fatalf("expected query payload at the target, got %v", received)
	}
}

func TestSendRewritesLoopbackTarget(t *testing.T) {
	var received map[string]any
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received) //nolint:errcheck
		io.WriteString(w, "ok")
	}))
	defer target.Close()

	// httptest binds 127.0.0.1, so aliasing to it makes a localhost
	// target reachable only through the rewrite.
	host, port, err := net.SplitHostPort(strings.TrimPrefix(target.URL, "http://"))
	if err != nil {
		t.Fatal(err)
	}
	srv := testServer(t, nexus.WithHostAlias(host))

	loopback := "http://localhost:" + port
	resp := doJSON(t, "POST", srv.URL+"/api/send", map[string]any{
		"url":     loopback,
		"payload": map[string]any{"ping": 1},
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result struct {
		Status      string `json:"status"`
		TargetURL   string `json:"target_url"`
		ResolvedURL string `json:"resolved_url"`
	}
	decodeBody(t, resp, &result)
	if result.Status != "sent" {
		t.Fatalf("expected sent, got %q", result.Status)
	}
	if result.TargetURL != loopback {
		t.Fatalf("expected target_url %q, got %q", loopback, result.TargetURL)
	}
	if result.ResolvedURL != target.URL {
		t.Fatalf("expected resolved_url %q, got %q", target.URL, result.ResolvedURL)
	}
	if received["ping"] != float64(1) {
		t.Fatalf("rewritten send did not reach the target: %v", received)
	}
}

func TestSendRequiresTarget(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/api/send", map[string]any{}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// --- Auth ---

func TestAuthLifecycleAndGate(t *testing.T) {
	srv := testServer(t)

	// Unconfigured: API is open.
	resp := doJSON(t, "GET", srv.URL+"/api/auth/status", nil, nil)
	var status struct {
		Configured bool `json:"configured"`
	}
	decodeBody(t, resp, &status)
	if status.Configured {
		t.Fatal("expected unconfigured")
	}

	resp = doJSON(t, "GET", srv.URL+"/api/history", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unconfigured API must be open, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Setup mints the token.
	resp = doJSON(t, "POST", srv.URL+"/api/auth/setup", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("setup: expected 200, got %d", resp.StatusCode)
	}
	var minted struct {
		Token string `json:"token"`
	}
	decodeBody(t, resp, &minted)
	if !strings.HasPrefix(minted.Token, "nxs_") {
		t.Fatalf("unexpected token %q", minted.Token)
	}

	// Second setup is rejected.
	resp = doJSON(t, "POST", srv.URL+"/api/auth/setup", nil, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Gate is now closed without a token.
	resp = doJSON(t, "GET", srv.URL+"/api/history", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "GET", srv.URL+"/api/history", nil,
		map[string]string{"Authorization": "Bearer wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Both token header forms are accepted.
	resp = doJSON(t, "GET", srv.URL+"/api/history", nil,
		map[string]string{"Authorization": "Bearer " + minted.Token})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with bearer token, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "GET", srv.URL+"/api/history", nil,
		map[string]string{"X-Nexus-Token": minted.Token})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with X-Nexus-Token, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Capture stays open regardless of the gate.
	capture(t, srv, map[string]any{"n": 1})

	// Verify endpoint.
	resp = doJSON(t, "POST", srv.URL+"/api/auth/verify",
		map[string]string{"token": minted.Token}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "POST", srv.URL+"/api/auth/verify",
		map[string]string{"token": "wrong"}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("verify: expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Reset rotates; the old token stops working.
	resp = doJSON(t, "POST", srv.URL+"/api/auth/reset", nil,
		map[string]string{"Authorization": "Bearer " + minted.Token})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d", resp.StatusCode)
	}
	var rotated struct {
		Token string `json:"token"`
	}
	decodeBody(t, resp, &rotated)
	if rotated.Token == minted.Token {
		t.Fatal("expected a fresh token")
	}

	resp = doJSON(t, "GET", srv.URL+"/api/history", nil,
		map[string]string{"Authorization": "Bearer " + minted.Token})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected old token to be rejected, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAuthEndpointsAnswerGet(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "GET", srv.URL+"/api/auth/setup", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET setup: expected 200, got %d", resp.StatusCode)
	}
	var minted struct {
		Token string `json:"token"`
	}
	decodeBody(t, resp, &minted)

	resp = doJSON(t, "GET", srv.URL+"/api/auth/verify", nil,
		map[string]string{"X-Nexus-Token": minted.Token})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET verify: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestResetWithoutTokenRejected(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/api/auth/setup", nil, nil)
	resp.Body.Close()

	resp = doJSON(t, "POST", srv.URL+"/api/auth/reset", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// --- Live feed ---

func TestWebSocketFeed(t *testing.T) {
	srv := testServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// Let the observer register before capturing.
	time.Sleep(50 * time.Millisecond)

	id := capture(t, srv, map[string]any{"order": "ord_1"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	var frame string
	if err := websocket.Message.Receive(conn, &frame); err != nil {
		t.Fatalf("receive: %v", err)
	}

	var note struct {
		ID      int64          `json:"id"`
		Method  string         `json:"method"`
		Payload map[string]any `json:"payload"`
		Time    string         `json:"time"`
	}
	if err := json.Unmarshal([]byte(frame), &note); err != nil {
		t.Fatalf("frame was not JSON: %v", err)
	}
	if note.ID != id || note.Method != "POST" {
		t.Fatalf("unexpected frame: %+v", note)
	}
	if note.Payload["order"] != "ord_1" {
		t.Fatalf("expected payload in frame, got %v", note.Payload)
	}
	if _, err := time.Parse("15:04:05", note.Time); err != nil {
		t.Fatalf("expected HH:MM:SS time, got %q", note.Time)
	}
}

func TestWebSocketDisconnectUnregisters(t *testing.T) {
	srv := testServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	conn.Close()

	// Capture after disconnect must not panic or block.
	capture(t, srv, map[string]any{"n": 1})
}
