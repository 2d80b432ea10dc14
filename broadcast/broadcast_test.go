package broadcast_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nexushub/nexus/broadcast"
)

// chanSink records every delivered message and signals on close.
type chanSink struct {
	mu     sync.Mutex
	msgs   [][]byte
	closed chan struct{}

	failAfter int // fail every Send once this many have succeeded; -1 disables
}

func newChanSink() *chanSink {
	return &chanSink{closed: make(chan struct{}), failAfter: -1}
}

func (s *chanSink) Send(msg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAfter >= 0 && len(s.msgs) >= s.failAfter {
		return errors.New("peer gone")
	}
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *chanSink) Close() error {
	close(s.closed)
	return nil
}

func (s *chanSink) messages() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.msgs))
	copy(out, s.msgs)
	return out
}

func (s *chanSink) waitClosed(t *testing.T) {
	t.Helper()
	select {
	case <-s.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("sink was not closed")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never held")
}

func TestBroadcastFIFOPerObserver(t *testing.T) {
	h := broadcast.NewHub(broadcast.Config{}, nil)
	sink := newChanSink()
	c := h.Register(sink)

	for i := range 20 {
		h.Broadcast([]byte(fmt.Sprintf("msg-%d", i)))
	}

	waitFor(t, func() bool { return len(sink.messages()) == 20 })
	for i, msg := range sink.messages() {
		if want := fmt.Sprintf("msg-%d", i); string(msg) != want {
			t.Fatalf("message %d: got %q, want %q", i, msg, want)
		}
	}

	h.Unregister(c)
	sink.waitClosed(t)
}

func TestBroadcastSurvivesFailingObserver(t *testing.T) {
	h := broadcast.NewHub(broadcast.Config{}, nil)

	bad := newChanSink()
	bad.failAfter = 0
	good := newChanSink()

	h.Register(bad)
	h.Register(good)

	h.Broadcast([]byte("one"))

	// The failing connection is removed; the healthy one keeps receiving.
	waitFor(t, func() bool { return h.Count() == 1 })
	bad.waitClosed(t)

	h.Broadcast([]byte("two"))
	waitFor(t, func() bool { return len(good.messages()) == 2 })
}

func TestUnregisterIdempotent(t *testing.T) {
	h := broadcast.NewHub(broadcast.Config{}, nil)
	sink := newChanSink()
	c := h.Register(sink)

	h.Unregister(c)
	h.Unregister(c)
	h.Unregister(nil)

	if n := h.Count(); n != 0 {
		t.Fatalf("expected 0 connections, got %d", n)
	}
	sink.waitClosed(t)
}

// blockingSink holds every Send until the gate is released.
type blockingSink struct {
	gate   chan struct{}
	closed chan struct{}
	once   sync.Once
}

func (s *blockingSink) Send(_ []byte) error {
	<-s.gate
	return nil
}

func (s *blockingSink) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func TestSlowObserverIsDropped(t *testing.T) {
	h := broadcast.NewHub(broadcast.Config{Buffer: 1}, nil)
	sink := &blockingSink{gate: make(chan struct{}), closed: make(chan struct{})}
	h.Register(sink)

	// With a queue depth of one, at most one message can be in flight and
	// one queued; the third enqueue must fail and drop the connection.
	h.Broadcast([]byte("a"))
	h.Broadcast([]byte("b"))
	h.Broadcast([]byte("c"))

	if n := h.Count(); n != 0 {
		t.Fatalf("expected slow observer to be dropped, still %d registered", n)
	}

	close(sink.gate)
	select {
	case <-sink.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("sink was not closed after drop")
	}
}

func TestBroadcastToNobody(t *testing.T) {
	h := broadcast.NewHub(broadcast.Config{}, nil)
	h.Broadcast([]byte("into the void")) // must not panic
	if n := h.Count(); n != 0 {
		t.Fatalf("expected 0 connections, got %d", n)
	}
}

func TestConcurrentRegisterBroadcast(t *testing.T) {
	h := broadcast.NewHub(broadcast.Config{Buffer: 128}, nil)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink := newChanSink()
			c := h.Register(sink)
			h.Broadcast([]byte("x"))
			h.Unregister(c)
		}()
	}
	wg.Wait()

	if n := h.Count(); n != 0 {
		t.Fatalf("expected 0 connections after churn, got %d", n)
	}
}
