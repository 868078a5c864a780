package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"
)

// collectSink records every event it receives.
type collectSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *collectSink) Emit(_ context.Context, event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *collectSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func TestDispatcherDeliversEvents(t *testing.T) {
	sink := &collectSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{
			EventType: "login",
			UserID:    "u" + strconv.Itoa(i),
			Success:   true,
		})
	}
	d.Close()

	events := sink.snapshot()
	if len(events) != 5 {
		t.Fatalf("delivered %d events, want 5", len(events))
	}
	if events[0].UserID != "u0" || events[4].UserID != "u4" {
		t.Fatalf("events out of order: first %q last %q", events[0].UserID, events[4].UserID)
	}
}

func TestDispatcherDisabledReturnsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, &collectSink{})
	if d != nil {
		t.Fatal("disabled dispatcher should be nil")
	}

	// Nil receivers are safe to use.
	d.Emit(context.Background(), Event{EventType: "login"})
	d.Close()
	if got := d.Dropped(); got != 0 {
		t.Fatalf("nil Dropped() = %d", got)
	}
}

func TestDispatcherDropIfFull(t *testing.T) {
	block := make(chan struct{})
	sink := &blockingSink{in: make(chan struct{}), release: block}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)
	defer d.Close()

	// First event is picked up by the worker, which then blocks in the
	// sink. The second fills the buffer. The rest are dropped.
	d.Emit(context.Background(), Event{EventType: "e0"})
	sink.waitEntered(t)

	d.Emit(context.Background(), Event{EventType: "e1"})
	for i := 0; i < 3; i++ {
		d.Emit(context.Background(), Event{EventType: "overflow"})
	}

	if got := d.Dropped(); got != 3 {
		t.Fatalf("Dropped() = %d, want 3", got)
	}
	close(block)
}

func TestDispatcherCloseDrainsBuffer(t *testing.T) {
	sink := &collectSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 32}, sink)

	for i := 0; i < 20; i++ {
		d.Emit(context.Background(), Event{EventType: "drain"})
	}
	d.Close()

	if got := len(sink.snapshot()); got != 20 {
		t.Fatalf("drained %d events, want 20", got)
	}

	// Emit after Close is a no-op.
	d.Emit(context.Background(), Event{EventType: "late"})
	if got := len(sink.snapshot()); got != 20 {
		t.Fatalf("events after close = %d, want 20", got)
	}
}

func TestDispatcherCloseIsIdempotent(t *testing.T) {
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, NoOpSink{})
	d.Close()
	d.Close()
}

func TestChannelSinkRespectsContext(t *testing.T) {
	sink := NewChannelSink(1)

	sink.Emit(context.Background(), Event{EventType: "first"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink.Emit(ctx, Event{EventType: "second"})

	select {
	case event := <-sink.Events():
		if event.EventType != "first" {
			t.Fatalf("event type = %q", event.EventType)
		}
	default:
		t.Fatal("expected buffered event")
	}

	select {
	case event := <-sink.Events():
		t.Fatalf("unexpected second event %q", event.EventType)
	default:
	}
}

func TestJSONWriterSinkEmitsOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		EventType: "login",
		UserID:    "u1",
		Success:   true,
	})
	sink.Emit(context.Background(), Event{EventType: "logout", UserID: "u1"})

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("wrote %d lines, want 2", len(lines))
	}

	var decoded Event
	if err := json.Unmarshal(lines[0], &decoded); err != nil {
		t.Fatalf("first line is not valid JSON: %v", err)
	}
	if decoded.EventType != "login" || decoded.UserID != "u1" || !decoded.Success {
		t.Fatalf("decoded event = %+v", decoded)
	}
}

// blockingSink blocks the dispatcher worker until released.
type blockingSink struct {
	entered sync.Once
	in      chan struct{}
	release chan struct{}
}

func (s *blockingSink) Emit(_ context.Context, _ Event) {
	s.entered.Do(func() {
		if s.in != nil {
			close(s.in)
		}
	})
	<-s.release
}

func (s *blockingSink) waitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-s.in:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never entered the sink")
	}
}
