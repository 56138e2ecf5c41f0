package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (s *recordingSink) Emit(_ context.Context, ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev.EventType)
	s.mu.Unlock()
}

var panicSink = SinkFunc(func(_ context.Context, ev Event) {
	if ev.EventType == "boom" {
		panic("sink failure")
	}
})

func TestNilDispatcherDiscards(t *testing.T) {
	var d *Dispatcher
	d.Emit(context.Background(), Event{EventType: "x"})
	d.Close()
	if d.Dropped() != 0 || d.SinkPanics() != 0 {
		t.Fatal("nil dispatcher reported activity")
	}
}

func TestDispatcherCloseDrainsInOrder(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, Options{BufferSize: 64})
	for i := 0; i < 50; i++ {
		d.Emit(context.Background(), Event{EventType: strconv.Itoa(i)})
	}
	d.Close()
	d.Close()

	if len(sink.events) != 50 {
		t.Fatalf("expected 50 delivered, got %d", len(sink.events))
	}
	for i, got := range sink.events {
		if got != strconv.Itoa(i) {
			t.Fatalf("event %d delivered as %q", i, got)
		}
	}

	d.Emit(context.Background(), Event{EventType: "after_close"})
	if len(sink.events) != 50 {
		t.Fatalf("expected emit after close ignored, got %d", len(sink.events))
	}
}

func TestDispatcherDropIfFull(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	var onDrop atomic.Int64
	d := NewDispatcher(sink, Options{
		BufferSize: 1,
		DropIfFull: true,
		OnDrop:     func(Event) { onDrop.Add(1) },
	})

	for i := 0; i < 20; i++ {
		d.Emit(context.Background(), Event{EventType: "login_failure"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a blocked sink and tiny buffer")
	}
	if uint64(onDrop.Load()) != d.Dropped() {
		t.Fatalf("OnDrop called %d times, dropped %d", onDrop.Load(), d.Dropped())
	}
	close(sink.gate)
	d.Close()
}

func TestDispatcherSurvivesPanickingSink(t *testing.T) {
	d := NewDispatcher(panicSink, Options{BufferSize: 8})
	d.Emit(context.Background(), Event{EventType: "boom"})
	d.Emit(context.Background(), Event{EventType: "fine"})
	d.Emit(context.Background(), Event{EventType: "boom"})
	d.Close()
	if got := d.SinkPanics(); got != 2 {
		t.Fatalf("SinkPanics = %d, want 2", got)
	}
}

func TestDispatcherBlockingHonoursContext(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(sink, Options{BufferSize: 1})
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			d.Emit(ctx, Event{EventType: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("blocking emit ignored context deadline")
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{EventType: "logout", UserID: "u1", Success: true})

	var got Event
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.EventType != "logout" || got.UserID != "u1" || !got.Success {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestSlogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSlogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	sink.Emit(context.Background(), Event{EventType: "login_success", UserID: "u1", Success: true})
	sink.Emit(context.Background(), Event{
		EventType: "login_failure",
		Error:     "invalid_credentials",
		Metadata:  map[string]string{"remaining_attempts": "4"},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 records, got %d", len(lines))
	}

	var first, second map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if first["level"] != "INFO" || first["event_type"] != "login_success" || first["user_id"] != "u1" {
		t.Fatalf("unexpected success record %v", first)
	}
	if second["level"] != "WARN" || second["error_code"] != "invalid_credentials" {
		t.Fatalf("unexpected failure record %v", second)
	}
	meta, ok := second["metadata"].(map[string]any)
	if !ok || meta["remaining_attempts"] != "4" {
		t.Fatalf("expected metadata group, got %v", second["metadata"])
	}
}
