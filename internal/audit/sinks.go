package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
)

// NoOpSink discards events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink hands events to a consumer over a buffered channel. Emit blocks while the
// buffer is full unless ctx ends first.
type ChannelSink struct {
	ch chan Event
}

// NewChannelSink returns a sink with the given buffer, at least one slot.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan Event, max(buffer, 1))}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.ch <- event:
	case <-ctx.Done():
	}
}

// Events is the receive side.
func (s *ChannelSink) Events() <-chan Event { return s.ch }

// JSONWriterSink writes newline-delimited JSON. Encoding and write errors are dropped.
type JSONWriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	if w == nil {
		w = io.Discard
	}
	return &JSONWriterSink{enc: json.NewEncoder(w)}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.enc == nil {
		return
	}
	s.mu.Lock()
	_ = s.enc.Encode(event)
	s.mu.Unlock()
}

// SlogSink logs one record per event.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink returns a sink writing to logger, or slog.Default when nil.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Emit(ctx context.Context, event Event) {
	s.logger.LogAttrs(ctx, event.level(), "audit event", event.attrs()...)
}
