package audit

import (
	"context"
	"log/slog"
	"time"
)

// Event is one security-relevant outcome. Error carries a stable reason code, never a
// raw error string.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives emitted audit events. Implementations must be safe for use by a single
// dispatcher goroutine; sinks shared between dispatchers must lock internally.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(ctx context.Context, event Event)

func (f SinkFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }

// level is Info for successes and Warn for failures.
func (e Event) level() slog.Level {
	if e.Success {
		return slog.LevelInfo
	}
	return slog.LevelWarn
}

// attrs flattens the event for structured logging. Empty optional fields are omitted.
func (e Event) attrs() []slog.Attr {
	out := []slog.Attr{
		slog.String("component", "audit"),
		slog.String("event_type", e.EventType),
		slog.Bool("success", e.Success),
		slog.Time("event_time", e.Timestamp),
	}
	for _, f := range [...]struct{ key, val string }{
		{"user_id", e.UserID},
		{"session_id", e.SessionID},
		{"ip", e.IP},
		{"error_code", e.Error},
	} {
		if f.val != "" {
			out = append(out, slog.String(f.key, f.val))
		}
	}
	if len(e.Metadata) == 0 {
		return out
	}
	group := make([]any, 0, len(e.Metadata))
	for k, v := range e.Metadata {
		group = append(group, slog.String(k, v))
	}
	return append(out, slog.Group("metadata", group...))
}
