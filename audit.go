package authcore

import "github.com/MrEthical07/authcore/internal/audit"

type (
	// AuditEvent is one audit trail entry.
	AuditEvent = audit.Event
	// AuditSink receives audit events from the async dispatcher.
	AuditSink = audit.Sink
	// NoOpSink discards events.
	NoOpSink = audit.NoOpSink
	// ChannelSink forwards events to a buffered channel.
	ChannelSink = audit.ChannelSink
	// JSONWriterSink writes one JSON object per line.
	JSONWriterSink = audit.JSONWriterSink
	// SlogSink logs events through log/slog.
	SlogSink = audit.SlogSink
	// AuditSinkFunc adapts a function to AuditSink.
	AuditSinkFunc = audit.SinkFunc
)

var (
	NewChannelSink    = audit.NewChannelSink
	NewJSONWriterSink = audit.NewJSONWriterSink
	NewSlogSink       = audit.NewSlogSink
)
