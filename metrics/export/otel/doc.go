// Package otel exposes authcore metrics through an OpenTelemetry Meter.
//
// [NewExporter] registers one Int64ObservableCounter per engine counter. Each latency
// histogram becomes a "<name>_bucket" gauge with one data point per "le" attribute value
// plus a "<name>_count" gauge. A single callback reads [authcore.Engine.MetricsSnapshot]
// on every collection. Callers own the MeterProvider.
package otel
