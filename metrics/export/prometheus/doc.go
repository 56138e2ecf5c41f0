// Package prometheus renders authcore metrics in the Prometheus text exposition format.
//
// [NewExporter] wraps an [authcore.Engine] and exposes an [http.Handler] for /metrics.
// Counters are named authcore_*_total. Login and authentication latency are exported as
// authcore_login_latency_seconds and authcore_authenticate_latency_seconds when
// latency histograms are enabled.
//
// Nothing is registered globally; callers mount the handler themselves.
package prometheus
