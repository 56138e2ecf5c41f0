package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	AuditDropped() uint64
}

type counterSeries struct {
	id         authcore.MetricID
	instrument metric.Int64ObservableCounter
}

// latencySeries exports one engine histogram as a cumulative bucket gauge keyed by an
// "le" attribute plus a sample count.
type latencySeries struct {
	id      authcore.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// Exporter publishes engine snapshots through observable instruments. All instruments
// are read by one callback, so a collection sees one consistent snapshot.
type Exporter struct {
	source       metricsSource
	registration metric.Registration
	counters     []counterSeries
	latencies    []latencySeries
	auditDropped metric.Int64ObservableCounter
	bucketOpts   []metric.ObserveOption
}

// NewExporter registers instruments on meter that read from engine.
func NewExporter(meter metric.Meter, engine *authcore.Engine) (*Exporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewExporterFromSource(meter, engine)
}

// NewExporterFromSource is NewExporter for any snapshot source.
func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	for _, le := range internaldefs.HistogramBounds {
		e.bucketOpts = append(e.bucketOpts, metric.WithAttributes(attribute.String("le", le)))
	}

	var observables []metric.Observable
	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, counterSeries{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative count per upper bound."),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			return nil, fmt.Errorf("gauge %s_bucket: %w", def.Name, err)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count",
			metric.WithDescription(def.Help+" Total samples."),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			return nil, fmt.Errorf("gauge %s_count: %w", def.Name, err)
		}
		e.latencies = append(e.latencies, latencySeries{id: def.ID, buckets: buckets, count: count})
		observables = append(observables, buckets, count)
	}

	dropped, err := meter.Int64ObservableCounter("authcore_audit_dropped_total",
		metric.WithDescription("Audit events dropped under dispatcher backpressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("counter authcore_audit_dropped_total: %w", err)
	}
	e.auditDropped = dropped
	observables = append(observables, dropped)

	reg, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		o.ObserveInt64(c.instrument, int64(snap.Counters[c.id]))
	}
	for _, l := range e.latencies {
		raw, ok := snap.Histograms[l.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		for i, opt := range e.bucketOpts {
			o.ObserveInt64(l.buckets, int64(cumulative[i]), opt)
		}
		o.ObserveInt64(l.count, int64(cumulative[len(cumulative)-1]))
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
