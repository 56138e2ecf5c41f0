package prometheus

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/metrics/export/internaldefs"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

type metricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter renders engine metrics in the Prometheus text exposition format.
type Exporter struct {
	source metricsSource
}

// NewExporter returns an exporter reading from engine.
func NewExporter(engine *authcore.Engine) *Exporter {
	return &Exporter{source: engine}
}

// NewExporterFromSource returns an exporter over any snapshot source.
func NewExporterFromSource(source metricsSource) *Exporter {
	return &Exporter{source: source}
}

// Handler serves Render output, suitable for mounting at /metrics.
func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(p.render())
	})
}

// Render returns the current metrics. It is empty when metrics are disabled.
func (p *Exporter) Render() string {
	return string(p.render())
}

func (p *Exporter) render() []byte {
	if p == nil || p.source == nil {
		return nil
	}
	snap := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return nil
	}

	w := exposition{buf: bytes.NewBuffer(make([]byte, 0, 4096))}
	for _, def := range internaldefs.CounterDefs {
		w.family(def.Name, def.Help, "counter")
		w.sample(def.Name, "", snap.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		raw, ok := snap.Histograms[def.ID]
		if !ok {
			continue
		}
		running := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		w.family(def.Name, def.Help, "histogram")
		for i, le := range internaldefs.HistogramBounds {
			w.sample(def.Name+"_bucket", `le="`+le+`"`, running[i])
		}
		w.sample(def.Name+"_count", "", running[len(running)-1])
		// Only bucket counts are tracked.
		w.sample(def.Name+"_sum", "", 0)
	}
	w.family("authcore_audit_dropped_total", "Audit events dropped under dispatcher backpressure.", "counter")
	w.sample("authcore_audit_dropped_total", "", dropped)
	return w.buf.Bytes()
}

type exposition struct {
	buf *bytes.Buffer
}

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

func (w exposition) family(name, help, kind string) {
	w.buf.WriteString("# HELP " + name + " ")
	_, _ = helpEscaper.WriteString(w.buf, help)
	w.buf.WriteString("\n# TYPE " + name + " " + kind + "\n")
}

func (w exposition) sample(name, labels string, v uint64) {
	w.buf.WriteString(name)
	if labels != "" {
		w.buf.WriteString("{" + labels + "}")
	}
	w.buf.WriteByte(' ')
	w.buf.Write(strconv.AppendUint(w.buf.AvailableBuffer(), v, 10))
	w.buf.WriteByte('\n')
}
