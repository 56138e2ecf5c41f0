package authcore

import (
	"sync/atomic"
	"time"
)

// MetricID names one engine counter or histogram.
type MetricID uint16

const (
	MetricRegisterSuccess MetricID = iota
	MetricRegisterDuplicate
	MetricRegisterFailure
	MetricLoginSuccess
	MetricLoginFailure
	MetricLoginLocked
	MetricLoginInactive
	// MetricAccountLocked counts Unlocked to Locked transitions, not rejected attempts.
	MetricAccountLocked
	MetricSessionCreated
	MetricSessionRevoked
	MetricAuthenticateSuccess
	MetricAuthenticateExpired
	MetricAuthenticateInvalid
	MetricAuthenticateSessionNotFound
	MetricLogout
	MetricLogoutAll
	MetricPasswordChangeSuccess
	MetricPasswordChangeInvalidOld
	MetricPasswordHashUpgraded
	MetricAccountDisabled
	MetricAccountUnlocked
	// MetricStoreRetry counts transient backend failures that were retried.
	MetricStoreRetry

	// Latency metrics follow the counters. Only they accept Observe.
	MetricLoginLatency
	MetricAuthenticateLatency
	metricIDCount
)

const (
	firstLatencyMetric = MetricLoginLatency
	latencyMetricCount = int(metricIDCount - firstLatencyMetric)
	histBucketCount    = len(latencyBoundsMS) + 1
)

// latencyBoundsMS are the finite bucket upper bounds. Login is dominated by the password
// hash, so the top bound sits above a bcrypt cost 12 verify.
var latencyBoundsMS = [...]int64{5, 25, 50, 100, 250, 500, 1000}

// counter occupies a full cache line so hot counters do not share one.
type counter struct {
	atomic.Uint64
	_ [56]byte
}

// Metrics is a set of lock-free counters and fixed-bucket latency histograms. A nil
// *Metrics records nothing.
type Metrics struct {
	enabled   bool
	latency   bool
	counters  [firstLatencyMetric]counter
	histogram [latencyMetricCount][histBucketCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of every metric. Histograms holds
// per-bucket counts, not running totals.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
		latency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool { return m != nil && m.enabled }

func (m *Metrics) LatencyEnabled() bool { return m != nil && m.latency }

func (m *Metrics) Inc(id MetricID) { m.Add(id, 1) }

// Add increases a counter by n. Latency ids are ignored.
func (m *Metrics) Add(id MetricID, n uint64) {
	if !m.Enabled() || id >= firstLatencyMetric || n == 0 {
		return
	}
	m.counters[id].Add(n)
}

// Observe records d for a latency metric. Other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id < firstLatencyMetric || id >= metricIDCount {
		return
	}
	m.histogram[id-firstLatencyMetric][bucketFor(d)].Add(1)
}

// Value reads one counter. It is zero for latency ids.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= firstLatencyMetric {
		return 0
	}
	return m.counters[id].Load()
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return s
	}
	for id := MetricID(0); id < firstLatencyMetric; id++ {
		s.Counters[id] = m.counters[id].Load()
	}
	if !m.latency {
		return s
	}
	for slot := range m.histogram {
		buckets := make([]uint64, histBucketCount)
		for i := range buckets {
			buckets[i] = m.histogram[slot][i].Load()
		}
		s.Histograms[firstLatencyMetric+MetricID(slot)] = buckets
	}
	return s
}

func bucketFor(d time.Duration) int {
	ms := d.Milliseconds()
	for i, bound := range latencyBoundsMS {
		if ms <= bound {
			return i
		}
	}
	return len(latencyBoundsMS)
}
