package authcore

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledRecordsNothing(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false, EnableLatencyHistograms: true})
	m.Inc(MetricLoginSuccess)
	m.Observe(MetricLoginLatency, time.Millisecond)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	snap := m.Snapshot()
	if len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}

	var nilMetrics *Metrics
	nilMetrics.Inc(MetricLoginSuccess)
	if nilMetrics.Enabled() || nilMetrics.Value(MetricLoginSuccess) != 0 {
		t.Fatal("nil metrics should be inert")
	}
}

func TestMetricsCountersUnderContention(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const workers, perWorker = 16, 2500
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.Inc(MetricLoginFailure)
			}
		}()
	}
	wg.Wait()
	m.Add(MetricSessionRevoked, 4)
	m.Add(MetricLoginLatency, 9)

	if got := m.Value(MetricLoginFailure); got != workers*perWorker {
		t.Fatalf("expected %d failures, got %d", workers*perWorker, got)
	}
	if got := m.Value(MetricSessionRevoked); got != 4 {
		t.Fatalf("expected 4 revocations, got %d", got)
	}
	snap := m.Snapshot()
	if _, ok := snap.Counters[MetricLoginLatency]; ok {
		t.Fatal("latency metrics must not appear as counters")
	}
	if len(snap.Counters) != int(firstLatencyMetric) {
		t.Fatalf("expected %d counters, got %d", firstLatencyMetric, len(snap.Counters))
	}
}

func TestMetricsLatencyBuckets(t *testing.T) {
	cases := []struct {
		d      time.Duration
		bucket int
	}{
		{0, 0},
		{5 * time.Millisecond, 0},
		{6 * time.Millisecond, 1},
		{50 * time.Millisecond, 2},
		{99 * time.Millisecond, 3},
		{250 * time.Millisecond, 4},
		{400 * time.Millisecond, 5},
		{time.Second, 6},
		{3 * time.Second, 7},
	}

	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	want := make([]uint64, histBucketCount)
	for _, tc := range cases {
		if got := bucketFor(tc.d); got != tc.bucket {
			t.Fatalf("bucketFor(%v) = %d, want %d", tc.d, got, tc.bucket)
		}
		m.Observe(MetricAuthenticateLatency, tc.d)
		want[tc.bucket]++
	}
	m.Observe(MetricLoginSuccess, time.Millisecond)

	snap := m.Snapshot()
	got := snap.Histograms[MetricAuthenticateLatency]
	if len(got) != histBucketCount {
		t.Fatalf("expected %d buckets, got %d", histBucketCount, len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("bucket %d: want %d, got %d", i, want[i], got[i])
		}
	}
	for _, v := range snap.Histograms[MetricLoginLatency] {
		if v != 0 {
			t.Fatalf("login histogram should be empty, got %v", snap.Histograms[MetricLoginLatency])
		}
	}
	if _, ok := snap.Histograms[MetricLoginSuccess]; ok {
		t.Fatal("counter metric must not get a histogram")
	}
}

func TestMetricsHistogramsNeedLatencyFlag(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Observe(MetricLoginLatency, time.Millisecond)
	if m.LatencyEnabled() {
		t.Fatal("latency should be off")
	}
	if n := len(m.Snapshot().Histograms); n != 0 {
		t.Fatalf("expected no histograms, got %d", n)
	}
}

func BenchmarkMetricsIncParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Inc(MetricLoginSuccess)
		}
	})
}
