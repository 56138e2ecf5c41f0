package main

import (
	"fmt"
	"slices"
	"time"
)

// phaseStats summarises one load phase. Percentiles are nearest-rank over the
// successful samples.
type phaseStats struct {
	total         time.Duration
	ops           int
	failures      int64
	p50, p95, p99 time.Duration
	opsPerS       float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	s := phaseStats{total: total, ops: len(samples), failures: failures}
	if len(samples) == 0 {
		return s
	}
	slices.Sort(samples)
	s.p50 = percentile(samples, 50)
	s.p95 = percentile(samples, 95)
	s.p99 = percentile(samples, 99)
	if total > 0 {
		s.opsPerS = float64(len(samples)) / total.Seconds()
	}
	return s
}

// percentile expects sorted samples.
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	p = min(max(p, 0), 100)
	return sorted[(len(sorted)-1)*p/100]
}

func (s phaseStats) String() string {
	return fmt.Sprintf("ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s",
		s.ops, s.failures, s.total.Round(time.Millisecond), s.opsPerS,
		s.p50.Round(time.Microsecond), s.p95.Round(time.Microsecond), s.p99.Round(time.Microsecond))
}
