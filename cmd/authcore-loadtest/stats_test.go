package main

import (
	"strings"
	"testing"
	"time"
)

func TestComputeStats(t *testing.T) {
	samples := make([]time.Duration, 0, 100)
	for i := 100; i >= 1; i-- {
		samples = append(samples, time.Duration(i)*time.Millisecond)
	}

	s := computeStats(2*time.Second, samples, 3)
	if s.ops != 100 || s.failures != 3 {
		t.Fatalf("unexpected counts %+v", s)
	}
	if s.p50 != 50*time.Millisecond || s.p95 != 95*time.Millisecond || s.p99 != 99*time.Millisecond {
		t.Fatalf("unexpected percentiles p50=%s p95=%s p99=%s", s.p50, s.p95, s.p99)
	}
	if s.opsPerS != 50 {
		t.Fatalf("expected 50 ops/sec, got %v", s.opsPerS)
	}
	if !strings.Contains(s.String(), "ops=100 failures=3") {
		t.Fatalf("unexpected summary %q", s.String())
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	s := computeStats(time.Second, nil, 5)
	if s.ops != 0 || s.p99 != 0 || s.opsPerS != 0 || s.failures != 5 {
		t.Fatalf("unexpected stats %+v", s)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Fatalf("expected 0, got %s", got)
	}
}
