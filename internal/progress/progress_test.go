package progress

import (
	"testing"
	"time"
)

func TestSpeedWindowMedianResistsOutlier(t *testing.T) {
	const mb = 1024 * 1024
	window := NewSpeedWindow(8)
	for _, speed := range []float64{1 * mb, 2 * mb, 1 * mb, 2 * mb, 1 * mb, 2 * mb, 1 * mb} {
		window.Add(speed)
	}
	window.Add(100 * mb)

	median, ok := window.Median()
	if !ok {
		t.Fatal("expected median after samples")
	}
	// The spike occupies one sorted position; the median stays in the
	// 1-2 MB/s band where the mean would not.
	if median < 1*mb || median > 2*mb {
		t.Fatalf("median %.0f outside the steady band", median)
	}

	var mean float64
	for _, s := range []float64{1 * mb, 2 * mb, 1 * mb, 2 * mb, 1 * mb, 2 * mb, 1 * mb, 100 * mb} {
		mean += s
	}
	mean /= 8
	if mean <= 2*mb {
		t.Fatal("test setup broken: mean should be dragged by the outlier")
	}
}

func TestSpeedWindowEvictsOldest(t *testing.T) {
	window := NewSpeedWindow(3)
	for _, s := range []float64{100, 100, 100, 5, 5, 5} {
		window.Add(s)
	}
	if window.Len() != 3 {
		t.Fatalf("window length = %d", window.Len())
	}
	median, _ := window.Median()
	if median != 5 {
		t.Fatalf("old samples not evicted, median = %.0f", median)
	}
}

func TestUploadTrackerObserveAndEstimate(t *testing.T) {
	const mb = 1024 * 1024
	tracker := NewUploadTracker()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tracker.Observe(0, start)
	for i := 1; i <= 8; i++ {
		tracker.Observe(int64(i)*mb, start.Add(time.Duration(i)*time.Second))
	}

	est := tracker.Estimate(8*mb, 16*mb)
	if !est.HasETA {
		t.Fatal("expected estimate after window fills")
	}
	if est.SpeedBytesPerSec < 0.9*mb || est.SpeedBytesPerSec > 1.1*mb {
		t.Fatalf("speed = %.0f, want ~1 MB/s", est.SpeedBytesPerSec)
	}
	if est.ETASeconds < 7 || est.ETASeconds > 9 {
		t.Fatalf("eta = %.1f, want ~8s", est.ETASeconds)
	}
}

func TestUploadTrackerWithholdsUnreliableETA(t *testing.T) {
	tracker := NewUploadTracker()
	start := time.Now()
	tracker.Observe(0, start)
	tracker.Observe(10, start.Add(time.Second)) // 10 B/s

	est := tracker.Estimate(10, 10*1024*1024*1024)
	if est.HasETA {
		t.Fatalf("multi-hour projection should be withheld, got %.0fs", est.ETASeconds)
	}
	if est.SpeedBytesPerSec != 10 {
		t.Fatalf("speed should still publish, got %.0f", est.SpeedBytesPerSec)
	}
}

func TestUploadTrackerNoSamples(t *testing.T) {
	tracker := NewUploadTracker()
	if est := tracker.Estimate(0, 100); est.HasETA || est.SpeedBytesPerSec != 0 {
		t.Fatalf("empty tracker produced estimate: %+v", est)
	}
	// A single observation only primes the tracker.
	tracker.Observe(50, time.Now())
	if est := tracker.Estimate(50, 100); est.HasETA {
		t.Fatal("primed tracker should not estimate yet")
	}
}

func TestProcessingPercentAtMidpointAndPastAnchor(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	anchor, eta := Anchors(start, 10*time.Minute)

	if got := Percent(start.Add(5*time.Minute), anchor, eta); got != 50 {
		t.Fatalf("midpoint percent = %d, want 50", got)
	}
	if got := Percent(eta, anchor, eta); got != 99 {
		t.Fatalf("at-anchor percent = %d, want 99", got)
	}
	if got := Percent(eta.Add(time.Hour), anchor, eta); got != 99 {
		t.Fatalf("past-anchor percent = %d, want 99 (never 100)", got)
	}
	if got := Percent(start.Add(-time.Minute), anchor, eta); got != 0 {
		t.Fatalf("pre-anchor percent = %d, want 0", got)
	}
}

func TestAnchorsClampEstimate(t *testing.T) {
	start := time.Now()
	_, eta := Anchors(start, 0)
	if eta.Sub(start) != MinProcessingEstimate {
		t.Fatalf("zero estimate not clamped up: %v", eta.Sub(start))
	}
	_, eta = Anchors(start, 48*time.Hour)
	if eta.Sub(start) != MaxProcessingEstimate {
		t.Fatalf("oversized estimate not clamped down: %v", eta.Sub(start))
	}
}

func TestRemainingSeconds(t *testing.T) {
	now := time.Now()
	if got := RemainingSeconds(now, now.Add(90*time.Second)); got < 89.9 || got > 90.1 {
		t.Fatalf("remaining = %.1f", got)
	}
	if got := RemainingSeconds(now, now.Add(-time.Second)); got != 0 {
		t.Fatalf("past anchor should clamp to 0, got %.1f", got)
	}
}
