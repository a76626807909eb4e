package progress

import (
	"sort"
	"time"
)

// DefaultWindowSize is the number of speed samples retained for smoothing.
const DefaultWindowSize = 8

// maxUploadETA is the ceiling above which an upload estimate is considered
// unreliable and withheld rather than displayed.
const maxUploadETA = time.Hour

// SpeedWindow is a bounded rolling window of instantaneous speed samples in
// bytes per second.
type SpeedWindow struct {
	samples []float64
	size    int
}

// NewSpeedWindow creates a window holding up to size samples.
func NewSpeedWindow(size int) *SpeedWindow {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &SpeedWindow{size: size}
}

// Add appends a sample, evicting the oldest once the window is full.
func (w *SpeedWindow) Add(bytesPerSecond float64) {
	if bytesPerSecond < 0 {
		return
	}
	w.samples = append(w.samples, bytesPerSecond)
	if len(w.samples) > w.size {
		w.samples = w.samples[1:]
	}
}

// Len reports the number of retained samples.
func (w *SpeedWindow) Len() int {
	return len(w.samples)
}

// Median returns the median of the retained samples. The second return is
// false until at least one sample has been recorded.
func (w *SpeedWindow) Median() (float64, bool) {
	if len(w.samples) == 0 {
		return 0, false
	}
	sorted := make([]float64, len(w.samples))
	copy(sorted, w.samples)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], true
	}
	return (sorted[mid-1] + sorted[mid]) / 2, true
}

// UploadTracker derives speed samples from a monotonically growing byte
// counter. One tracker exists per uploading job and is discarded when the job
// leaves the upload phase.
type UploadTracker struct {
	window    *SpeedWindow
	lastBytes int64
	lastAt    time.Time
	primed    bool
}

// NewUploadTracker creates a tracker with the default window size.
func NewUploadTracker() *UploadTracker {
	return &UploadTracker{window: NewSpeedWindow(DefaultWindowSize)}
}

// Observe records a byte-counter reading. The first reading primes the
// tracker; later readings produce one instantaneous speed sample each.
// Non-advancing counters and non-advancing clocks are skipped.
func (t *UploadTracker) Observe(bytesTransferred int64, now time.Time) {
	if !t.primed {
		t.lastBytes = bytesTransferred
		t.lastAt = now
		t.primed = true
		return
	}
	interval := now.Sub(t.lastAt).Seconds()
	delta := bytesTransferred - t.lastBytes
	if interval <= 0 || delta < 0 {
		return
	}
	t.window.Add(float64(delta) / interval)
	t.lastBytes = bytesTransferred
	t.lastAt = now
}

// UploadEstimate is the published view of upload progress.
type UploadEstimate struct {
	SpeedBytesPerSec float64
	ETASeconds       float64
	HasETA           bool
}

// Estimate computes the current speed and remaining time. HasETA is false
// until samples exist, when the median speed is zero, or when the projection
// exceeds an hour and is therefore untrustworthy.
func (t *UploadTracker) Estimate(bytesTransferred, bytesTotal int64) UploadEstimate {
	median, ok := t.window.Median()
	if !ok || median <= 0 {
		return UploadEstimate{}
	}
	est := UploadEstimate{SpeedBytesPerSec: median}
	remaining := bytesTotal - bytesTransferred
	if remaining < 0 {
		remaining = 0
	}
	eta := float64(remaining) / median
	if eta > maxUploadETA.Seconds() {
		return est
	}
	est.ETASeconds = eta
	est.HasETA = true
	return est
}
