package progress

import (
	"math"
	"time"
)

// Bounds applied to converter duration estimates before they become anchors.
// Anything outside this range came from a broken signal.
const (
	MinProcessingEstimate = time.Second
	MaxProcessingEstimate = time.Hour
)

// maxProcessingFraction caps time-derived progress. Reaching 100 is reserved
// for an authoritative terminal event, so a stalled conversion never shows as
// finished.
const maxProcessingFraction = 0.99

// Anchors fixes the two reference timestamps for a processing run: the start
// instant and the projected completion instant. They are computed once per
// processing start and never revised by later ticks.
func Anchors(start time.Time, estimate time.Duration) (processingAnchor, etaAnchor time.Time) {
	if estimate < MinProcessingEstimate {
		estimate = MinProcessingEstimate
	}
	if estimate > MaxProcessingEstimate {
		estimate = MaxProcessingEstimate
	}
	return start, start.Add(estimate)
}

// Fraction computes elapsed progress in [0, 0.99] against fixed anchors.
func Fraction(now, processingAnchor, etaAnchor time.Time) float64 {
	total := etaAnchor.Sub(processingAnchor)
	if total <= 0 {
		if now.Before(processingAnchor) {
			return 0
		}
		return maxProcessingFraction
	}
	elapsed := now.Sub(processingAnchor)
	if elapsed <= 0 {
		return 0
	}
	fraction := float64(elapsed) / float64(total)
	if fraction > maxProcessingFraction {
		return maxProcessingFraction
	}
	return fraction
}

// Percent is Fraction expressed as an integer percentage in [0, 99].
func Percent(now, processingAnchor, etaAnchor time.Time) int {
	return int(math.Round(Fraction(now, processingAnchor, etaAnchor) * 100))
}

// RemainingSeconds derives the seconds-remaining view from the absolute
// anchor, the canonical representation. Zero once the projection has passed.
func RemainingSeconds(now, etaAnchor time.Time) float64 {
	remaining := etaAnchor.Sub(now).Seconds()
	if remaining < 0 {
		return 0
	}
	return remaining
}
