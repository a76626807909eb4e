package convert

import (
	"strings"
	"time"

	"bindery/internal/jobs"
	"bindery/internal/progress"
)

// DurationEstimator produces the point estimate of processing duration used
// to fix a job's ETA anchor at the moment it enters processing.
type DurationEstimator interface {
	Estimate(meta jobs.InputMeta) time.Duration
}

// Heuristic throughput assumption: roughly 50 KB of input per second of
// conversion, with PDFs costing 2.5x for rasterization.
const (
	heuristicBytesPerSecond = 50_000
	pdfCostMultiplier       = 2.5
)

// HeuristicEstimator predicts duration from input size and type. Estimates
// are clamped to the range the progress anchors accept.
type HeuristicEstimator struct{}

// NewHeuristicEstimator returns the default size-based estimator.
func NewHeuristicEstimator() *HeuristicEstimator {
	return &HeuristicEstimator{}
}

// Estimate implements DurationEstimator.
func (e *HeuristicEstimator) Estimate(meta jobs.InputMeta) time.Duration {
	seconds := float64(meta.Size) / heuristicBytesPerSecond
	if strings.HasSuffix(strings.ToLower(meta.Filename), ".pdf") {
		seconds *= pdfCostMultiplier
	}
	estimate := time.Duration(seconds * float64(time.Second))
	if estimate < progress.MinProcessingEstimate {
		return progress.MinProcessingEstimate
	}
	if estimate > progress.MaxProcessingEstimate {
		return progress.MaxProcessingEstimate
	}
	return estimate
}
