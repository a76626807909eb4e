package convert

import (
	"context"

	"bindery/internal/jobs"
)

// Request describes one conversion invocation.
type Request struct {
	InputPath     string
	OutputDir     string
	DeviceProfile string
	Options       jobs.Options
}

// Result describes a successful conversion artifact.
type Result struct {
	OutputPath string
	OutputSize int64
}

// Converter is the external conversion collaborator. Implementations block
// until the conversion finishes or ctx is cancelled; workers wrap the call
// with cooperative cancellation checks.
type Converter interface {
	Convert(ctx context.Context, req Request) (Result, error)
}
