package jobs

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates no job exists with the requested id in either store.
var ErrNotFound = errors.New("job not found")

// ErrJobExists indicates a create reused the id of a terminal job. Creates
// against a non-terminal job are idempotent no-ops instead.
var ErrJobExists = errors.New("job id already used by a terminal job")

// ErrAlreadyClaimed indicates a worker's claim raced and lost. The worker
// should look for other queued work rather than retry the same job.
var ErrAlreadyClaimed = errors.New("job already claimed")

// ErrDurableStore wraps durable-store failures on checkpoint writes. The
// whole transition fails visibly; ephemeral-only write failures are logged
// and dropped instead.
var ErrDurableStore = errors.New("durable store unavailable")

// InvalidTransitionError reports a state change outside the transition table.
// The attempted transition is a no-op.
type InvalidTransitionError struct {
	JobID string
	From  Status
	To    Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s for job %s", e.From, e.To, e.JobID)
}

// Failure kinds stored on Job.Failure. Downstream consumers treat abandoned
// jobs exactly like conversion failures.
const (
	FailureKindConversion = "conversion_failed"
	FailureKindAbandoned  = "abandoned"
)

// ConversionFailure is the converter collaborator's error type. Message must
// be user-safe; raw converter stderr stays in logs.
type ConversionFailure struct {
	Message string
}

func (e *ConversionFailure) Error() string {
	return e.Message
}

// UserMessage extracts the user-safe reason from a conversion error. Anything
// that is not a ConversionFailure maps to a generic message so internal
// details never surface.
func UserMessage(err error) string {
	var failure *ConversionFailure
	if errors.As(err, &failure) && failure.Message != "" {
		return failure.Message
	}
	return "conversion failed"
}
