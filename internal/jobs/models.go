package jobs

import (
	"strings"
	"time"
)

// Status represents the lifecycle state of a conversion job.
type Status string

const (
	StatusUploading  Status = "UPLOADING"
	StatusQueued     Status = "QUEUED"
	StatusProcessing Status = "PROCESSING"
	StatusComplete   Status = "COMPLETE"
	StatusError      Status = "ERROR"
	StatusCancelled  Status = "CANCELLED"
)

var allStatuses = []Status{
	StatusUploading,
	StatusQueued,
	StatusProcessing,
	StatusComplete,
	StatusError,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var terminalStatuses = map[Status]struct{}{
	StatusComplete:  {},
	StatusError:     {},
	StatusCancelled: {},
}

// validTransitions is the full transition table. Any (from, to) pair absent
// here is rejected with an InvalidTransitionError and leaves the job untouched.
var validTransitions = map[Status]map[Status]struct{}{
	StatusUploading: {
		StatusQueued:    {},
		StatusCancelled: {},
	},
	StatusQueued: {
		StatusProcessing: {},
		StatusCancelled:  {},
	},
	StatusProcessing: {
		StatusComplete:  {},
		StatusError:     {},
		StatusCancelled: {},
	},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToUpper(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status is final.
func IsTerminal(status Status) bool {
	_, ok := terminalStatuses[status]
	return ok
}

// CanTransition reports whether the table permits moving from one status to
// another.
func CanTransition(from, to Status) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

// CheckpointStatus reports whether entering a status requires a durable write.
// Entering the queue and reaching any terminal state are the only status
// checkpoints; dismissal is checkpointed separately.
func CheckpointStatus(status Status) bool {
	return status == StatusQueued || IsTerminal(status)
}

// Options is the opaque conversion option bag. The engine stores and forwards
// it; only the converter collaborator interprets keys.
type Options map[string]string

// Clone returns a copy safe to mutate independently.
func (o Options) Clone() Options {
	if o == nil {
		return nil
	}
	cp := make(Options, len(o))
	for k, v := range o {
		cp[k] = v
	}
	return cp
}

// UploadProgress tracks bytes moved during the upload phase. Ephemeral-only:
// it is mutated at high frequency and never written durably.
type UploadProgress struct {
	BytesTransferred int64 `json:"bytes_transferred"`
	BytesTotal       int64 `json:"bytes_total"`

	// Smoothed estimator outputs, refreshed at the publish cadence rather
	// than on every raw byte-counter update.
	SpeedBytesPerSec float64 `json:"speed_bytes_per_sec,omitempty"`
	ETASeconds       float64 `json:"eta_seconds,omitempty"`
	HasETA           bool    `json:"has_eta,omitempty"`
}

// InputMeta describes the submitted file and the requested conversion.
type InputMeta struct {
	Filename      string  `json:"filename"`
	Size          int64   `json:"size"`
	DeviceProfile string  `json:"device_profile"`
	Options       Options `json:"options,omitempty"`
}

// OutputMeta describes the conversion artifact. Populated only on COMPLETE.
type OutputMeta struct {
	Filename string `json:"filename,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Failure is a structured, user-safe failure reason. Populated only on ERROR.
type Failure struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Job is the central entity: one conversion from upload through terminal state.
type Job struct {
	ID     string `json:"id"`
	Status Status `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Per-status timestamps. ProcessingAnchor and ETAAnchor are fixed once
	// when the job enters PROCESSING; all progress math derives from them.
	QueuedAt         *time.Time `json:"queued_at,omitempty"`
	ProcessingAnchor *time.Time `json:"processing_at,omitempty"`
	ETAAnchor        *time.Time `json:"eta_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	ErroredAt        *time.Time `json:"errored_at,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
	DismissedAt      *time.Time `json:"dismissed_at,omitempty"`

	Input  InputMeta      `json:"input"`
	Upload UploadProgress `json:"upload,omitempty"`
	Output OutputMeta     `json:"output,omitempty"`

	Failure *Failure `json:"failure,omitempty"`

	// Dismissed hides a terminal job from the active queue view without
	// deleting history. Settable exactly once, in a terminal state only.
	Dismissed bool `json:"dismissed,omitempty"`

	// DownloadCount is best-effort and ephemeral; the sweep folds it into the
	// durable record periodically, not on every increment.
	DownloadCount int64 `json:"download_count,omitempty"`

	// Worker coordination fields; ephemeral-only.
	ClaimToken        string  `json:"-"`
	CancelRequested   bool    `json:"cancel_requested,omitempty"`
	ProcessingElapsed float64 `json:"processing_elapsed,omitempty"`
}

// IsTerminal reports whether the job has reached a final status.
func (j *Job) IsTerminal() bool {
	return IsTerminal(j.Status)
}

// IsActive reports whether the job belongs in the live queue view. COMPLETE
// jobs remain active until dismissed so the artifact stays downloadable from
// the queue.
func (j *Job) IsActive() bool {
	if j.Dismissed {
		return false
	}
	switch j.Status {
	case StatusUploading, StatusQueued, StatusProcessing, StatusComplete:
		return true
	default:
		return false
	}
}

// SetFailed marks the job as errored with a user-safe reason.
func (j *Job) SetFailed(kind, message string) {
	now := time.Now().UTC()
	j.Status = StatusError
	j.ErroredAt = &now
	j.Failure = &Failure{Kind: kind, Message: message}
	j.ClaimToken = ""
}

// Clone returns a deep copy. Snapshots handed to the broadcast hub and to API
// responses are always clones so observers never share memory with the store.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	cp.Input.Options = j.Input.Options.Clone()
	cp.QueuedAt = cloneTime(j.QueuedAt)
	cp.ProcessingAnchor = cloneTime(j.ProcessingAnchor)
	cp.ETAAnchor = cloneTime(j.ETAAnchor)
	cp.CompletedAt = cloneTime(j.CompletedAt)
	cp.ErroredAt = cloneTime(j.ErroredAt)
	cp.CancelledAt = cloneTime(j.CancelledAt)
	cp.DismissedAt = cloneTime(j.DismissedAt)
	if j.Failure != nil {
		failure := *j.Failure
		cp.Failure = &failure
	}
	return &cp
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
