package api

import (
	"time"

	"bindery/internal/jobs"
	"bindery/internal/progress"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a conversion job in a transport-friendly format.
type Job struct {
	ID                 string `json:"id"`
	Status             string `json:"status"`
	Filename           string `json:"filename"`
	Size               int64  `json:"size"`
	DeviceProfile      string `json:"deviceProfile"`
	DeviceProfileLabel string `json:"deviceProfileLabel"`

	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
	QueuedAt     string `json:"queuedAt,omitempty"`
	ProcessingAt string `json:"processingAt,omitempty"`
	EtaAt        string `json:"etaAt,omitempty"`
	CompletedAt  string `json:"completedAt,omitempty"`
	ErroredAt    string `json:"erroredAt,omitempty"`
	CancelledAt  string `json:"cancelledAt,omitempty"`
	DismissedAt  string `json:"dismissedAt,omitempty"`

	Upload     *UploadProgress     `json:"upload,omitempty"`
	Processing *ProcessingProgress `json:"processing,omitempty"`
	Output     *Output             `json:"output,omitempty"`
	Failure    *Failure            `json:"failure,omitempty"`

	Dismissed       bool  `json:"dismissed,omitempty"`
	CancelRequested bool  `json:"cancelRequested,omitempty"`
	DownloadCount   int64 `json:"downloadCount,omitempty"`
}

// UploadProgress carries the upload byte counters and the smoothed estimate.
type UploadProgress struct {
	BytesTransferred int64   `json:"bytesTransferred"`
	BytesTotal       int64   `json:"bytesTotal"`
	SpeedBytesPerSec float64 `json:"speedBytesPerSec,omitempty"`
	EtaSeconds       float64 `json:"etaSeconds,omitempty"`
	HasEta           bool    `json:"hasEta,omitempty"`
}

// ProcessingProgress carries the anchor-derived conversion progress. Percent
// saturates below 100; only a terminal status means done.
type ProcessingProgress struct {
	Percent          int     `json:"percent"`
	RemainingSeconds float64 `json:"remainingSeconds"`
	ElapsedSeconds   float64 `json:"elapsedSeconds"`
}

// Output describes the conversion artifact.
type Output struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// Failure carries the user-safe failure reason.
type Failure struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Profile describes one device profile catalog entry.
type Profile struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// CreateJobRequest is the POST /api/jobs payload.
type CreateJobRequest struct {
	ID            string            `json:"id,omitempty"`
	Filename      string            `json:"filename"`
	Size          int64             `json:"size"`
	DeviceProfile string            `json:"deviceProfile"`
	Options       map[string]string `json:"options,omitempty"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// ProfilesResponse wraps the device profile catalog.
type ProfilesResponse struct {
	Profiles []Profile `json:"profiles"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running       bool           `json:"running"`
	PID           int            `json:"pid"`
	QueueCounts   map[string]int `json:"queueCounts"`
	HistoryCounts map[string]int `json:"historyCounts"`
	Subscribers   int            `json:"subscribers"`
	DatabasePath  string         `json:"databasePath"`
	LockFilePath  string         `json:"lockFilePath,omitempty"`
	Database      DatabaseHealth `json:"database"`
}

// DatabaseHealth reports the durable store's condition.
type DatabaseHealth struct {
	Exists      bool   `json:"exists"`
	Readable    bool   `json:"readable"`
	IntegrityOK bool   `json:"integrityOk"`
	TotalJobs   int    `json:"totalJobs"`
	Error       string `json:"error,omitempty"`
}

// LogsResponse carries a slice of daemon log lines and the offset to resume
// the next poll from.
type LogsResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// Event is one websocket frame: a full snapshot of the job that changed.
type Event struct {
	Sequence  uint64 `json:"sequence"`
	Timestamp string `json:"timestamp"`
	Job       Job    `json:"job"`
}

// FromJob renders a job record into its wire shape. Processing progress is
// computed here from the fixed anchors so every consumer sees the same math.
func FromJob(job *jobs.Job, now time.Time) Job {
	out := Job{
		ID:                 job.ID,
		Status:             string(job.Status),
		Filename:           job.Input.Filename,
		Size:               job.Input.Size,
		DeviceProfile:      job.Input.DeviceProfile,
		DeviceProfileLabel: jobs.ProfileLabel(job.Input.DeviceProfile),
		CreatedAt:          job.CreatedAt.Format(dateTimeFormat),
		UpdatedAt:          job.UpdatedAt.Format(dateTimeFormat),
		QueuedAt:           formatTime(job.QueuedAt),
		ProcessingAt:       formatTime(job.ProcessingAnchor),
		EtaAt:              formatTime(job.ETAAnchor),
		CompletedAt:        formatTime(job.CompletedAt),
		ErroredAt:          formatTime(job.ErroredAt),
		CancelledAt:        formatTime(job.CancelledAt),
		DismissedAt:        formatTime(job.DismissedAt),
		Dismissed:          job.Dismissed,
		CancelRequested:    job.CancelRequested,
		DownloadCount:      job.DownloadCount,
	}

	if job.Status == jobs.StatusUploading {
		out.Upload = &UploadProgress{
			BytesTransferred: job.Upload.BytesTransferred,
			BytesTotal:       job.Upload.BytesTotal,
			SpeedBytesPerSec: job.Upload.SpeedBytesPerSec,
			EtaSeconds:       job.Upload.ETASeconds,
			HasEta:           job.Upload.HasETA,
		}
	}

	if job.Status == jobs.StatusProcessing && job.ProcessingAnchor != nil && job.ETAAnchor != nil {
		out.Processing = &ProcessingProgress{
			Percent:          progress.Percent(now, *job.ProcessingAnchor, *job.ETAAnchor),
			RemainingSeconds: progress.RemainingSeconds(now, *job.ETAAnchor),
			ElapsedSeconds:   job.ProcessingElapsed,
		}
	}

	if job.Output.Filename != "" {
		out.Output = &Output{Filename: job.Output.Filename, Size: job.Output.Size}
	}
	if job.Failure != nil {
		out.Failure = &Failure{Kind: job.Failure.Kind, Message: job.Failure.Message}
	}
	return out
}

// FromJobs renders a slice of records.
func FromJobs(records []*jobs.Job, now time.Time) []Job {
	out := make([]Job, 0, len(records))
	for _, record := range records {
		out = append(out, FromJob(record, now))
	}
	return out
}

// FromProfiles renders the device profile catalog.
func FromProfiles(profiles []jobs.Profile) []Profile {
	out := make([]Profile, 0, len(profiles))
	for _, profile := range profiles {
		out = append(out, Profile{ID: profile.ID, Label: profile.Label})
	}
	return out
}

func formatTime(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.Format(dateTimeFormat)
}
