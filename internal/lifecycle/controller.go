package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"bindery/internal/config"
	"bindery/internal/convert"
	"bindery/internal/hub"
	"bindery/internal/jobs"
	"bindery/internal/logging"
	"bindery/internal/notify"
	"bindery/internal/progress"
	"bindery/internal/store"
	"bindery/internal/textutil"
)

// ErrUnknownProfile rejects creates naming a device profile outside the catalog.
var ErrUnknownProfile = errors.New("unknown device profile")

// errSkip aborts a mutation without surfacing an error. Stale worker reports
// and late terminal reports resolve to this: the entry stays untouched and the
// caller sees success.
var errSkip = errors.New("skip mutation")

// CreateRequest carries the fields a client submits when registering a job.
type CreateRequest struct {
	ID            string
	Filename      string
	Size          int64
	DeviceProfile string
	Options       jobs.Options
}

// Controller is the single transition funnel. Every status change flows
// through it: it enforces the transition table, applies the checkpoint policy
// (durable writes only on entering the queue, reaching a terminal state, and
// dismissal), and broadcasts a full snapshot after every visible change.
type Controller struct {
	repo      *store.Repository
	hub       *hub.Hub
	notifier  notify.Service
	estimator convert.DurationEstimator
	logger    *slog.Logger

	publishEvery time.Duration
	now          func() time.Time

	mu      sync.Mutex
	uploads map[string]*uploadState
}

// uploadState holds the per-job smoothing window and the publish cadence
// limiter. Discarded as soon as the job leaves UPLOADING.
type uploadState struct {
	mu      sync.Mutex
	tracker *progress.UploadTracker
	limiter *rate.Limiter
}

// observe feeds one sample into the smoothing window and, when the publish
// cadence allows, returns the smoothed estimate. Concurrent upload streams
// for the same job serialize here: the tracker itself is not goroutine-safe.
func (s *uploadState) observe(transferred, total int64, now time.Time) (progress.UploadEstimate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracker.Observe(transferred, now)
	if !s.limiter.Allow() {
		return progress.UploadEstimate{}, false
	}
	return s.tracker.Estimate(transferred, total), true
}

// Option customizes controller construction.
type Option func(*Controller)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// New builds the controller.
func New(repo *store.Repository, broadcast *hub.Hub, notifier notify.Service, estimator convert.DurationEstimator, cfg *config.Config, logger *slog.Logger, opts ...Option) *Controller {
	publishEvery := time.Duration(cfg.Uploads.PublishInterval) * time.Second
	if publishEvery <= 0 {
		publishEvery = 5 * time.Second
	}
	if notifier == nil {
		notifier = notify.NewNop()
	}
	if estimator == nil {
		estimator = convert.NewHeuristicEstimator()
	}
	c := &Controller{
		repo:         repo,
		hub:          broadcast,
		notifier:     notifier,
		estimator:    estimator,
		logger:       logging.NewComponentLogger(logger, "lifecycle"),
		publishEvery: publishEvery,
		now:          time.Now,
		uploads:      make(map[string]*uploadState),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create registers a new job in UPLOADING. Creates are idempotent by id: a
// second create against a live job returns the existing record unchanged,
// while reusing the id of a finished job is rejected.
func (c *Controller) Create(ctx context.Context, req CreateRequest) (*jobs.Job, error) {
	profile := strings.TrimSpace(req.DeviceProfile)
	if !jobs.ValidProfile(profile) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, req.DeviceProfile)
	}

	filename := textutil.SanitizeFileName(req.Filename)
	if filename == "" {
		return nil, errors.New("filename required")
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	} else if existing, err := c.repo.Get(ctx, id); err == nil {
		if existing.IsTerminal() {
			return nil, jobs.ErrJobExists
		}
		return existing, nil
	} else if !errors.Is(err, jobs.ErrNotFound) {
		return nil, err
	}

	now := c.now().UTC()
	job := &jobs.Job{
		ID:        id,
		Status:    jobs.StatusUploading,
		CreatedAt: now,
		UpdatedAt: now,
		Input: jobs.InputMeta{
			Filename:      filename,
			Size:          req.Size,
			DeviceProfile: profile,
			Options:       req.Options.Clone(),
		},
		Upload: jobs.UploadProgress{BytesTotal: req.Size},
	}
	if err := c.repo.Save(ctx, job, false); err != nil {
		return nil, err
	}
	c.logger.Info("job created",
		logging.String(logging.FieldJobID, id),
		logging.String("filename", job.Input.Filename),
		logging.String("profile", profile))
	c.hub.Publish(job)
	return job.Clone(), nil
}

// ReportUpload records raw upload byte counters. The counters land in the
// ephemeral record on every call; the smoothed speed/ETA estimate and the
// observer broadcast follow the publish cadence instead, so observers see a
// steady stream no matter how bursty the transport is. Reports against a job
// that already left UPLOADING are dropped silently.
func (c *Controller) ReportUpload(ctx context.Context, id string, transferred, total int64) error {
	state := c.uploadState(id)
	now := c.now()
	estimate, publish := state.observe(transferred, total, now)

	updated, err := c.repo.Mem().Mutate(id, func(job *jobs.Job) error {
		if job.Status != jobs.StatusUploading {
			return errSkip
		}
		// Byte counters never move backwards, whatever the transport reports.
		if transferred > job.Upload.BytesTransferred {
			job.Upload.BytesTransferred = transferred
		}
		job.Upload.BytesTotal = total
		if publish {
			job.Upload.SpeedBytesPerSec = estimate.SpeedBytesPerSec
			job.Upload.ETASeconds = estimate.ETASeconds
			job.Upload.HasETA = estimate.HasETA
		}
		job.UpdatedAt = now.UTC()
		return nil
	})
	if errors.Is(err, errSkip) || errors.Is(err, jobs.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if publish {
		c.hub.Publish(updated)
	}
	return nil
}

// CompleteUpload finishes the upload phase and enqueues the job. This is the
// first durable checkpoint: a job that made it into the queue survives a
// restart.
func (c *Controller) CompleteUpload(ctx context.Context, id string) (*jobs.Job, error) {
	now := c.now().UTC()
	updated, err := c.transition(ctx, id, jobs.StatusQueued, func(job *jobs.Job) {
		job.QueuedAt = &now
		job.Upload.BytesTransferred = job.Upload.BytesTotal
		job.Upload.HasETA = false
		job.Upload.ETASeconds = 0
	})
	if err != nil {
		return nil, err
	}
	c.dropUploadState(id)
	c.logger.Info("job queued", logging.String(logging.FieldJobID, id))
	return updated, nil
}

// Claim atomically moves a QUEUED job to PROCESSING for exactly one caller.
// The winner receives a claim token that authenticates all later progress and
// result reports; losers get jobs.ErrAlreadyClaimed. The processing anchors
// are fixed here, once, from the estimator's point estimate — progress ticks
// never move them.
func (c *Controller) Claim(ctx context.Context, id string) (*jobs.Job, error) {
	now := c.now().UTC()
	updated, err := c.repo.Mem().Mutate(id, func(job *jobs.Job) error {
		if job.Status != jobs.StatusQueued || job.ClaimToken != "" {
			return jobs.ErrAlreadyClaimed
		}
		estimate := c.estimator.Estimate(job.Input)
		anchor, eta := progress.Anchors(now, estimate)
		job.Status = jobs.StatusProcessing
		job.ClaimToken = uuid.NewString()
		job.ProcessingAnchor = &anchor
		job.ETAAnchor = &eta
		job.ProcessingElapsed = 0
		job.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("job claimed",
		logging.String(logging.FieldJobID, id),
		logging.String("eta", updated.ETAAnchor.Format(time.RFC3339)))
	c.hub.Publish(updated)
	return updated, nil
}

// NextQueued returns the oldest unclaimed QUEUED job, or nil when the queue
// is empty. Callers still have to win the claim.
func (c *Controller) NextQueued(ctx context.Context) *jobs.Job {
	for _, job := range c.repo.Mem().List() {
		if job.Status == jobs.StatusQueued && job.ClaimToken == "" {
			return job
		}
	}
	return nil
}

// ReportProgress records elapsed processing time. Ephemeral-only: progress
// ticks never touch the durable store. Reports carrying a stale token or
// arriving after the job left PROCESSING are dropped silently.
func (c *Controller) ReportProgress(ctx context.Context, id, token string, elapsed float64) error {
	now := c.now().UTC()
	updated, err := c.repo.Mem().Mutate(id, func(job *jobs.Job) error {
		if job.Status != jobs.StatusProcessing || job.ClaimToken != token {
			return errSkip
		}
		job.ProcessingElapsed = elapsed
		job.UpdatedAt = now
		return nil
	})
	if errors.Is(err, errSkip) || errors.Is(err, jobs.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	c.hub.Publish(updated)
	return nil
}

// ReportResult finishes a conversion. A nil convErr moves the job to COMPLETE
// with the artifact metadata; otherwise the job moves to ERROR carrying the
// user-safe failure reason. Reports for a job that already reached a terminal
// state — a cancellation that won the race, a retried worker — are accepted
// silently without changing anything: terminal states are never overwritten.
func (c *Controller) ReportResult(ctx context.Context, id, token string, result *convert.Result, convErr error) error {
	now := c.now().UTC()
	updated, err := c.repo.Mem().Mutate(id, func(job *jobs.Job) error {
		if job.IsTerminal() {
			return errSkip
		}
		if job.Status != jobs.StatusProcessing || job.ClaimToken != token {
			return errSkip
		}
		if convErr != nil {
			job.SetFailed(jobs.FailureKindConversion, jobs.UserMessage(convErr))
		} else {
			job.Status = jobs.StatusComplete
			job.CompletedAt = &now
			job.ClaimToken = ""
			if result != nil {
				job.Output = jobs.OutputMeta{
					Filename: filepath.Base(result.OutputPath),
					Size:     result.OutputSize,
				}
			}
		}
		job.UpdatedAt = now
		return c.checkpoint(ctx, job)
	})
	if errors.Is(err, errSkip) || errors.Is(err, jobs.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	c.hub.Publish(updated)
	c.notifyTerminal(ctx, updated)
	return nil
}

// Cancel requests cancellation and, when the transition table allows it,
// moves the job to CANCELLED immediately. A PROCESSING worker observes the
// cancellation cooperatively through IsCancelled. Cancelling an already
// cancelled job is an idempotent no-op.
func (c *Controller) Cancel(ctx context.Context, id string) (*jobs.Job, error) {
	now := c.now().UTC()
	var already bool
	updated, err := c.repo.Mem().Mutate(id, func(job *jobs.Job) error {
		if job.Status == jobs.StatusCancelled {
			already = true
			return errSkip
		}
		if !jobs.CanTransition(job.Status, jobs.StatusCancelled) {
			return &jobs.InvalidTransitionError{JobID: id, From: job.Status, To: jobs.StatusCancelled}
		}
		job.CancelRequested = true
		job.Status = jobs.StatusCancelled
		job.CancelledAt = &now
		job.ClaimToken = ""
		job.UpdatedAt = now
		return c.checkpoint(ctx, job)
	})
	if already {
		return c.repo.Get(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	c.dropUploadState(id)
	c.logger.Info("job cancelled", logging.String(logging.FieldJobID, id))
	c.hub.Publish(updated)
	return updated, nil
}

// IsCancelled tells a worker whether to stop. Any state in which the worker's
// claim is no longer live — job gone, no longer PROCESSING, token superseded —
// reads as cancelled, so a confused worker always stands down.
func (c *Controller) IsCancelled(ctx context.Context, id, token string) bool {
	job, err := c.repo.Mem().Get(id)
	if err != nil {
		return true
	}
	if job.Status != jobs.StatusProcessing || job.ClaimToken != token {
		return true
	}
	return job.CancelRequested
}

// Dismiss hides a terminal job from the active queue view. Dismissal is a
// durable checkpoint of its own so the job stays hidden across restarts.
// Dismissing twice is a no-op; dismissing a live job is an error.
func (c *Controller) Dismiss(ctx context.Context, id string) (*jobs.Job, error) {
	now := c.now().UTC()
	var already bool
	mutate := func(job *jobs.Job) error {
		if !job.IsTerminal() {
			return fmt.Errorf("job %s is not finished", id)
		}
		if job.Dismissed {
			already = true
			return errSkip
		}
		job.Dismissed = true
		job.DismissedAt = &now
		job.UpdatedAt = now
		return c.checkpoint(ctx, job)
	}

	updated, err := c.repo.Mem().Mutate(id, mutate)
	if errors.Is(err, jobs.ErrNotFound) {
		// The ephemeral record expired; the durable history row remains.
		return c.dismissDurable(ctx, id, mutate)
	}
	if already {
		return c.repo.Get(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	c.hub.Publish(updated)
	return updated, nil
}

func (c *Controller) dismissDurable(ctx context.Context, id string, mutate func(*jobs.Job) error) (*jobs.Job, error) {
	job, err := c.repo.Durable().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(job); err != nil {
		if errors.Is(err, errSkip) {
			return job, nil
		}
		return nil, err
	}
	return job, nil
}

// MarkAbandoned retires a job that stalled in UPLOADING or QUEUED before any
// worker touched it. The sweep calls this for jobs past the abandonment
// threshold; downstream it looks exactly like a conversion failure. This is
// the one path that moves QUEUED to ERROR directly, outside the transition
// table, because no worker exists to report a result.
func (c *Controller) MarkAbandoned(ctx context.Context, id string) error {
	now := c.now().UTC()
	updated, err := c.repo.Mem().Mutate(id, func(job *jobs.Job) error {
		if job.Status != jobs.StatusUploading && job.Status != jobs.StatusQueued {
			return errSkip
		}
		job.SetFailed(jobs.FailureKindAbandoned, "abandoned before processing")
		job.UpdatedAt = now
		return c.checkpoint(ctx, job)
	})
	if errors.Is(err, errSkip) || errors.Is(err, jobs.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	c.dropUploadState(id)
	c.logger.Warn("job abandoned", logging.String(logging.FieldJobID, id))
	c.hub.Publish(updated)
	c.notifyTerminal(ctx, updated)
	return nil
}

// RecordDownload increments the best-effort download counter for a COMPLETE
// job. Ephemeral-only; the sweep folds the counter into the durable record.
func (c *Controller) RecordDownload(ctx context.Context, id string) (*jobs.Job, error) {
	now := c.now().UTC()
	updated, err := c.repo.Mem().Mutate(id, func(job *jobs.Job) error {
		if job.Status != jobs.StatusComplete {
			return fmt.Errorf("job %s has no downloadable artifact", id)
		}
		job.DownloadCount++
		job.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Get returns a snapshot of the job from either tier.
func (c *Controller) Get(ctx context.Context, id string) (*jobs.Job, error) {
	return c.repo.Get(ctx, id)
}

// ListActive returns the live queue view.
func (c *Controller) ListActive() []*jobs.Job {
	return c.repo.ListActive()
}

// ListHistory returns finished jobs from the durable tier, newest first.
func (c *Controller) ListHistory(ctx context.Context, limit, offset int, includeDismissed bool) ([]*jobs.Job, error) {
	return c.repo.ListHistory(ctx, limit, offset, includeDismissed)
}

// transition applies a table-checked status change. apply runs after the
// status is set, while the entry is still private to the mutation.
func (c *Controller) transition(ctx context.Context, id string, to jobs.Status, apply func(*jobs.Job)) (*jobs.Job, error) {
	now := c.now().UTC()
	updated, err := c.repo.Mem().Mutate(id, func(job *jobs.Job) error {
		if !jobs.CanTransition(job.Status, to) {
			return &jobs.InvalidTransitionError{JobID: id, From: job.Status, To: to}
		}
		job.Status = to
		if apply != nil {
			apply(job)
		}
		job.UpdatedAt = now
		return c.checkpoint(ctx, job)
	})
	if err != nil {
		return nil, err
	}
	c.hub.Publish(updated)
	return updated, nil
}

// checkpoint writes the durable row when the job's new state demands one.
// Runs inside the mutation callback: a failed durable write aborts the whole
// transition and the ephemeral record keeps its previous state.
func (c *Controller) checkpoint(ctx context.Context, job *jobs.Job) error {
	if !jobs.CheckpointStatus(job.Status) {
		return nil
	}
	if err := c.repo.Durable().Upsert(ctx, job); err != nil {
		return fmt.Errorf("%w: %v", jobs.ErrDurableStore, err)
	}
	return nil
}

func (c *Controller) notifyTerminal(ctx context.Context, job *jobs.Job) {
	var err error
	switch job.Status {
	case jobs.StatusComplete:
		err = c.notifier.JobComplete(ctx, job)
	case jobs.StatusError:
		err = c.notifier.JobFailed(ctx, job)
	default:
		return
	}
	if err != nil {
		c.logger.Warn("notification failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err))
	}
}

func (c *Controller) uploadState(id string) *uploadState {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.uploads[id]
	if !ok {
		state = &uploadState{
			tracker: progress.NewUploadTracker(),
			limiter: rate.NewLimiter(rate.Every(c.publishEvery), 1),
		}
		c.uploads[id] = state
	}
	return state
}

func (c *Controller) dropUploadState(id string) {
	c.mu.Lock()
	delete(c.uploads, id)
	c.mu.Unlock()
}
