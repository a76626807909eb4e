package sweep

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"bindery/internal/config"
	"bindery/internal/jobs"
	"bindery/internal/lifecycle"
	"bindery/internal/logging"
	"bindery/internal/store"
)

// Sweeper is the periodic housekeeping task.
type Sweeper struct {
	controller *lifecycle.Controller
	repo       *store.Repository
	logger     *slog.Logger

	interval       time.Duration
	abandonedAfter time.Duration
	now            func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool

	// folded remembers the last download count written durably per job so
	// unchanged counters do not rewrite the row every pass.
	folded map[string]int64
}

// Option customizes sweeper construction.
type Option func(*Sweeper)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds a sweeper from the retention configuration.
func New(controller *lifecycle.Controller, repo *store.Repository, cfg *config.Config, logger *slog.Logger, opts ...Option) *Sweeper {
	interval := time.Duration(cfg.Retention.SweepInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	abandonedAfter := time.Duration(cfg.Retention.AbandonedAfterSeconds) * time.Second
	if abandonedAfter <= 0 {
		abandonedAfter = time.Hour
	}
	s := &Sweeper{
		controller:     controller,
		repo:           repo,
		logger:         logging.NewComponentLogger(logger, "sweep"),
		interval:       interval,
		abandonedAfter: abandonedAfter,
		now:            time.Now,
		folded:         make(map[string]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the periodic loop.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.Sweep(runCtx)
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight pass.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Sweep runs one full housekeeping pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	s.retireAbandoned(ctx)
	s.foldDownloadCounts(ctx)
	s.purgeExpired(ctx)
}

// retireAbandoned errors out jobs that sat in UPLOADING or QUEUED past the
// threshold without any activity. No worker exists to report a result for
// them, so the sweep is the one caller allowed to retire them directly.
func (s *Sweeper) retireAbandoned(ctx context.Context) {
	cutoff := s.now().Add(-s.abandonedAfter)
	for _, job := range s.repo.Mem().List() {
		if job.Status != jobs.StatusUploading && job.Status != jobs.StatusQueued {
			continue
		}
		if job.UpdatedAt.After(cutoff) {
			continue
		}
		if err := s.controller.MarkAbandoned(ctx, job.ID); err != nil {
			s.logger.Error("abandonment failed",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(err))
		}
	}
}

// foldDownloadCounts writes accumulated ephemeral download counters into the
// durable rows. Best effort: a failed write is retried on the next pass.
func (s *Sweeper) foldDownloadCounts(ctx context.Context) {
	for _, job := range s.repo.Mem().List() {
		if job.DownloadCount == 0 || !job.IsTerminal() {
			continue
		}
		if s.folded[job.ID] == job.DownloadCount {
			continue
		}
		if err := s.repo.Durable().SetDownloadCount(ctx, job.ID, job.DownloadCount); err != nil {
			s.logger.Warn("download count fold failed",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(err))
			continue
		}
		s.folded[job.ID] = job.DownloadCount
	}
}

// purgeExpired drops finished ephemeral records past their TTL. The durable
// history rows remain, except for dismissed jobs: the user already removed
// those from history, so their rows go with the ephemeral record.
func (s *Sweeper) purgeExpired(ctx context.Context) {
	purged := s.repo.Mem().PurgeExpired()
	for _, job := range purged {
		delete(s.folded, job.ID)
		if !job.Dismissed {
			continue
		}
		if _, err := s.repo.Durable().Remove(ctx, job.ID); err != nil {
			s.logger.Warn("dismissed row cleanup failed",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(err))
		}
	}
	if len(purged) > 0 {
		s.logger.Info("purged expired records", logging.Int("count", len(purged)))
	}
}
