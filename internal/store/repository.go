package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bindery/internal/jobs"
	"bindery/internal/logging"
)

// Repository fronts the two storage tiers. Reads prefer the ephemeral tier;
// writes always land there and additionally checkpoint to the durable tier
// when asked. A failed checkpoint write fails the whole operation so callers
// never believe a durable guarantee that was not made.
type Repository struct {
	mem     *MemStore
	durable *Store
	logger  *slog.Logger
}

// NewRepository wires the two tiers together.
func NewRepository(mem *MemStore, durable *Store, logger *slog.Logger) *Repository {
	return &Repository{
		mem:     mem,
		durable: durable,
		logger:  logging.NewComponentLogger(logger, "store"),
	}
}

// Mem exposes the ephemeral tier for callers that need atomic mutation.
func (r *Repository) Mem() *MemStore {
	return r.mem
}

// Durable exposes the checkpoint tier for maintenance tasks.
func (r *Repository) Durable() *Store {
	return r.durable
}

// Save writes the job to the ephemeral tier and, when checkpoint is set,
// to the durable tier as well.
func (r *Repository) Save(ctx context.Context, job *jobs.Job, checkpoint bool) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if checkpoint {
		if err := r.durable.Upsert(ctx, job); err != nil {
			return fmt.Errorf("%w: %v", jobs.ErrDurableStore, err)
		}
	}
	r.mem.Put(job)
	return nil
}

// Get returns the job from the ephemeral tier, falling back to the durable
// tier when the ephemeral record has expired or was never created.
func (r *Repository) Get(ctx context.Context, id string) (*jobs.Job, error) {
	job, err := r.mem.Get(id)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, jobs.ErrNotFound) {
		return nil, err
	}
	return r.durable.GetByID(ctx, id)
}

// ListActive returns the live queue view: every non-dismissed job that has not
// been retired, oldest first.
func (r *Repository) ListActive() []*jobs.Job {
	all := r.mem.List()
	active := make([]*jobs.Job, 0, len(all))
	for _, job := range all {
		if job.IsActive() {
			active = append(active, job)
		}
	}
	return active
}

// ListHistory returns terminal jobs from the durable tier, newest first.
func (r *Repository) ListHistory(ctx context.Context, limit, offset int, includeDismissed bool) ([]*jobs.Job, error) {
	return r.durable.ListTerminal(ctx, limit, offset, includeDismissed)
}

// RestoreQueued loads QUEUED checkpoints into the ephemeral tier. Called once
// at startup so work enqueued before a restart is not lost.
func (r *Repository) RestoreQueued(ctx context.Context) (int, error) {
	queued, err := r.durable.ListByStatus(ctx, jobs.StatusQueued)
	if err != nil {
		return 0, err
	}
	restored := 0
	for _, job := range queued {
		if _, err := r.mem.Get(job.ID); err == nil {
			continue
		}
		r.mem.Put(job)
		restored++
	}
	if restored > 0 {
		r.logger.Info("restored queued jobs from checkpoint", logging.Int("count", restored))
	}
	return restored, nil
}
