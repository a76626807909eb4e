package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bindery/internal/jobs"
)

// Upsert writes a job checkpoint, replacing any previous row for the id.
func (s *Store) Upsert(ctx context.Context, job *jobs.Job) error {
	if job == nil {
		return errors.New("job is nil")
	}

	var optionsJSON any
	if len(job.Input.Options) > 0 {
		raw, err := json.Marshal(job.Input.Options)
		if err != nil {
			return fmt.Errorf("marshal options: %w", err)
		}
		optionsJSON = string(raw)
	}

	var failureKind, failureMessage any
	if job.Failure != nil {
		failureKind = nullableString(job.Failure.Kind)
		failureMessage = nullableString(job.Failure.Message)
	}

	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            id, status, filename, size, device_profile, options_json,
            output_filename, output_size, failure_kind, failure_message,
            dismissed, download_count, created_at, updated_at,
            queued_at, processing_at, completed_at, errored_at, cancelled_at, dismissed_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            status = excluded.status,
            filename = excluded.filename,
            size = excluded.size,
            device_profile = excluded.device_profile,
            options_json = excluded.options_json,
            output_filename = excluded.output_filename,
            output_size = excluded.output_size,
            failure_kind = excluded.failure_kind,
            failure_message = excluded.failure_message,
            dismissed = excluded.dismissed,
            download_count = excluded.download_count,
            updated_at = excluded.updated_at,
            queued_at = excluded.queued_at,
            processing_at = excluded.processing_at,
            completed_at = excluded.completed_at,
            errored_at = excluded.errored_at,
            cancelled_at = excluded.cancelled_at,
            dismissed_at = excluded.dismissed_at`,
		job.ID,
		string(job.Status),
		nullableString(job.Input.Filename),
		job.Input.Size,
		nullableString(job.Input.DeviceProfile),
		optionsJSON,
		nullableString(job.Output.Filename),
		job.Output.Size,
		failureKind,
		failureMessage,
		boolToInt(job.Dismissed),
		job.DownloadCount,
		job.CreatedAt.UTC().Format(time.RFC3339Nano),
		job.UpdatedAt.UTC().Format(time.RFC3339Nano),
		nullableTime(job.QueuedAt),
		nullableTime(job.ProcessingAnchor),
		nullableTime(job.CompletedAt),
		nullableTime(job.ErroredAt),
		nullableTime(job.CancelledAt),
		nullableTime(job.DismissedAt),
	); err != nil {
		return fmt.Errorf("upsert job: %w", err)
	}
	return nil
}

// GetByID fetches a checkpointed job by identifier. Returns jobs.ErrNotFound
// when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*jobs.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, jobs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListTerminal returns checkpointed jobs in a terminal state, newest first.
// A limit of 0 means unbounded; offset supports history pagination. Dismissed
// jobs are excluded unless includeDismissed is set.
func (s *Store) ListTerminal(ctx context.Context, limit, offset int, includeDismissed bool) ([]*jobs.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs
        WHERE status IN (?, ?, ?)`
	args := []any{string(jobs.StatusComplete), string(jobs.StatusError), string(jobs.StatusCancelled)}
	if !includeDismissed {
		query += ` AND dismissed = 0`
	}
	query += ` ORDER BY updated_at DESC`
	if limit > 0 || offset > 0 {
		// SQLite needs a LIMIT clause to accept OFFSET; -1 means unbounded.
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list terminal jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ListByStatus returns checkpointed jobs matching a status ordered by creation
// time. Used at startup to find QUEUED work that survived a restart.
func (s *Store) ListByStatus(ctx context.Context, status jobs.Status) ([]*jobs.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY created_at`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("list by status: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// SetDownloadCount folds the ephemeral download counter into the durable row.
func (s *Store) SetDownloadCount(ctx context.Context, id string, count int64) error {
	if _, err := s.execWithRetry(ctx,
		`UPDATE jobs SET download_count = ? WHERE id = ?`, count, id,
	); err != nil {
		return fmt.Errorf("set download count: %w", err)
	}
	return nil
}

// Remove deletes a checkpointed job by identifier.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func collectJobs(rows *sql.Rows) ([]*jobs.Job, error) {
	var out []*jobs.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}
