package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bindery/internal/jobs"
	"bindery/internal/store"
	"bindery/internal/testsupport"
)

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := newJob("a1", jobs.StatusQueued)
	queued := job.CreatedAt
	job.QueuedAt = &queued
	job.Input.Options = jobs.Options{"format": "MOBI"}

	if err := st.Upsert(ctx, job); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	fetched, err := st.GetByID(ctx, "a1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched.Status != jobs.StatusQueued {
		t.Fatalf("status = %s", fetched.Status)
	}
	if fetched.Input.Filename != "a1.cbz" || fetched.Input.DeviceProfile != "KV" {
		t.Fatalf("input round-trip: %+v", fetched.Input)
	}
	if fetched.Input.Options["format"] != "MOBI" {
		t.Fatalf("options round-trip: %v", fetched.Input.Options)
	}
	if fetched.QueuedAt == nil || !fetched.QueuedAt.Equal(queued) {
		t.Fatalf("queued_at round-trip: %v", fetched.QueuedAt)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := testsupport.MustOpenStore(t, cfg)
	if err := first.Upsert(context.Background(), newJob("a1", jobs.StatusQueued)); err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second, err := store.Open(cfg.DatabasePath())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	if _, err := second.GetByID(context.Background(), "a1"); err != nil {
		t.Fatalf("job lost across reopen: %v", err)
	}
}

func TestUpsertReplacesExistingRow(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := newJob("a1", jobs.StatusQueued)
	if err := st.Upsert(ctx, job); err != nil {
		t.Fatal(err)
	}

	job.SetFailed(jobs.FailureKindConversion, "unsupported archive")
	job.UpdatedAt = time.Now().UTC()
	if err := st.Upsert(ctx, job); err != nil {
		t.Fatal(err)
	}

	fetched, err := st.GetByID(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if fetched.Status != jobs.StatusError {
		t.Fatalf("status = %s", fetched.Status)
	}
	if fetched.Failure == nil || fetched.Failure.Message != "unsupported archive" {
		t.Fatalf("failure = %+v", fetched.Failure)
	}
}

func TestGetByIDMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	if _, err := st.GetByID(context.Background(), "ghost"); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListTerminalNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, spec := range []struct {
		id     string
		status jobs.Status
	}{
		{"old", jobs.StatusComplete},
		{"mid", jobs.StatusError},
		{"new", jobs.StatusCancelled},
		{"live", jobs.StatusQueued},
	} {
		job := newJob(spec.id, spec.status)
		job.UpdatedAt = base.Add(time.Duration(i) * time.Second)
		if err := st.Upsert(ctx, job); err != nil {
			t.Fatal(err)
		}
	}

	history, err := st.ListTerminal(ctx, 0, 0, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 terminal jobs, got %d", len(history))
	}
	if history[0].ID != "new" || history[2].ID != "old" {
		t.Fatalf("unexpected order: %s, %s, %s", history[0].ID, history[1].ID, history[2].ID)
	}

	limited, err := st.ListTerminal(ctx, 2, 0, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Fatalf("limit ignored, got %d rows", len(limited))
	}

	page, err := st.ListTerminal(ctx, 2, 2, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].ID != "old" {
		t.Fatalf("offset page wrong: %v", page)
	}

	// Offset applies even without a limit.
	rest, err := st.ListTerminal(ctx, 0, 1, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 2 || rest[0].ID != "mid" || rest[1].ID != "old" {
		t.Fatalf("unbounded offset page wrong: %v", rest)
	}
}

func TestListTerminalDismissedFilter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	visible := newJob("seen", jobs.StatusComplete)
	hidden := newJob("gone", jobs.StatusComplete)
	hidden.Dismissed = true
	for _, job := range []*jobs.Job{visible, hidden} {
		if err := st.Upsert(ctx, job); err != nil {
			t.Fatal(err)
		}
	}

	list, err := st.ListTerminal(ctx, 0, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != "seen" {
		t.Fatalf("dismissed filter broken: %v", list)
	}

	all, err := st.ListTerminal(ctx, 0, 0, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("includeDismissed broken, got %d rows", len(all))
	}
}

func TestSetDownloadCount(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := st.Upsert(ctx, newJob("a1", jobs.StatusComplete)); err != nil {
		t.Fatal(err)
	}
	if err := st.SetDownloadCount(ctx, "a1", 7); err != nil {
		t.Fatal(err)
	}
	fetched, err := st.GetByID(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if fetched.DownloadCount != 7 {
		t.Fatalf("download count = %d", fetched.DownloadCount)
	}
}

func TestRepositorySaveCheckpointAndFallback(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	repo := testsupport.NewRepository(t, cfg)
	ctx := context.Background()

	uploading := newJob("a1", jobs.StatusUploading)
	if err := repo.Save(ctx, uploading, false); err != nil {
		t.Fatal(err)
	}
	// Not checkpointed: durable tier must not have it.
	if _, err := repo.Durable().GetByID(ctx, "a1"); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("uploading job leaked to durable tier: %v", err)
	}

	uploading.Status = jobs.StatusQueued
	now := time.Now().UTC()
	uploading.QueuedAt = &now
	if err := repo.Save(ctx, uploading, true); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Durable().GetByID(ctx, "a1"); err != nil {
		t.Fatalf("checkpoint missing: %v", err)
	}

	// Drop the ephemeral entry; reads must fall back to the checkpoint.
	repo.Mem().Delete("a1")
	fetched, err := repo.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("fallback read: %v", err)
	}
	if fetched.Status != jobs.StatusQueued {
		t.Fatalf("fallback status = %s", fetched.Status)
	}
}

func TestRepositoryListActiveExcludesDismissedAndTerminal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	repo := testsupport.NewRepository(t, cfg)
	ctx := context.Background()

	for _, spec := range []struct {
		id        string
		status    jobs.Status
		dismissed bool
	}{
		{"up", jobs.StatusUploading, false},
		{"done", jobs.StatusComplete, false},
		{"hidden", jobs.StatusComplete, true},
		{"failed", jobs.StatusError, false},
	} {
		job := newJob(spec.id, spec.status)
		job.Dismissed = spec.dismissed
		if err := repo.Save(ctx, job, false); err != nil {
			t.Fatal(err)
		}
	}

	active := repo.ListActive()
	ids := make(map[string]bool, len(active))
	for _, job := range active {
		ids[job.ID] = true
	}
	if !ids["up"] || !ids["done"] {
		t.Fatalf("expected up and done active: %v", ids)
	}
	if ids["hidden"] || ids["failed"] {
		t.Fatalf("dismissed or errored jobs leaked into active view: %v", ids)
	}
}

func TestRepositoryRestoreQueued(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	repo := testsupport.NewRepository(t, cfg)
	ctx := context.Background()

	// Simulate a restart: checkpoint exists, ephemeral tier is empty.
	if err := repo.Durable().Upsert(ctx, newJob("a1", jobs.StatusQueued)); err != nil {
		t.Fatal(err)
	}
	if err := repo.Durable().Upsert(ctx, newJob("a2", jobs.StatusComplete)); err != nil {
		t.Fatal(err)
	}

	restored, err := repo.RestoreQueued(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if restored != 1 {
		t.Fatalf("restored = %d, want 1", restored)
	}
	if _, err := repo.Mem().Get("a1"); err != nil {
		t.Fatalf("queued job not restored: %v", err)
	}
	if _, err := repo.Mem().Get("a2"); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatal("terminal job should not be restored")
	}
}
