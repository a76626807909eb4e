package client_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bindery/internal/client"
	"bindery/internal/convert"
	"bindery/internal/hub"
	"bindery/internal/jobs"
	"bindery/internal/lifecycle"
	"bindery/internal/logging"
	"bindery/internal/notify"
	"bindery/internal/server"
	"bindery/internal/testsupport"
)

type fixedEstimator struct{}

func (fixedEstimator) Estimate(jobs.InputMeta) time.Duration { return time.Minute }

func newTestDaemon(t *testing.T) (*client.Client, *lifecycle.Controller, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	repo := testsupport.NewRepository(t, cfg)
	broadcast := hub.New(repo.ListActive, 0, logging.NewNop())
	controller := lifecycle.New(repo, broadcast, notify.NewNop(), fixedEstimator{}, cfg, logging.NewNop())

	srv := server.New(cfg, controller, broadcast, repo, logging.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	if err := srv.Start(ctx); err != nil {
		cancel()
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		srv.Stop()
	})
	return client.New(srv.Addr()), controller, cfg.Paths.OutputDir
}

func TestSubmitAndQueueViews(t *testing.T) {
	c, _, _ := newTestDaemon(t)
	ctx := context.Background()

	source := filepath.Join(t.TempDir(), "book.cbz")
	if err := os.WriteFile(source, []byte("payload"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	job, err := c.Submit(ctx, source, "KPW5", nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job.Status != string(jobs.StatusQueued) {
		t.Fatalf("expected QUEUED after submit, got %s", job.Status)
	}

	active, err := c.ActiveJobs(ctx)
	if err != nil {
		t.Fatalf("active jobs: %v", err)
	}
	if len(active) != 1 || active[0].ID != job.ID {
		t.Fatalf("unexpected active list: %+v", active)
	}

	cancelled, err := c.Cancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != string(jobs.StatusCancelled) {
		t.Fatalf("expected CANCELLED, got %s", cancelled.Status)
	}

	history, err := c.History(ctx, 10, 0, false)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].ID != job.ID {
		t.Fatalf("unexpected history: %+v", history)
	}

	if _, err := c.Dismiss(ctx, job.ID); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	history, err = c.History(ctx, 10, 0, false)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("dismissed job still in history: %+v", history)
	}
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	c, _, _ := newTestDaemon(t)
	ctx := context.Background()

	if _, err := c.Job(ctx, "missing"); err == nil {
		t.Fatal("expected error for missing job")
	}
	if _, err := c.Cancel(ctx, "missing"); err == nil {
		t.Fatal("expected error cancelling missing job")
	}
}

func TestClientDownloadsArtifact(t *testing.T) {
	c, controller, outputDir := newTestDaemon(t)
	ctx := context.Background()

	source := filepath.Join(t.TempDir(), "book.cbz")
	if err := os.WriteFile(source, []byte("payload"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	job, err := c.Submit(ctx, source, "KPW5", nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	claimed, err := controller.Claim(ctx, job.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	artifactDir := filepath.Join(outputDir, job.ID)
	if err := os.MkdirAll(artifactDir, 0o755); err != nil {
		t.Fatalf("artifact dir: %v", err)
	}
	artifact := filepath.Join(artifactDir, "book.mobi")
	if err := os.WriteFile(artifact, []byte("converted"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	result := &convert.Result{OutputPath: artifact, OutputSize: 9}
	if err := controller.ReportResult(ctx, job.ID, claimed.ClaimToken, result, nil); err != nil {
		t.Fatalf("report result: %v", err)
	}

	dest := t.TempDir()
	path, err := c.Download(ctx, job.ID, dest)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(data) != "converted" {
		t.Fatalf("unexpected download contents: %q", data)
	}

	profiles, err := c.Profiles(ctx)
	if err != nil {
		t.Fatalf("profiles: %v", err)
	}
	if len(profiles) == 0 {
		t.Fatal("expected profile catalog")
	}

	status, err := c.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Running {
		t.Fatal("expected running daemon status")
	}
}
