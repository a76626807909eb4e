package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"bindery/internal/jobs"
	"bindery/internal/logging"
	"bindery/internal/progress"
)

func TestHeuristicEstimator(t *testing.T) {
	est := NewHeuristicEstimator()

	// 5 MB archive at ~50 KB/s is 100 seconds.
	got := est.Estimate(jobs.InputMeta{Filename: "book.cbz", Size: 5_000_000})
	if got != 100*time.Second {
		t.Fatalf("cbz estimate = %v, want 100s", got)
	}

	// PDFs cost 2.5x.
	got = est.Estimate(jobs.InputMeta{Filename: "book.PDF", Size: 5_000_000})
	if got != 250*time.Second {
		t.Fatalf("pdf estimate = %v, want 250s", got)
	}

	if got = est.Estimate(jobs.InputMeta{Filename: "tiny.cbz", Size: 1}); got != progress.MinProcessingEstimate {
		t.Fatalf("tiny estimate = %v, want clamp to %v", got, progress.MinProcessingEstimate)
	}
	if got = est.Estimate(jobs.InputMeta{Filename: "huge.cbz", Size: 1 << 40}); got != progress.MaxProcessingEstimate {
		t.Fatalf("huge estimate = %v, want clamp to %v", got, progress.MaxProcessingEstimate)
	}
}

func TestBuildArgs(t *testing.T) {
	req := Request{
		InputPath:     "/in/book.cbz",
		OutputDir:     "/out",
		DeviceProfile: "KV",
		Options: jobs.Options{
			"upscale": "true",
			"format":  "MOBI",
			"stretch": "false",
		},
	}
	got := buildArgs(req, []string{"--quiet"})
	want := []string{
		"--profile", "KV",
		"--format=MOBI",
		"--upscale",
		"--quiet",
		"--output", "/out", "/in/book.cbz",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("args = %v, want %v", got, want)
	}
}

func TestConvertLocatesArtifact(t *testing.T) {
	outDir := t.TempDir()
	kcc := NewKCC("kcc-c2e", nil, logging.NewNop())
	kcc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		return os.WriteFile(filepath.Join(outDir, "book.mobi"), []byte("artifact"), 0o644)
	})

	res, err := kcc.Convert(context.Background(), Request{
		InputPath: "/in/book.cbz",
		OutputDir: outDir,
	})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if filepath.Base(res.OutputPath) != "book.mobi" {
		t.Fatalf("output path = %q", res.OutputPath)
	}
	if res.OutputSize != int64(len("artifact")) {
		t.Fatalf("output size = %d", res.OutputSize)
	}
}

func TestConvertToolFailureIsUserSafe(t *testing.T) {
	kcc := NewKCC("kcc-c2e", nil, logging.NewNop())
	kcc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		return errors.New("Traceback (most recent call last): internal panic at line 42")
	})

	_, err := kcc.Convert(context.Background(), Request{
		InputPath: "/in/book.cbz",
		OutputDir: t.TempDir(),
	})
	var failure *jobs.ConversionFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected ConversionFailure, got %v", err)
	}
	if failure.Message != "conversion failed" {
		t.Fatalf("leaked internals: %q", failure.Message)
	}
}

func TestConvertCancelledContextPropagates(t *testing.T) {
	kcc := NewKCC("kcc-c2e", nil, logging.NewNop())
	kcc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := kcc.Convert(ctx, Request{InputPath: "/in/book.cbz", OutputDir: t.TempDir()})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestConvertNoArtifact(t *testing.T) {
	kcc := NewKCC("kcc-c2e", nil, logging.NewNop())
	kcc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		return nil
	})
	_, err := kcc.Convert(context.Background(), Request{InputPath: "/in/book.cbz", OutputDir: t.TempDir()})
	var failure *jobs.ConversionFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected ConversionFailure, got %v", err)
	}
}
