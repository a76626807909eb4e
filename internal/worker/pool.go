package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"bindery/internal/config"
	"bindery/internal/convert"
	"bindery/internal/fileutil"
	"bindery/internal/jobs"
	"bindery/internal/lifecycle"
	"bindery/internal/logging"
)

// Pool owns the worker slots. One job per slot; conversions run off the
// request path with a hard deadline.
type Pool struct {
	controller *lifecycle.Controller
	converter  convert.Converter
	cfg        *config.Config
	logger     *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewPool builds a pool sized by the engine configuration.
func NewPool(controller *lifecycle.Controller, converter convert.Converter, cfg *config.Config, logger *slog.Logger) *Pool {
	return &Pool{
		controller: controller,
		converter:  converter,
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "worker"),
	}
}

// Start launches the worker slots. Safe to call once.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	workers := p.cfg.Engine.Workers
	if workers < 1 {
		workers = 1
	}
	p.logger.Info("starting worker pool", logging.Int("workers", workers))
	for i := 1; i <= workers; i++ {
		p.wg.Add(1)
		go p.run(runCtx, i)
	}
}

// Stop signals the slots and waits for in-flight conversions to wind down.
func (p *Pool) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, slot int) {
	defer p.wg.Done()
	logger := p.logger.With(logging.Int(logging.FieldWorkerID, slot))

	poll := time.NewTicker(p.seconds(p.cfg.Engine.QueuePollInterval, 2))
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			p.pollOnce(ctx, logger)
		}
	}
}

// pollOnce drains the queue: it keeps claiming and processing until the queue
// is empty or shutdown begins, so a burst of work does not wait out the poll
// interval between jobs.
func (p *Pool) pollOnce(ctx context.Context, logger *slog.Logger) {
	for ctx.Err() == nil {
		next := p.controller.NextQueued(ctx)
		if next == nil {
			return
		}
		claimed, err := p.controller.Claim(ctx, next.ID)
		if err != nil {
			if errors.Is(err, jobs.ErrAlreadyClaimed) || errors.Is(err, jobs.ErrNotFound) {
				continue
			}
			logger.Error("claim failed", logging.String(logging.FieldJobID, next.ID), logging.Error(err))
			return
		}
		p.process(ctx, logger, claimed)
	}
}

func (p *Pool) process(ctx context.Context, logger *slog.Logger, job *jobs.Job) {
	logger.Info("processing job",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("filename", job.Input.Filename))

	inputPath := filepath.Join(p.cfg.Paths.IncomingDir, job.ID, job.Input.Filename)
	workDir := filepath.Join(p.cfg.Paths.WorkDir, job.ID)

	convCtx, cancelConv := context.WithTimeout(ctx, p.seconds(p.cfg.Engine.ConversionTimeout, 3600))
	defer cancelConv()

	stop := make(chan struct{})
	var watch sync.WaitGroup
	watch.Add(1)
	go func() {
		defer watch.Done()
		p.watch(convCtx, cancelConv, job, stop)
	}()

	result, convErr := p.converter.Convert(convCtx, convert.Request{
		InputPath:     inputPath,
		OutputDir:     workDir,
		DeviceProfile: job.Input.DeviceProfile,
		Options:       job.Input.Options,
	})
	close(stop)
	watch.Wait()

	if ctx.Err() != nil && errors.Is(convErr, context.Canceled) {
		// Shutdown aborted the conversion. The queue checkpoint survives,
		// so the job is picked up again on the next start.
		logger.Info("conversion interrupted by shutdown", logging.String(logging.FieldJobID, job.ID))
		return
	}

	if convErr == nil {
		if moved, err := p.publishArtifact(job.ID, result.OutputPath); err != nil {
			logger.Error("artifact move failed", logging.String(logging.FieldJobID, job.ID), logging.Error(err))
			convErr = err
		} else {
			result.OutputPath = moved
		}
	}

	// The terminal report must land even when shutdown cancelled ctx.
	reportCtx, cancelReport := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancelReport()
	if err := p.controller.ReportResult(reportCtx, job.ID, job.ClaimToken, &result, convErr); err != nil {
		logger.Error("result report failed", logging.String(logging.FieldJobID, job.ID), logging.Error(err))
		return
	}
	p.cleanup(job.ID, workDir, convErr == nil)

	if convErr == nil {
		logger.Info("job complete",
			logging.String(logging.FieldJobID, job.ID),
			logging.String("artifact", filepath.Base(result.OutputPath)))
	} else {
		logger.Warn("job failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(convErr))
	}
}

// watch reports elapsed processing time at the tick interval and polls for
// cancellation, aborting the conversion context when the claim is no longer
// live.
func (p *Pool) watch(ctx context.Context, cancelConv context.CancelFunc, job *jobs.Job, stop <-chan struct{}) {
	start := time.Now()
	progressTicker := time.NewTicker(p.seconds(p.cfg.Engine.ProgressTickInterval, 1))
	defer progressTicker.Stop()
	cancelTicker := time.NewTicker(p.seconds(p.cfg.Engine.CancelPollInterval, 1))
	defer cancelTicker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-progressTicker.C:
			elapsed := time.Since(start).Seconds()
			if err := p.controller.ReportProgress(ctx, job.ID, job.ClaimToken, elapsed); err != nil {
				p.logger.Warn("progress report failed", logging.String(logging.FieldJobID, job.ID), logging.Error(err))
			}
		case <-cancelTicker.C:
			if p.controller.IsCancelled(ctx, job.ID, job.ClaimToken) {
				p.logger.Info("cancellation observed", logging.String(logging.FieldJobID, job.ID))
				cancelConv()
				return
			}
		}
	}
}

// publishArtifact moves the converter's output from the work directory into
// the job's output directory.
func (p *Pool) publishArtifact(jobID, artifactPath string) (string, error) {
	finalDir := filepath.Join(p.cfg.Paths.OutputDir, jobID)
	if err := os.MkdirAll(finalDir, 0o755); err != nil {
		return "", fmt.Errorf("ensure output dir: %w", err)
	}
	finalPath := filepath.Join(finalDir, filepath.Base(artifactPath))
	if err := fileutil.MoveFile(artifactPath, finalPath); err != nil {
		return "", fmt.Errorf("move artifact: %w", err)
	}
	return finalPath, nil
}

// cleanup drops the scratch directory always, and the staged upload once the
// conversion succeeded. Failed inputs stay around for inspection until the
// retention sweep ages them out.
func (p *Pool) cleanup(jobID, workDir string, succeeded bool) {
	if err := os.RemoveAll(workDir); err != nil {
		p.logger.Warn("work dir cleanup failed", logging.String(logging.FieldJobID, jobID), logging.Error(err))
	}
	if succeeded {
		staged := filepath.Join(p.cfg.Paths.IncomingDir, jobID)
		if err := os.RemoveAll(staged); err != nil {
			p.logger.Warn("staged upload cleanup failed", logging.String(logging.FieldJobID, jobID), logging.Error(err))
		}
	}
}

func (p *Pool) seconds(value, fallback int) time.Duration {
	if value < 1 {
		value = fallback
	}
	return time.Duration(value) * time.Second
}
