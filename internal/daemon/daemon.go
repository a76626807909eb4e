package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"bindery/internal/config"
	"bindery/internal/convert"
	"bindery/internal/hub"
	"bindery/internal/lifecycle"
	"bindery/internal/logging"
	"bindery/internal/notify"
	"bindery/internal/preflight"
	"bindery/internal/server"
	"bindery/internal/store"
	"bindery/internal/sweep"
	"bindery/internal/worker"
)

// Daemon owns every long-running component and enforces single-instance
// execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	repo       *store.Repository
	hub        *hub.Hub
	controller *lifecycle.Controller
	pool       *worker.Pool
	sweeper    *sweep.Sweeper
	api        *server.Server

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// New wires the full component graph. Nothing starts running until Start.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}

	durable, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open durable store: %w", err)
	}

	ttl := time.Duration(cfg.Retention.EphemeralTTLHours) * time.Hour
	repo := store.NewRepository(store.NewMemStore(ttl), durable, logger)

	broadcast := hub.New(repo.ListActive, 0, logger)
	notifier := notify.NewService(cfg)
	converter := convert.NewKCC(cfg.Converter.Binary, cfg.Converter.ExtraArgs, logger)
	controller := lifecycle.New(repo, broadcast, notifier, convert.NewHeuristicEstimator(), cfg, logger)

	lockPath := filepath.Join(cfg.Paths.LogDir, "binderyd.lock")
	return &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		repo:       repo,
		hub:        broadcast,
		controller: controller,
		pool:       worker.NewPool(controller, converter, cfg, logger),
		sweeper:    sweep.New(controller, repo, cfg, logger),
		api:        server.New(cfg, controller, broadcast, repo, logger),
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}, nil
}

// Controller exposes the lifecycle controller, mainly for tests.
func (d *Daemon) Controller() *lifecycle.Controller {
	return d.controller
}

// APIAddr returns the bound API address once started.
func (d *Daemon) APIAddr() string {
	return d.api.Addr()
}

// Start acquires the instance lock, restores queued checkpoints, and launches
// the workers, sweep, and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another bindery daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	for _, check := range preflight.RunAll(runCtx, d.cfg) {
		if check.Passed {
			d.logger.Debug("preflight check passed",
				logging.String("check", check.Name),
				logging.String("detail", check.Detail))
			continue
		}
		d.logger.Warn("preflight check failed",
			logging.String("check", check.Name),
			logging.String("detail", check.Detail))
	}

	restored, err := d.repo.RestoreQueued(runCtx)
	if err != nil {
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("restore queued checkpoints: %w", err)
	}
	if restored > 0 {
		d.logger.Info("requeued checkpointed jobs", logging.Int("count", restored))
	}

	if err := d.api.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return err
	}
	d.pool.Start(runCtx)
	d.sweeper.Start(runCtx)

	d.running.Store(true)
	d.logger.Info("bindery daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.Addr()))
	return nil
}

// Stop winds everything down in dependency order: no new work in, then the
// workers, then housekeeping, then the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.api.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.pool.Stop()
	d.sweeper.Stop()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("bindery daemon stopped")
}

// Close stops the daemon and releases the durable store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.repo.Durable().Close()
}
