package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"liftmail/internal/config"
	"liftmail/internal/logging"
	"liftmail/internal/mailparse"
	"liftmail/internal/workflow"
)

// Daemon owns the poller and API server lifecycle and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	poller *workflow.Manager
	tags   *mailparse.TagParser
	api    *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Poller       workflow.Stats
	LockFilePath string
	APIAddress   string
}

// New constructs a daemon around an already wired poller.
func New(cfg *config.Config, poller *workflow.Manager, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || poller == nil {
		return nil, errors.New("daemon requires config and poller")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		poller:   poller,
		tags:     mailparse.NewTagParser(cfg.Ingest.TagKeyword, cfg.Ingest.DefaultLift),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock and launches the poller when it is enabled.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another liftmail daemon instance is already running")
	}

	if d.poller.Enabled() {
		if err := d.poller.Start(ctx); err != nil {
			_ = d.lock.Unlock()
			return fmt.Errorf("start poller: %w", err)
		}
	} else {
		logging.WarnWithContext(d.logger, "mailbox polling disabled", "poller_disabled",
			logging.String(logging.FieldErrorHint, "set mailbox.enabled and credentials to poll"),
			logging.String(logging.FieldImpact, "only manual checks through the API or CLI are available"),
		)
	}

	d.running.Store(true)
	d.logger.Info("liftmail daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background polling and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.poller.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("liftmail daemon stopped")
}

// Run starts the daemon, serves the API until ctx is cancelled, then stops.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	defer d.Stop()

	g, gctx := errgroup.WithContext(ctx)
	if d.api != nil {
		g.Go(func() error {
			return d.api.serve(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	return g.Wait()
}

// Handler returns the operator API router.
func (d *Daemon) Handler() http.Handler {
	return newRouter(d, d.cfg.Paths.APIToken)
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	status := Status{
		Running:      d.running.Load(),
		Poller:       d.poller.Stats(),
		LockFilePath: d.lockPath,
	}
	if d.api != nil {
		status.APIAddress = d.api.address()
	}
	return status
}
