package daemonrun

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"liftmail/internal/archive"
	"liftmail/internal/config"
	"liftmail/internal/directory"
	"liftmail/internal/ingest"
	"liftmail/internal/ledger"
	"liftmail/internal/logging"
	"liftmail/internal/mailbox"
	"liftmail/internal/notifications"
	"liftmail/internal/store"
	"liftmail/internal/upload"
	"liftmail/internal/workflow"
)

// Runtime holds the wired pipeline shared by the daemon and one-shot CLI commands.
type Runtime struct {
	DB        *sql.DB
	Ledger    ledger.Ledger
	Directory *directory.Directory
	Archive   archive.Store
	Processor *ingest.Processor
	Dialer    mailbox.Dialer
	Poller    *workflow.Manager
}

// BuildOption customizes Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	dialer   mailbox.Dialer
	uploader ingest.Uploader
	notifier notifications.Service
}

// WithDialer replaces the IMAP dialer.
func WithDialer(dialer mailbox.Dialer) BuildOption {
	return func(o *buildOptions) { o.dialer = dialer }
}

// WithUploader replaces the HTTP upload client.
func WithUploader(uploader ingest.Uploader) BuildOption {
	return func(o *buildOptions) { o.uploader = uploader }
}

// WithNotifier replaces the SMTP confirmation service.
func WithNotifier(notifier notifications.Service) BuildOption {
	return func(o *buildOptions) { o.notifier = notifier }
}

// Build opens the database, runs migrations and wires every collaborator.
// Callers must Close the returned runtime.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...BuildOption) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	db, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}
	rt := &Runtime{DB: db}
	if err := store.Migrate(ctx, db, cfg.MigrationLockPath()); err != nil {
		_ = rt.Close()
		return nil, err
	}

	rt.Ledger, err = ledger.Open(ctx, cfg, db)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	rt.Archive, err = archive.Open(ctx, cfg)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("open archive: %w", err)
	}
	rt.Directory = directory.New(db, directory.WithFallbackLift(cfg.Ingest.DefaultLift))

	uploader := bo.uploader
	if uploader == nil {
		uploader = upload.NewClient(cfg.Upload.BackendURL, cfg.UploadTimeout())
	}
	notifier := bo.notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	rt.Processor = ingest.New(cfg, ingest.Dependencies{
		Ledger:    rt.Ledger,
		Directory: rt.Directory,
		Uploader:  uploader,
		Notifier:  notifier,
		Archive:   rt.Archive,
		Logger:    logger,
	})

	rt.Dialer = bo.dialer
	if rt.Dialer == nil {
		rt.Dialer = mailbox.NewDialer(cfg, logger)
	}
	rt.Poller = workflow.NewManager(cfg, rt.Dialer, rt.Processor, logger)

	logger.Info("pipeline ready",
		logging.String(logging.FieldEventType, "pipeline_ready"),
		logging.String("ledger", cfg.Ledger.Backend),
		logging.String("archive", rt.Archive.Name()),
		logging.Bool("confirmations", cfg.SMTP.SendConfirmations),
		logging.Bool("polling", rt.Poller.Enabled()),
	)
	return rt, nil
}

// Close releases the ledger, archive and database handles.
func (rt *Runtime) Close() error {
	if rt == nil {
		return nil
	}
	var errs []error
	if rt.Poller != nil {
		rt.Poller.Stop()
	}
	if rt.Ledger != nil {
		errs = append(errs, rt.Ledger.Close())
	}
	if closer, ok := rt.Archive.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	if rt.DB != nil {
		errs = append(errs, rt.DB.Close())
	}
	return errors.Join(errs...)
}
