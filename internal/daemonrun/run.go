package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"liftmail/internal/config"
	"liftmail/internal/daemon"
	"liftmail/internal/logging"
	"liftmail/internal/preflight"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the liftmail daemon and blocks until SIGINT/SIGTERM or ctx cancellation.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	runLog := logging.NewRunLog(cfg.Paths.LogDir, time.Now())
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		Writer:      os.Stdout,
		OutputPaths: []string{runLog.Path},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := runLog.Publish(); err != nil {
		logging.WarnWithContext(logger, "unable to update current log pointer", "log_pointer_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "liftmail logs shows the previous run"),
		)
	}

	pidPath := filepath.Join(cfg.Paths.DataDir, "liftmaild.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	rt, err := Build(signalCtx, cfg, logger)
	if err != nil {
		logger.Error("build pipeline", logging.Error(err))
		return err
	}
	defer rt.Close()

	logPreflight(signalCtx, logger, cfg, rt)

	d, err := daemon.New(cfg, rt.Poller, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Run(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon exited with error", "daemon_run_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check api_bind and the daemon lock file"),
		)
		return err
	}
	logger.Info("liftmail daemon shutting down")
	return nil
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config, rt *Runtime) {
	for _, result := range preflight.RunAll(ctx, cfg, rt.Dialer) {
		if result.Passed {
			logger.Info("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run liftmail doctor for details"),
			logging.String(logging.FieldImpact, "messages may fail until the dependency is reachable"),
		)
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
