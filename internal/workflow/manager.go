package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"liftmail/internal/config"
	"liftmail/internal/ingest"
	"liftmail/internal/logging"
	"liftmail/internal/mailbox"
)

// Processor handles one raw message.
type Processor interface {
	Process(ctx context.Context, raw []byte) ingest.Result
}

// Manager coordinates mailbox polling.
type Manager struct {
	dialer       mailbox.Dialer
	processor    Processor
	logger       *slog.Logger
	pollInterval time.Duration
	enabled      bool
	configured   bool
	now          func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stats   counters
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithClock overrides the time source used for stats and rollover.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithPollInterval overrides the configured poll cadence.
func WithPollInterval(interval time.Duration) ManagerOption {
	return func(m *Manager) {
		if interval > 0 {
			m.pollInterval = interval
		}
	}
}

// NewManager constructs a poller for the configured mailbox.
func NewManager(cfg *config.Config, dialer mailbox.Dialer, processor Processor, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		dialer:       dialer,
		processor:    processor,
		logger:       logging.NewComponentLogger(logger, "poller"),
		pollInterval: cfg.PollInterval(),
		enabled:      cfg.Mailbox.Enabled && cfg.MailboxConfigured(),
		configured:   cfg.MailboxConfigured(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.pollInterval <= 0 {
		m.pollInterval = 30 * time.Second
	}
	m.stats.day = dayOf(m.now())
	return m
}

// Enabled reports whether background polling is switched on and configured.
func (m *Manager) Enabled() bool {
	return m.enabled
}

// Start launches the background loop. The first tick runs immediately.
func (m *Manager) Start(ctx context.Context) error {
	if !m.enabled {
		return errors.New("mailbox polling is disabled")
	}
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("poller already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info("poller started", logging.Duration("interval", m.pollInterval))
	go m.loop(runCtx)
	return nil
}

// Stop cancels the loop and waits for the in-flight tick to return.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("poller stopped")
}

// Running reports whether the background loop is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) loop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		result, err := m.RunOnce(ctx)
		if err == nil && result.Processed > 0 {
			m.logger.Info("tick complete",
				logging.Int("processed", result.Processed),
				logging.Int("succeeded", result.Succeeded),
				logging.Int("failed", result.Failed),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
