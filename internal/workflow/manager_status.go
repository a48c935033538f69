package workflow

import (
	"time"

	"liftmail/internal/ingest"
)

// Stats is a snapshot of the poller's daily counters.
type Stats struct {
	Enabled              bool
	EmailsProcessedToday int
	ErrorsToday          int
	LastCheck            time.Time
	LastError            string
	ProcessorRunning     bool
}

type counters struct {
	day       time.Time
	processed int
	errors    int
	lastCheck time.Time
	lastError string
}

func dayOf(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// rollover must be called with m.mu held.
func (m *Manager) rollover() {
	today := dayOf(m.now())
	if today.After(m.stats.day) {
		m.stats.day = today
		m.stats.processed = 0
		m.stats.errors = 0
	}
}

// Stats returns a snapshot of the counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover()
	return Stats{
		Enabled:              m.enabled,
		EmailsProcessedToday: m.stats.processed,
		ErrorsToday:          m.stats.errors,
		LastCheck:            m.stats.lastCheck,
		LastError:            m.stats.lastError,
		ProcessorRunning:     m.running,
	}
}

// ResetStats zeroes the daily counters. The last check and last error are kept.
func (m *Manager) ResetStats() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.day = dayOf(m.now())
	m.stats.processed = 0
	m.stats.errors = 0
}

func (m *Manager) recordOutcome(outcome ingest.Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollover()
	if outcome == ingest.OutcomeFailed {
		m.stats.errors++
		return
	}
	m.stats.processed++
}

func (m *Manager) markChecked() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.lastCheck = m.now().UTC()
}

func (m *Manager) setLastError(err error) {
	if err == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.lastError = err.Error()
}
