package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"liftmail/internal/ingest"
	"liftmail/internal/logging"
)

// ErrNotConfigured is returned by RunOnce when mailbox credentials are missing.
var ErrNotConfigured = errors.New("mailbox credentials not configured")

// CheckResult summarises one poll tick.
type CheckResult struct {
	Processed int
	Succeeded int
	Failed    int
	Skipped   int
	Errors    []string
}

// RunOnce performs a single poll tick. Per-message failures are reported in the
// result; the returned error covers only connection, login and search failures.
func (m *Manager) RunOnce(ctx context.Context) (CheckResult, error) {
	ctx = logging.WithCorrelationID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, m.logger)

	result, err := m.tick(ctx, logger)
	if err != nil {
		m.setLastError(err)
		logging.ErrorWithContext(logger, "mailbox check failed", "poll_tick_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "verify mailbox host, port and credentials"),
		)
		return result, err
	}
	m.markChecked()
	return result, nil
}

func (m *Manager) tick(ctx context.Context, logger *slog.Logger) (CheckResult, error) {
	var result CheckResult
	if m.dialer == nil || !m.configured {
		return result, ErrNotConfigured
	}

	session, err := m.dialer.Dial(ctx)
	if err != nil {
		return result, fmt.Errorf("connect mailbox: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			logger.Debug("mailbox close failed", logging.Error(cerr))
		}
	}()

	uids, err := session.Unseen(ctx)
	if err != nil {
		return result, err
	}
	if len(uids) > 0 {
		logger.Info("unread messages found", logging.Int("count", len(uids)))
	}

	for _, uid := range uids {
		if ctx.Err() != nil {
			break
		}
		msgLogger := logger.With(logging.MessageUID(uid))
		result.Processed++

		raw, err := session.Fetch(ctx, uid)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("uid %d: %v", uid, err))
			m.recordOutcome(ingest.OutcomeFailed)
			logging.WarnWithContext(msgLogger, "message fetch failed", "message_fetch_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "message stays unread and is retried next tick"),
			)
			continue
		}

		res := m.processor.Process(ctx, raw)
		m.recordOutcome(res.Outcome)
		switch res.Outcome {
		case ingest.OutcomeSucceeded:
			result.Succeeded++
		case ingest.OutcomeSkipped:
			result.Skipped++
		default:
			result.Failed++
			result.Errors = append(result.Errors, res.Summary())
		}

		if !res.IsSuccessOrSkip() {
			continue
		}
		if err := session.MarkSeen(ctx, uid); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("uid %d: %v", uid, err))
			logging.WarnWithContext(msgLogger, "mark seen failed", "mark_seen_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "message is fetched again next tick and skipped as a duplicate"),
			)
		}
	}
	return result, nil
}
