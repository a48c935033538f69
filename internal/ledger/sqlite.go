package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"liftmail/internal/store"
)

// SQLite is the default ledger backed by the shared SQLite database.
// Atomicity comes from the UNIQUE constraints on fingerprint and message_id.
type SQLite struct {
	db   *sql.DB
	opts options
}

// NewSQLite returns a ledger over db. The schema must already be migrated.
func NewSQLite(db *sql.DB, opts ...Option) *SQLite {
	return &SQLite{db: db, opts: applyOptions(opts)}
}

func (s *SQLite) Reserve(ctx context.Context, key Key) (Reservation, error) {
	if err := validateKey(key); err != nil {
		return Reservation{}, err
	}
	now := s.opts.now()
	stamp := store.FormatTime(now)
	id := uuid.NewString()

	res, err := store.ExecWithRetry(ctx, s.db,
		`INSERT INTO email_processing (
            id, fingerprint, message_id, sender, subject, status, attempts, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
        ON CONFLICT DO NOTHING`,
		id, key.Fingerprint, store.NullableString(key.MessageID), key.Sender, key.Subject,
		StatusProcessing, stamp, stamp,
	)
	if err != nil {
		return Reservation{}, fmt.Errorf("insert processing record: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 1 {
		return Reservation{ShouldProcess: true, RecordID: id, Attempt: 1}, nil
	}

	existing, err := s.findExisting(ctx, key)
	if err != nil {
		return Reservation{}, err
	}
	out := Reservation{RecordID: existing.ID, PriorStatus: existing.Status}
	if !decide(existing.Status, existing.UpdatedAt, now, s.opts.window) {
		return out, nil
	}

	cutoff := store.FormatTime(now.Add(-s.opts.window))
	var attempt int
	err = store.RetryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			`UPDATE email_processing
                SET status = ?, error = NULL, attempts = attempts + 1, updated_at = ?
              WHERE id = ?
                AND (status = ? OR (status = ? AND updated_at <= ?))
          RETURNING attempts`,
			StatusProcessing, stamp, existing.ID, StatusFailed, StatusProcessing, cutoff,
		).Scan(&attempt)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return out, nil
	}
	if err != nil {
		return Reservation{}, fmt.Errorf("reclaim processing record: %w", err)
	}
	out.ShouldProcess = true
	out.Reclaimed = true
	out.Attempt = attempt
	return out, nil
}

func (s *SQLite) findExisting(ctx context.Context, key Key) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM email_processing
          WHERE fingerprint = ? OR (? <> '' AND message_id = ?)
          ORDER BY fingerprint = ? DESC
          LIMIT 1`,
		key.Fingerprint, key.MessageID, key.MessageID, key.Fingerprint,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reserve: conflicting record for %s vanished", key.Fingerprint)
	}
	return rec, err
}

func (s *SQLite) Finalize(ctx context.Context, lease Lease, status Status, errMsg string) error {
	if err := validateFinal(status); err != nil {
		return err
	}
	res, err := store.ExecWithRetry(ctx, s.db,
		`UPDATE email_processing
            SET status = ?, error = ?, updated_at = ?
          WHERE id = ? AND status = ? AND attempts = ?`,
		status, store.NullableString(errMsg), store.FormatTime(s.opts.now()),
		lease.RecordID, StatusProcessing, lease.Attempt,
	)
	if err != nil {
		return fmt.Errorf("finalize processing record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finalize processing record: %w", err)
	}
	if affected == 1 {
		return nil
	}
	if _, err := s.Get(ctx, lease.RecordID); err != nil {
		return err
	}
	return ErrLeaseLost
}

func (s *SQLite) Get(ctx context.Context, recordID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM email_processing WHERE id = ?`, recordID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func (s *SQLite) List(ctx context.Context, limit int, statuses ...Status) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM email_processing`
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, st := range statuses {
			placeholders[i] = "?"
			args = append(args, st)
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY updated_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list processing records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// Close is a no-op; the database handle is owned by the caller.
func (s *SQLite) Close() error { return nil }

const recordColumns = `id, fingerprint, message_id, sender, subject, status, attempts, error, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec       Record
		messageID sql.NullString
		errMsg    sql.NullString
		status    string
		created   string
		updated   string
	)
	if err := row.Scan(&rec.ID, &rec.Fingerprint, &messageID, &rec.Sender, &rec.Subject,
		&status, &rec.Attempts, &errMsg, &created, &updated); err != nil {
		return nil, err
	}
	rec.MessageID = messageID.String
	rec.Error = errMsg.String
	rec.Status = Status(status)
	var err error
	if rec.CreatedAt, err = store.ParseTime(created); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = store.ParseTime(updated); err != nil {
		return nil, err
	}
	return &rec, nil
}
