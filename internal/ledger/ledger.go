package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a processing record.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status ends a processing attempt.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// ErrNotFound is returned when a record id is unknown.
var ErrNotFound = errors.New("processing record not found")

// ErrLeaseLost is returned by Finalize when the record was reclaimed by a
// later attempt or already finalized. The caller's result must be discarded.
var ErrLeaseLost = errors.New("processing lease lost")

// Key identifies an inbound message for reservation.
type Key struct {
	MessageID   string
	Fingerprint string
	Sender      string
	Subject     string
}

// Reservation is the outcome of Reserve. Attempt is the record's attempt
// counter after a successful claim and zero otherwise.
type Reservation struct {
	ShouldProcess bool
	RecordID      string
	Attempt       int
	Reclaimed     bool
	PriorStatus   Status
}

// Lease identifies one claimed attempt on a record.
type Lease struct {
	RecordID string
	Attempt  int
}

// Lease returns the claim Finalize must present.
func (r Reservation) Lease() Lease {
	return Lease{RecordID: r.RecordID, Attempt: r.Attempt}
}

// Record is a stored processing record.
type Record struct {
	ID          string
	MessageID   string
	Fingerprint string
	Sender      string
	Subject     string
	Status      Status
	Attempts    int
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Ledger reserves inbound messages so each one is processed at most once
// across every instance sharing the backend.
type Ledger interface {
	Reserve(ctx context.Context, key Key) (Reservation, error)
	// Finalize moves a processing record to a terminal status only while lease
	// is the record's current attempt.
	Finalize(ctx context.Context, lease Lease, status Status, errMsg string) error
	Get(ctx context.Context, recordID string) (*Record, error)
	List(ctx context.Context, limit int, statuses ...Status) ([]Record, error)
	Close() error
}

const (
	maxSenderBytes  = 320
	maxSubjectBytes = 512
	maxDateBytes    = 128
	maxBodyBytes    = 2048
)

// Fingerprint derives the content hash used as the idempotency key.
func Fingerprint(sender, subject, date, body string) string {
	h := sha256.New()
	h.Write([]byte(truncate(sender, maxSenderBytes)))
	h.Write([]byte{0})
	h.Write([]byte(truncate(subject, maxSubjectBytes)))
	h.Write([]byte{0})
	h.Write([]byte(truncate(date, maxDateBytes)))
	h.Write([]byte{0})
	h.Write([]byte(truncate(body, maxBodyBytes)))
	return hex.EncodeToString(h.Sum(nil))
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}

func validateKey(key Key) error {
	if key.Fingerprint == "" {
		return errors.New("reserve: fingerprint is required")
	}
	return nil
}

func validateFinal(status Status) error {
	if !status.Terminal() {
		return fmt.Errorf("finalize: status %q is not terminal", status)
	}
	return nil
}

// Option configures a ledger backend.
type Option func(*options)

type options struct {
	now    func() time.Time
	window time.Duration
}

func defaultOptions() options {
	return options{now: time.Now, window: 15 * time.Minute}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithDedupeWindow sets how long a processing record blocks other claimants.
func WithDedupeWindow(window time.Duration) Option {
	return func(o *options) {
		if window > 0 {
			o.window = window
		}
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// decide applies the reclaim policy to an existing record. It reports whether
// the caller may attempt the conditional flip back to processing.
func decide(status Status, updatedAt, now time.Time, window time.Duration) bool {
	switch status {
	case StatusSucceeded:
		return false
	case StatusProcessing:
		return !updatedAt.After(now.Add(-window))
	default:
		return true
	}
}

func filterStatuses(statuses []Status) map[Status]bool {
	if len(statuses) == 0 {
		return nil
	}
	set := make(map[Status]bool, len(statuses))
	for _, s := range statuses {
		set[s] = true
	}
	return set
}
