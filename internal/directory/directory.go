package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"liftmail/internal/store"
)

// ErrUserExists is returned by CreateUserFromEmail when the email is taken.
var ErrUserExists = errors.New("user already exists")

// Competition status values.
const (
	StatusUpcoming   = "upcoming"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Enrollment placeholders the athlete corrects later through their profile.
const (
	PlaceholderWeightClass = "Open"
	PlaceholderGender      = "Unspecified"
	EnrollmentStatus       = "registered"
)

// Competition is the subset of competition data the pipeline needs.
type Competition struct {
	ID              string
	Name            string
	Status          string
	StartDate       time.Time
	DefaultLiftType string
}

// NewCompetition describes a competition to seed.
type NewCompetition struct {
	Name            string
	Status          string
	StartDate       time.Time
	DefaultLiftType string
}

// Directory resolves users and competitions in the shared SQLite database.
type Directory struct {
	db           *sql.DB
	now          func() time.Time
	fallbackLift string
}

// Option configures a Directory.
type Option func(*Directory)

// WithClock overrides the time source used for created_at values.
func WithClock(now func() time.Time) Option {
	return func(d *Directory) {
		if now != nil {
			d.now = now
		}
	}
}

// WithFallbackLift sets the lift reported for competitions without one.
func WithFallbackLift(lift string) Option {
	return func(d *Directory) {
		if strings.TrimSpace(lift) != "" {
			d.fallbackLift = lift
		}
	}
}

// New returns a Directory over a migrated database.
func New(db *sql.DB, opts ...Option) *Directory {
	d := &Directory{db: db, now: time.Now, fallbackLift: "Snatch"}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// LookupUserByEmail finds a user by case-insensitive email.
func (d *Directory) LookupUserByEmail(ctx context.Context, email string) (string, bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", false, nil
	}
	var id string
	err := d.db.QueryRowContext(ctx, `SELECT id FROM users WHERE email = ? COLLATE NOCASE LIMIT 1`, email).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup user: %w", err)
	}
	return id, true, nil
}

// CreateUserFromEmail inserts a minimal user for email.
func (d *Directory) CreateUserFromEmail(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", errors.New("create user: email is required")
	}
	id := uuid.NewString()
	_, err := store.ExecWithRetry(ctx, d.db,
		`INSERT INTO users (id, username, email, name, auth_method, status, role, created_at)
         VALUES (?, ?, ?, ?, 'email', 'active', 'user', ?)`,
		id, email, email, DisplayName(email), store.FormatTime(d.now()),
	)
	if store.IsUniqueViolation(err) {
		return "", ErrUserExists
	}
	if err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// ResolveUser returns the user for email, creating one when absent. When a
// concurrent caller creates the same user first, the lookup is repeated.
func (d *Directory) ResolveUser(ctx context.Context, email string) (string, bool, error) {
	if id, found, err := d.LookupUserByEmail(ctx, email); err != nil || found {
		return id, false, err
	}
	id, err := d.CreateUserFromEmail(ctx, email)
	if errors.Is(err, ErrUserExists) {
		id, found, lookupErr := d.LookupUserByEmail(ctx, email)
		if lookupErr != nil {
			return "", false, lookupErr
		}
		if !found {
			return "", false, fmt.Errorf("resolve user %s: created concurrently but not visible", email)
		}
		return id, false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// ActiveCompetition returns the most recently started in-progress competition,
// or nil when there is none.
func (d *Directory) ActiveCompetition(ctx context.Context) (*Competition, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+competitionColumns+` FROM competitions
          WHERE status = ?
          ORDER BY start_date DESC
          LIMIT 1`, StatusInProgress)
	comp, err := d.scanCompetition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active competition: %w", err)
	}
	return comp, nil
}

// Enroll links a user to a competition, returning the existing link if any.
func (d *Directory) Enroll(ctx context.Context, userID, competitionID string) (string, error) {
	_, err := store.ExecWithRetry(ctx, d.db,
		`INSERT INTO user_competitions (id, user_id, competition_id, weight_class, gender, status, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (user_id, competition_id) DO NOTHING`,
		uuid.NewString(), userID, competitionID,
		PlaceholderWeightClass, PlaceholderGender, EnrollmentStatus, store.FormatTime(d.now()),
	)
	if err != nil {
		return "", fmt.Errorf("enroll: %w", err)
	}
	var id string
	err = d.db.QueryRowContext(ctx,
		`SELECT id FROM user_competitions WHERE user_id = ? AND competition_id = ?`,
		userID, competitionID).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("enroll lookup: %w", err)
	}
	return id, nil
}

// CreateCompetition inserts a competition and returns it.
func (d *Directory) CreateCompetition(ctx context.Context, in NewCompetition) (*Competition, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errors.New("create competition: name is required")
	}
	status := strings.TrimSpace(in.Status)
	if status == "" {
		status = StatusUpcoming
	}
	switch status {
	case StatusUpcoming, StatusInProgress, StatusCompleted:
	default:
		return nil, fmt.Errorf("create competition: unknown status %q", status)
	}
	start := in.StartDate
	if start.IsZero() {
		start = d.now()
	}
	lift := strings.TrimSpace(in.DefaultLiftType)
	comp := &Competition{
		ID:              uuid.NewString(),
		Name:            name,
		Status:          status,
		StartDate:       start.UTC(),
		DefaultLiftType: lift,
	}
	_, err := store.ExecWithRetry(ctx, d.db,
		`INSERT INTO competitions (id, name, status, start_date, default_lift_type, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		comp.ID, comp.Name, comp.Status, store.FormatTime(comp.StartDate),
		store.NullableString(lift), store.FormatTime(d.now()),
	)
	if err != nil {
		return nil, fmt.Errorf("create competition: %w", err)
	}
	if comp.DefaultLiftType == "" {
		comp.DefaultLiftType = d.fallbackLift
	}
	return comp, nil
}

// ListCompetitions returns competitions, newest start first.
func (d *Directory) ListCompetitions(ctx context.Context) ([]Competition, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT `+competitionColumns+` FROM competitions ORDER BY start_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("list competitions: %w", err)
	}
	defer rows.Close()
	var out []Competition
	for rows.Next() {
		comp, err := d.scanCompetition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *comp)
	}
	return out, rows.Err()
}

const competitionColumns = `id, name, status, start_date, default_lift_type`

type scanner interface {
	Scan(dest ...any) error
}

func (d *Directory) scanCompetition(row scanner) (*Competition, error) {
	var (
		comp  Competition
		start string
		lift  sql.NullString
	)
	if err := row.Scan(&comp.ID, &comp.Name, &comp.Status, &start, &lift); err != nil {
		return nil, err
	}
	parsed, err := store.ParseTime(start)
	if err != nil {
		return nil, err
	}
	comp.StartDate = parsed
	comp.DefaultLiftType = strings.TrimSpace(lift.String)
	if comp.DefaultLiftType == "" {
		comp.DefaultLiftType = d.fallbackLift
	}
	return &comp, nil
}

// DisplayName derives a human name from the local part of an email address.
func DisplayName(email string) string {
	local := email
	if at := strings.Index(email, "@"); at >= 0 {
		local = email[:at]
	}
	local = strings.NewReplacer(".", " ", "_", " ").Replace(local)
	local = strings.Join(strings.Fields(local), " ")
	if local == "" {
		return email
	}
	return cases.Title(language.English).String(local)
}
