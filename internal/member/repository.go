package member

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// Repository defines the interface for member persistence operations.
type Repository interface {
	Create(ctx context.Context, m *Member) error
	Get(ctx context.Context, id string) (*Member, error)
	GetByFingerprint(ctx context.Context, fingerID int) (*Member, error)
	List(ctx context.Context) ([]Member, error)
	AssignFingerprint(ctx context.Context, id string, fingerID *int) error
	IsFingerprintBound(ctx context.Context, fingerID int) (bool, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed member repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const memberColumns = `id, first_name, last_name, fingerprint_id, created_at, updated_at`

// Create inserts a member. An empty ID is filled with a new UUID.
func (r *SQLiteRepository) Create(ctx context.Context, m *Member) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now

	const query = `INSERT INTO members (` + memberColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.FirstName, m.LastName, nullInt(m.FingerprintID),
		formatTime(now), formatTime(now))
	if err != nil {
		if isUniqueViolation(err) && m.FingerprintID != nil {
			return fmt.Errorf("%w: slot %d", ErrFingerprintInUse, *m.FingerprintID)
		}
		return fmt.Errorf("inserting member %s: %w", m.ID, err)
	}
	return nil
}

// Get returns a member by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Member, error) {
	const query = `SELECT ` + memberColumns + ` FROM members WHERE id = ?`
	return scanMember(r.db.QueryRowContext(ctx, query, id))
}

// GetByFingerprint returns the member holding fingerID.
func (r *SQLiteRepository) GetByFingerprint(ctx context.Context, fingerID int) (*Member, error) {
	const query = `SELECT ` + memberColumns + ` FROM members WHERE fingerprint_id = ? LIMIT 1`
	return scanMember(r.db.QueryRowContext(ctx, query, fingerID))
}

// List returns all members ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Member, error) {
	const query = `SELECT ` + memberColumns + ` FROM members ORDER BY first_name, last_name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating members: %w", err)
	}
	return members, nil
}

// AssignFingerprint sets or, with nil, clears a member's fingerprint slot.
func (r *SQLiteRepository) AssignFingerprint(ctx context.Context, id string, fingerID *int) error {
	if fingerID != nil && *fingerID <= 0 {
		return fmt.Errorf("%w: fingerprint id must be positive", ErrInvalidMember)
	}
	const query = `UPDATE members SET fingerprint_id = ?, updated_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, nullInt(fingerID), formatTime(time.Now().UTC()), id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: slot %d", ErrFingerprintInUse, *fingerID)
		}
		return fmt.Errorf("updating member %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// IsFingerprintBound reports whether any member holds fingerID.
// Satisfies fingerprint.BindingChecker.
func (r *SQLiteRepository) IsFingerprintBound(ctx context.Context, fingerID int) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM members WHERE fingerprint_id = ?)`
	var bound bool
	if err := r.db.QueryRowContext(ctx, query, fingerID).Scan(&bound); err != nil {
		return false, fmt.Errorf("checking fingerprint %d: %w", fingerID, err)
	}
	return bound, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanMember(row scanner) (*Member, error) {
	var (
		m                    Member
		fingerID             sql.NullInt64
		createdAt, updatedAt string
	)
	err := row.Scan(&m.ID, &m.FirstName, &m.LastName, &fingerID, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("scanning member: %w", err)
	}
	if fingerID.Valid {
		id := int(fingerID.Int64)
		m.FingerprintID = &id
	}
	m.CreatedAt = parseTime(createdAt)
	m.UpdatedAt = parseTime(updatedAt)
	return &m, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

// parseTime parses an RFC3339 timestamp, returning zero time on failure.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
