package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/devanshjainms/exitengine/internal/models"
)

// ErrUserNotFound is returned when a user lookup matches no row.
var ErrUserNotFound = errors.New("repository: user not found")

// ErrEmailTaken is returned by Create when the email column's unique
// constraint rejects the insert.
var ErrEmailTaken = errors.New("repository: email already registered")

// UserRepository persists platform User accounts.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository builds a UserRepository over db.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetTimeZone satisfies engine.UserStore, used by the Engine Supervisor to
// resolve the IANA zone TimeCondition comparisons run in. Returns "" with
// no error for an unknown user, so callers fall back to the default zone
// rather than failing the whole engine start.
func (r *UserRepository) GetTimeZone(ctx context.Context, userID int64) (string, error) {
	const query = `SELECT time_zone FROM users WHERE id = $1`
	var tz string
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&tz)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return tz, err
}

// GetByEmail returns the user with the given email, or ErrUserNotFound.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `SELECT id, email, password_hash, time_zone, created_at, updated_at FROM users WHERE email = $1`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// GetByID returns the user with the given ID, or ErrUserNotFound.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	const query = `SELECT id, email, password_hash, time_zone, created_at, updated_at FROM users WHERE id = $1`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// Create inserts a new user with an already-hashed password, defaulting
// TimeZone to Asia/Kolkata when the caller leaves it blank.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	if u.TimeZone == "" {
		u.TimeZone = "Asia/Kolkata"
	}
	const query = `
		INSERT INTO users (email, password_hash, time_zone, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query, u.Email, u.PasswordHash, u.TimeZone).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.TimeZone, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// isUniqueViolation recognizes lib/pq's unique_violation SQLSTATE (23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
