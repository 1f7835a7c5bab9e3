package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/devanshjainms/exitengine/internal/models"
)

// ErrSessionNotFound is returned when a session lookup matches no row.
var ErrSessionNotFound = errors.New("repository: session not found")

// SessionRepository persists refresh-token-backed login Sessions.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository builds a SessionRepository over db.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session for userID, valid until expiresAt, and
// returns it with a generated ID and refresh token.
func (r *SessionRepository) Create(ctx context.Context, userID int64, refreshToken string, expiresAt time.Time) (*models.Session, error) {
	s := &models.Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}
	const query = `
		INSERT INTO sessions (id, user_id, refresh_token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING created_at`
	err := r.db.QueryRowContext(ctx, query, s.ID, s.UserID, s.RefreshToken, s.ExpiresAt).Scan(&s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByRefreshToken returns the session matching token, if it hasn't
// expired. Returns ErrSessionNotFound both when no row matches and when
// the matching row has expired, so callers can't distinguish the two and
// accidentally leak which refresh tokens once existed.
func (r *SessionRepository) GetByRefreshToken(ctx context.Context, token string) (*models.Session, error) {
	const query = `
		SELECT id, user_id, refresh_token, expires_at, created_at
		FROM sessions
		WHERE refresh_token = $1 AND expires_at > now()`
	s := &models.Session{}
	err := r.db.QueryRowContext(ctx, query, token).
		Scan(&s.ID, &s.UserID, &s.RefreshToken, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Delete removes one session by ID, used on logout.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM sessions WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return requireRowAffected(res, ErrSessionNotFound)
}

// DeleteExpiredSessions satisfies engine.SessionPruner, removing every
// session past its expiry. Returns the number of rows removed.
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	const query = `DELETE FROM sessions WHERE expires_at <= now()`
	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
