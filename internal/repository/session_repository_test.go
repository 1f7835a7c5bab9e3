package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSessionRepository_GetByRefreshToken_ExpiredOrMissingBothNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM sessions WHERE refresh_token = \$1 AND expires_at > now\(\)`).
		WithArgs("stale-token").
		WillReturnError(sql.ErrNoRows)

	repo := NewSessionRepository(db)
	_, err = repo.GetByRefreshToken(context.Background(), "stale-token")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO sessions`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	repo := NewSessionRepository(db)
	s, err := repo.Create(context.Background(), 42, "refresh-abc", time.Now().Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s.UserID != 42 || s.RefreshToken != "refresh-abc" || s.ID == "" {
		t.Fatalf("unexpected session: %+v", s)
	}
}

func TestSessionRepository_DeleteExpiredSessions(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`DELETE FROM sessions WHERE expires_at <= now\(\)`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	repo := NewSessionRepository(db)
	n, err := repo.DeleteExpiredSessions(context.Background())
	if err != nil {
		t.Fatalf("DeleteExpiredSessions: %v", err)
	}
	if n != 3 {
		t.Errorf("n = %d, want 3", n)
	}
}

func TestSessionRepository_Delete_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`DELETE FROM sessions WHERE id = \$1`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewSessionRepository(db)
	if err := repo.Delete(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
