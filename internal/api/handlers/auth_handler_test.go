package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/devanshjainms/exitengine/internal/repository"
	"github.com/devanshjainms/exitengine/pkg/cryptoutil"
)

func withAuthHandler(t *testing.T) (*AuthHandler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	users := repository.NewUserRepository(db)
	sessions := repository.NewSessionRepository(db)
	h := NewAuthHandler(users, sessions, "test-jwt-secret", 15*time.Minute, 30*24*time.Hour)
	return h, mock, func() { db.Close() }
}

func TestAuthHandler_Signup_MissingFields(t *testing.T) {
	h, _, done := withAuthHandler(t)
	defer done()

	body, _ := json.Marshal(signupRequest{Email: "", Password: ""})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Signup(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing email/password, got %d", w.Code)
	}
}

func TestAuthHandler_Signup_EmailTaken(t *testing.T) {
	h, mock, done := withAuthHandler(t)
	defer done()

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	body, _ := json.Marshal(signupRequest{Email: "trader@example.com", Password: "hunter2hunter2"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Signup(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a duplicate email, got %d", w.Code)
	}
}

func TestAuthHandler_Login_UnknownEmail(t *testing.T) {
	h, mock, done := withAuthHandler(t)
	defer done()

	mock.ExpectQuery(`SELECT .* FROM users WHERE email = \$1`).
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	body, _ := json.Marshal(loginRequest{Email: "nobody@example.com", Password: "whatever"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for an unknown email, got %d", w.Code)
	}
}

func TestAuthHandler_Refresh_InvalidToken(t *testing.T) {
	h, mock, done := withAuthHandler(t)
	defer done()

	mock.ExpectQuery(`SELECT .* FROM sessions WHERE refresh_token = \$1`).
		WithArgs("bogus-token").
		WillReturnError(sql.ErrNoRows)

	body, _ := json.Marshal(refreshRequest{RefreshToken: "bogus-token"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Refresh(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for an invalid refresh token, got %d", w.Code)
	}
}

func TestGenerateRefreshToken_Unique(t *testing.T) {
	a, err := generateRefreshToken()
	if err != nil {
		t.Fatalf("generateRefreshToken: %v", err)
	}
	b, err := generateRefreshToken()
	if err != nil {
		t.Fatalf("generateRefreshToken: %v", err)
	}
	if a == b {
		t.Fatal("expected two distinct refresh tokens")
	}
}

func TestHashPasswordRoundTrip(t *testing.T) {
	hash, err := cryptoutil.HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := cryptoutil.VerifyPassword("correct horse battery staple", hash); err != nil {
		t.Fatalf("VerifyPassword rejected the correct password: %v", err)
	}
	if err := cryptoutil.VerifyPassword("wrong password", hash); err == nil {
		t.Fatal("VerifyPassword accepted an incorrect password")
	}
}
