package handlers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/devanshjainms/exitengine/internal/models"
	"github.com/devanshjainms/exitengine/internal/repository"
	"github.com/devanshjainms/exitengine/pkg/cryptoutil"
)

// AuthHandler issues and revokes the JWT/refresh-token pairs the rest of
// the API authenticates with.
//
// Endpoints:
// - POST /api/v1/auth/signup  - create a platform account
// - POST /api/v1/auth/login   - exchange credentials for a token pair
// - POST /api/v1/auth/refresh - exchange a refresh token for a new pair
// - POST /api/v1/auth/logout  - revoke a refresh token
type AuthHandler struct {
	users      *repository.UserRepository
	sessions   *repository.SessionRepository
	jwtSecret  string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewAuthHandler builds an AuthHandler.
func NewAuthHandler(users *repository.UserRepository, sessions *repository.SessionRepository, jwtSecret string, accessTTL, refreshTTL time.Duration) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions, jwtSecret: jwtSecret, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

type authClaims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

type tokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (h *AuthHandler) issueTokenPair(ctx context.Context, userID int64) (tokenPairResponse, error) {
	now := time.Now()
	claims := authClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(h.accessTTL)),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.jwtSecret))
	if err != nil {
		return tokenPairResponse{}, err
	}

	refresh, err := generateRefreshToken()
	if err != nil {
		return tokenPairResponse{}, err
	}
	if _, err := h.sessions.Create(ctx, userID, refresh, now.Add(h.refreshTTL)); err != nil {
		return tokenPairResponse{}, err
	}

	return tokenPairResponse{AccessToken: access, RefreshToken: refresh, ExpiresIn: int64(h.accessTTL.Seconds())}, nil
}

func generateRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TimeZone string `json:"time_zone,omitempty"`
}

// Signup creates a new platform account and returns a token pair.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body", err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_fields", "email and password are required", "")
		return
	}

	hash, err := cryptoutil.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_password", err.Error(), "")
		return
	}

	user := &models.User{Email: req.Email, PasswordHash: hash, TimeZone: req.TimeZone}
	if err := h.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "email_taken", "email already registered", "")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create user", err.Error())
		return
	}

	pair, err := h.issueTokenPair(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to issue tokens", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, pair)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies credentials and returns a fresh token pair.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body", err.Error())
		return
	}

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password", "")
		return
	}
	if err := cryptoutil.VerifyPassword(req.Password, user.PasswordHash); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password", "")
		return
	}

	pair, err := h.issueTokenPair(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to issue tokens", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges a valid, unexpired refresh token for a new token pair,
// revoking the old refresh token (single-use rotation).
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body", err.Error())
		return
	}

	session, err := h.sessions.GetByRefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_refresh_token", "refresh token is invalid or expired", "")
		return
	}

	pair, err := h.issueTokenPair(r.Context(), session.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to issue tokens", err.Error())
		return
	}
	_ = h.sessions.Delete(r.Context(), session.ID)
	writeJSON(w, http.StatusOK, pair)
}

// Logout revokes a refresh token, ending that session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body", err.Error())
		return
	}

	session, err := h.sessions.GetByRefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	_ = h.sessions.Delete(r.Context(), session.ID)
	w.WriteHeader(http.StatusNoContent)
}
