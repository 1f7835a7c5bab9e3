package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/devanshjainms/exitengine/internal/api/middleware"
	"github.com/devanshjainms/exitengine/internal/broker"
	"github.com/devanshjainms/exitengine/internal/models"
	"github.com/devanshjainms/exitengine/internal/repository"
	"github.com/devanshjainms/exitengine/pkg/cryptoutil"
)

// BrokerAccountHandler manages the authenticated user's linked broker
// accounts. Credentials are encrypted at rest with cryptoutil before ever
// reaching the repository layer.
//
// Endpoints:
// - GET    /api/v1/brokers          - list linked broker accounts
// - POST   /api/v1/brokers/{id}/link   - link or refresh a broker account
// - DELETE /api/v1/brokers/{id}/link   - unlink a broker account
type BrokerAccountHandler struct {
	accounts *repository.BrokerAccountRepository
	factory  *broker.Factory
	cipher   *cryptoutil.CredentialCipher
}

// NewBrokerAccountHandler builds a BrokerAccountHandler.
func NewBrokerAccountHandler(accounts *repository.BrokerAccountRepository, factory *broker.Factory, cipher *cryptoutil.CredentialCipher) *BrokerAccountHandler {
	return &BrokerAccountHandler{accounts: accounts, factory: factory, cipher: cipher}
}

// brokerAccountResponse omits every credential field; BrokerAccount itself
// already json:"-" tags them, so this only exists to make that guarantee
// explicit at the handler boundary.
type brokerAccountResponse struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"user_id"`
	BrokerID       string     `json:"broker_id"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func toBrokerAccountResponse(a *models.BrokerAccount) brokerAccountResponse {
	return brokerAccountResponse{
		ID: a.ID, UserID: a.UserID, BrokerID: a.BrokerID,
		TokenExpiresAt: a.TokenExpiresAt, IsActive: a.IsActive,
		CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt,
	}
}

// ListBrokerAccounts returns the authenticated user's linked broker accounts.
func (h *BrokerAccountHandler) ListBrokerAccounts(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	accounts, err := h.accounts.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list broker accounts", err.Error())
		return
	}
	out := make([]brokerAccountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toBrokerAccountResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

// linkBrokerRequest carries plaintext credentials exchanged with the
// broker out-of-band (an OAuth flow or an API key entered in the UI); this
// handler is the only place in the process that ever sees them unencrypted.
type linkBrokerRequest struct {
	APIKey       string     `json:"api_key"`
	APISecret    string     `json:"api_secret"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// LinkBrokerAccount encrypts and upserts the broker account identified by
// the {id} path segment (the broker name, e.g. "kite"), then invalidates
// any cached client so the next engine start picks up the new credentials.
func (h *BrokerAccountHandler) LinkBrokerAccount(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	brokerID := mux.Vars(r)["id"]

	var req linkBrokerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body", err.Error())
		return
	}
	if req.APIKey == "" || req.AccessToken == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials", "api_key and access_token are required", "")
		return
	}

	encAPIKey, err := h.cipher.Encrypt(req.APIKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encryption_failed", "failed to encrypt credentials", err.Error())
		return
	}
	encAPISecret, _ := h.cipher.Encrypt(req.APISecret)
	encAccessToken, err := h.cipher.Encrypt(req.AccessToken)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encryption_failed", "failed to encrypt credentials", err.Error())
		return
	}
	encRefreshToken, _ := h.cipher.Encrypt(req.RefreshToken)

	account := &models.BrokerAccount{
		UserID:         userID,
		BrokerID:       brokerID,
		APIKey:         encAPIKey,
		APISecret:      encAPISecret,
		AccessToken:    encAccessToken,
		RefreshToken:   encRefreshToken,
		TokenExpiresAt: req.ExpiresAt,
		IsActive:       true,
	}

	if err := h.accounts.Upsert(r.Context(), account); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to link broker account", err.Error())
		return
	}
	h.factory.Invalidate(userID, brokerID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "linked", "broker_id": brokerID})
}

// UnlinkBrokerAccount deactivates the broker account identified by {id} and
// drops any cached client for it.
func (h *BrokerAccountHandler) UnlinkBrokerAccount(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	brokerID := mux.Vars(r)["id"]

	if err := h.accounts.Deactivate(r.Context(), userID, brokerID); err != nil {
		writeError(w, http.StatusNotFound, "broker_account_not_found", "broker account not found", "")
		return
	}
	h.factory.Invalidate(userID, brokerID)
	w.WriteHeader(http.StatusNoContent)
}
