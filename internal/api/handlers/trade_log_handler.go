package handlers

import (
	"net/http"
	"strconv"

	"github.com/devanshjainms/exitengine/internal/api/middleware"
	"github.com/devanshjainms/exitengine/internal/repository"
)

// TradeLogHandler serves the authenticated user's trade log history.
//
// Endpoints:
// - GET /api/v1/trade-logs - list recent trade log rows
type TradeLogHandler struct {
	logs *repository.TradeLogRepository
}

// NewTradeLogHandler builds a TradeLogHandler over logs.
func NewTradeLogHandler(logs *repository.TradeLogRepository) *TradeLogHandler {
	return &TradeLogHandler{logs: logs}
}

// ListTradeLogs returns the authenticated user's most recent trade log
// rows, newest first. The optional "limit" query parameter caps the count
// (default 100, per TradeLogRepository.ListByUser).
func (h *TradeLogHandler) ListTradeLogs(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer", "")
			return
		}
		limit = n
	}

	logs, err := h.logs.ListByUser(r.Context(), userID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list trade logs", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
