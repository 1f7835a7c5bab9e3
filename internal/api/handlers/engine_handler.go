package handlers

import (
	"errors"
	"net/http"

	"github.com/devanshjainms/exitengine/internal/api/middleware"
	"github.com/devanshjainms/exitengine/internal/engine"
)

// EngineHandler controls and reports on the authenticated user's Engine
// Supervisor instance.
//
// Endpoints:
// - POST /api/v1/engine/start  - start the caller's engine
// - POST /api/v1/engine/stop   - stop the caller's engine
// - GET  /api/v1/engine/status - report running state and activity counts
// - GET  /api/v1/engine/trades - list currently tracked ActiveTrades
type EngineHandler struct {
	sup *engine.Supervisor
}

// NewEngineHandler builds an EngineHandler over sup.
func NewEngineHandler(sup *engine.Supervisor) *EngineHandler {
	return &EngineHandler{sup: sup}
}

// StartEngine starts the authenticated user's engine, if not already running.
func (h *EngineHandler) StartEngine(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	if err := h.sup.Start(r.Context(), userID); err != nil {
		if errors.Is(err, engine.ErrNotConfigured) {
			writeError(w, http.StatusConflict, "broker_not_configured", "no active broker account configured", "")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to start engine", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, engineStatusResponse(h.sup.Status(userID)))
}

// StopEngine stops the authenticated user's engine, if running.
func (h *EngineHandler) StopEngine(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	if err := h.sup.Stop(userID); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to stop engine", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EngineStatus reports the authenticated user's current engine state.
func (h *EngineHandler) EngineStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	writeJSON(w, http.StatusOK, engineStatusResponse(h.sup.Status(userID)))
}

// EngineTrades lists the ActiveTrades currently tracked by the authenticated
// user's engine.
func (h *EngineHandler) EngineTrades(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	writeJSON(w, http.StatusOK, h.sup.ActiveTrades(userID))
}

type statusResponse struct {
	Running            bool `json:"running"`
	ActiveTradesCount  int  `json:"active_trades_count"`
	PositionsMonitored int  `json:"positions_monitored"`
	RulesLoaded        int  `json:"rules_loaded"`
	TickerConnected    bool `json:"ticker_connected"`
}

func engineStatusResponse(s engine.Status) statusResponse {
	return statusResponse{
		Running:            s.Running,
		ActiveTradesCount:  s.ActiveTradesCount,
		PositionsMonitored: s.PositionsMonitored,
		RulesLoaded:        s.RulesLoaded,
		TickerConnected:    s.TickerConnected,
	}
}
