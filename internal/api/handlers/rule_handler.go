package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/devanshjainms/exitengine/internal/api/middleware"
	"github.com/devanshjainms/exitengine/internal/models"
	"github.com/devanshjainms/exitengine/internal/repository"
	"github.com/devanshjainms/exitengine/pkg/validator"
)

// RuleHandler manages the authenticated user's ExitRule set.
//
// Endpoints:
// - GET    /api/v1/rules      - list the caller's rules
// - POST   /api/v1/rules      - create a rule
// - GET    /api/v1/rules/{id} - fetch one rule
// - PUT    /api/v1/rules/{id} - replace one rule
// - DELETE /api/v1/rules/{id} - delete one rule
type RuleHandler struct {
	rules *repository.RuleRepository
}

// NewRuleHandler builds a RuleHandler over rules.
func NewRuleHandler(rules *repository.RuleRepository) *RuleHandler {
	return &RuleHandler{rules: rules}
}

// ruleRequest is the wire shape for create/update, decoded straight into
// the fields ValidateExitRule checks.
type ruleRequest struct {
	Name           string                 `json:"name"`
	Enabled        bool                   `json:"enabled"`
	SymbolPattern  string                 `json:"symbol_pattern"`
	Exchange       string                 `json:"exchange"`
	ApplyTo        models.ApplyTo         `json:"apply_to"`
	TakeProfit     *models.PriceCondition `json:"take_profit,omitempty"`
	StopLoss       *models.PriceCondition `json:"stop_loss,omitempty"`
	TimeConditions *models.TimeCondition  `json:"time_conditions,omitempty"`
	Priority       int                    `json:"priority"`
}

func (req ruleRequest) toModel() *models.ExitRule {
	return &models.ExitRule{
		Name:           req.Name,
		Enabled:        req.Enabled,
		SymbolPattern:  req.SymbolPattern,
		Exchange:       req.Exchange,
		ApplyTo:        req.ApplyTo,
		TakeProfit:     req.TakeProfit,
		StopLoss:       req.StopLoss,
		TimeConditions: req.TimeConditions,
		Priority:       req.Priority,
	}
}

// ListRules returns every rule owned by the authenticated user.
func (h *RuleHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	rules, err := h.rules.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list rules", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

// CreateRule validates and persists a new rule for the authenticated user.
func (h *RuleHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body", err.Error())
		return
	}

	rule := req.toModel()
	if err := validator.ValidateExitRule(rule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_rule", err.Error(), "")
		return
	}

	id, err := h.rules.Create(r.Context(), userID, rule)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create rule", err.Error())
		return
	}
	rule.ID = id
	writeJSON(w, http.StatusCreated, rule)
}

// GetRule returns one rule owned by the authenticated user.
func (h *RuleHandler) GetRule(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	id := mux.Vars(r)["id"]

	rule, err := h.rules.GetByID(r.Context(), userID, id)
	if err != nil {
		h.handleRepoError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// UpdateRule replaces one rule owned by the authenticated user.
func (h *RuleHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	id := mux.Vars(r)["id"]

	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body", err.Error())
		return
	}

	rule := req.toModel()
	if err := validator.ValidateExitRule(rule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_rule", err.Error(), "")
		return
	}

	if err := h.rules.Update(r.Context(), userID, id, rule); err != nil {
		h.handleRepoError(w, err)
		return
	}
	rule.ID = id
	writeJSON(w, http.StatusOK, rule)
}

// DeleteRule removes one rule owned by the authenticated user.
func (h *RuleHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	id := mux.Vars(r)["id"]

	if err := h.rules.Delete(r.Context(), userID, id); err != nil {
		h.handleRepoError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RuleHandler) handleRepoError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrRuleNotFound):
		writeError(w, http.StatusNotFound, "rule_not_found", "rule not found", "")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", err.Error())
	}
}
