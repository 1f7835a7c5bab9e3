package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"

	"github.com/devanshjainms/exitengine/internal/models"
	"github.com/devanshjainms/exitengine/internal/repository"
)

func withRuleHandler(t *testing.T) (*RuleHandler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	repo := repository.NewRuleRepository(db)
	return NewRuleHandler(repo), mock, func() { db.Close() }
}

func TestRuleHandler_CreateRule_InvalidRule(t *testing.T) {
	h, _, done := withRuleHandler(t)
	defer done()

	body, _ := json.Marshal(ruleRequest{Name: "", SymbolPattern: "NIFTY*"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rules", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.CreateRule(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty rule name, got %d", w.Code)
	}
}

func TestRuleHandler_GetRule_RepositoryError(t *testing.T) {
	h, mock, done := withRuleHandler(t)
	defer done()

	mock.ExpectQuery(`SELECT .* FROM exit_rules WHERE id = \$1 AND user_id = \$2`).
		WithArgs("missing", int64(0)).
		WillReturnError(errors.New("connection reset"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rules/missing", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "missing"})
	w := httptest.NewRecorder()

	h.GetRule(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on repository error, got %d", w.Code)
	}
}

func TestRuleHandler_DeleteRule_NotFound(t *testing.T) {
	h, mock, done := withRuleHandler(t)
	defer done()

	mock.ExpectExec(`DELETE FROM exit_rules WHERE id = \$1 AND user_id = \$2`).
		WithArgs("rule-1", int64(0)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/rules/rule-1", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "rule-1"})
	w := httptest.NewRecorder()

	h.DeleteRule(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for ErrRuleNotFound, got %d", w.Code)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Code != "rule_not_found" {
		t.Errorf("code = %q, want rule_not_found", resp.Code)
	}
}

func TestRuleRequest_ToModel(t *testing.T) {
	req := ruleRequest{
		Name:          "square off",
		Enabled:       true,
		SymbolPattern: "BANKNIFTY*",
		ApplyTo:       models.ApplyLong,
		TakeProfit:    &models.PriceCondition{Enabled: true, ConditionType: models.ConditionPercentage, Value: 3},
		Priority:      2,
	}
	rule := req.toModel()
	if rule.Name != req.Name || rule.Priority != 2 || rule.TakeProfit.Value != 3 {
		t.Errorf("toModel did not copy fields: %+v", rule)
	}
}
