package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/devanshjainms/exitengine/internal/models"
)

func TestRuleRepository_ListEnabled(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"id", "user_id", "name", "enabled", "symbol_pattern", "exchange", "apply_to",
		"take_profit", "stop_loss", "time_conditions", "priority",
	}).AddRow(
		"rule-1", int64(42), "book profit", true, "NIFTY*", "", models.ApplyAll,
		[]byte(`{"enabled":true,"condition_type":"PERCENTAGE","value":5}`), nil, nil, 1,
	)

	mock.ExpectQuery(`SELECT .* FROM exit_rules WHERE user_id = \$1 AND enabled = true`).
		WithArgs(int64(42)).
		WillReturnRows(rows)

	repo := NewRuleRepository(db)
	rules, err := repo.ListEnabled(context.Background(), 42)
	if err != nil {
		t.Fatalf("ListEnabled: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}
	if rules[0].ID != "rule-1" {
		t.Errorf("ID = %q, want rule-1", rules[0].ID)
	}
	if rules[0].TakeProfit == nil || rules[0].TakeProfit.Value != 5 {
		t.Errorf("TakeProfit not unmarshalled correctly: %+v", rules[0].TakeProfit)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRuleRepository_GetByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM exit_rules WHERE id = \$1 AND user_id = \$2`).
		WithArgs("missing", int64(1)).
		WillReturnError(sql.ErrNoRows)

	repo := NewRuleRepository(db)
	_, err = repo.GetByID(context.Background(), 1, "missing")
	if !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound, got %v", err)
	}
}

func TestRuleRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO exit_rules`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("new-id"))

	repo := NewRuleRepository(db)
	rule := &models.ExitRule{
		Name:          "stop loss everything",
		Enabled:       true,
		SymbolPattern: "*",
		ApplyTo:       models.ApplyAll,
		StopLoss:      &models.PriceCondition{Enabled: true, ConditionType: models.ConditionPercentage, Value: 2},
		Priority:      1,
	}
	id, err := repo.Create(context.Background(), 42, rule)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != "new-id" {
		t.Errorf("id = %q, want new-id", id)
	}
}

func TestRuleRepository_Update_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE exit_rules SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewRuleRepository(db)
	err = repo.Update(context.Background(), 42, "rule-1", &models.ExitRule{})
	if !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound, got %v", err)
	}
}

func TestRuleRepository_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`DELETE FROM exit_rules WHERE id = \$1 AND user_id = \$2`).
		WithArgs("rule-1", int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewRuleRepository(db)
	if err := repo.Delete(context.Background(), 42, "rule-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}
