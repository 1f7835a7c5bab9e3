package validator

import (
	"testing"

	"github.com/devanshjainms/exitengine/internal/models"
)

func TestValidateSymbolPattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		wantErr bool
	}{
		{"exact symbol", "NIFTY25JAN23000CE", false},
		{"trailing wildcard", "NIFTY*", false},
		{"single char wildcard", "NIFTY2?JAN", false},
		{"empty pattern", "", true},
		{"whitespace only", "   ", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSymbolPattern(tt.pattern)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSymbolPattern(%q) error = %v, wantErr %v", tt.pattern, err, tt.wantErr)
			}
		})
	}
}

func TestValidateApplyTo(t *testing.T) {
	tests := []struct {
		name    string
		side    models.ApplyTo
		wantErr bool
	}{
		{"long", models.ApplyLong, false},
		{"short", models.ApplyShort, false},
		{"all", models.ApplyAll, false},
		{"unknown", models.ApplyTo("BOTH"), true},
		{"empty", models.ApplyTo(""), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateApplyTo(tt.side)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateApplyTo(%q) error = %v, wantErr %v", tt.side, err, tt.wantErr)
			}
		})
	}
}

func TestValidateTimeString(t *testing.T) {
	tests := []struct {
		name    string
		s       string
		wantErr bool
	}{
		{"midnight", "00:00", false},
		{"market open", "09:15", false},
		{"square off", "15:20", false},
		{"end of day", "23:59", false},
		{"hour out of range", "24:00", true},
		{"minute out of range", "09:60", true},
		{"missing leading zero", "9:15", true},
		{"garbage", "not-a-time", true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTimeString(tt.s)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTimeString(%q) error = %v, wantErr %v", tt.s, err, tt.wantErr)
			}
		})
	}
}

func TestValidateActiveDays(t *testing.T) {
	tests := []struct {
		name    string
		days    []int
		wantErr bool
	}{
		{"weekdays", []int{0, 1, 2, 3, 4}, false},
		{"single day", []int{2}, false},
		{"empty", []int{}, true},
		{"nil", nil, true},
		{"saturday out of range", []int{5}, true},
		{"negative", []int{-1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateActiveDays(tt.days)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateActiveDays(%v) error = %v, wantErr %v", tt.days, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePriceCondition(t *testing.T) {
	tests := []struct {
		name    string
		pc      *models.PriceCondition
		wantErr bool
	}{
		{"nil is valid", nil, false},
		{"disabled is valid regardless of value", &models.PriceCondition{Enabled: false, Value: -5}, false},
		{"valid percentage", &models.PriceCondition{Enabled: true, ConditionType: models.ConditionPercentage, OrderType: models.OrderMarket, Value: 5}, false},
		{"percentage over 100", &models.PriceCondition{Enabled: true, ConditionType: models.ConditionPercentage, OrderType: models.OrderMarket, Value: 150}, true},
		{"zero value", &models.PriceCondition{Enabled: true, ConditionType: models.ConditionAbsolute, OrderType: models.OrderMarket, Value: 0}, true},
		{"unknown condition type", &models.PriceCondition{Enabled: true, ConditionType: "BOGUS", OrderType: models.OrderMarket, Value: 5}, true},
		{"unknown order type", &models.PriceCondition{Enabled: true, ConditionType: models.ConditionAbsolute, OrderType: "BOGUS", Value: 5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePriceCondition(tt.pc)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePriceCondition(%+v) error = %v, wantErr %v", tt.pc, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePriority(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{"zero", "0", 0, false},
		{"positive", "5", 5, false},
		{"negative", "-1", 0, true},
		{"not a number", "high", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidatePriority(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidatePriority(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ValidatePriority(%q) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestValidateExitRule_FullyValid(t *testing.T) {
	rule := &models.ExitRule{
		Name:          "take profit on NIFTY longs",
		SymbolPattern: "NIFTY*",
		ApplyTo:       models.ApplyLong,
		TakeProfit:    &models.PriceCondition{Enabled: true, ConditionType: models.ConditionPercentage, OrderType: models.OrderMarket, Value: 10},
		StopLoss:      &models.PriceCondition{Enabled: true, ConditionType: models.ConditionPercentage, OrderType: models.OrderMarket, Value: 5},
		TimeConditions: &models.TimeCondition{
			StartTime: "09:15", EndTime: "15:20", SquareOffTime: "15:25",
			ActiveDays: []int{0, 1, 2, 3, 4},
		},
		Priority: 1,
	}
	if err := ValidateExitRule(rule); err != nil {
		t.Fatalf("expected valid rule, got error: %v", err)
	}
}

func TestValidateExitRule_EmptyNameRejected(t *testing.T) {
	rule := &models.ExitRule{SymbolPattern: "NIFTY", ApplyTo: models.ApplyAll}
	if err := ValidateExitRule(rule); err == nil {
		t.Fatal("expected error for empty rule name")
	}
}
