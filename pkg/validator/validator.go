// Package validator checks exit-rule fields for shapes the Rules Matcher
// and Trigger Evaluator assume but never re-verify themselves: a
// compilable symbol pattern, a recognized condition/order type enum
// value, HH:MM-formatted time strings, and an in-range active-day list.
package validator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/devanshjainms/exitengine/internal/models"
)

var timeFormat = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// ValidateSymbolPattern checks that pattern is non-empty and, if it
// contains glob metacharacters, that it compiles to a valid regex once
// translated (mirroring rules.matchSymbol's translation).
func ValidateSymbolPattern(pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return fmt.Errorf("validator: symbol pattern must not be empty")
	}
	if !strings.ContainsAny(pattern, "*?") {
		return nil
	}
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	if _, err := regexp.Compile(b.String()); err != nil {
		return fmt.Errorf("validator: invalid symbol pattern %q: %w", pattern, err)
	}
	return nil
}

// ValidateApplyTo checks that side is one of the recognized ApplyTo values.
func ValidateApplyTo(side models.ApplyTo) error {
	switch side {
	case models.ApplyLong, models.ApplyShort, models.ApplyAll:
		return nil
	default:
		return fmt.Errorf("validator: unrecognized apply_to %q", side)
	}
}

// ValidateConditionType checks that ct is one of the recognized
// ConditionType values.
func ValidateConditionType(ct models.ConditionType) error {
	switch ct {
	case models.ConditionAbsolute, models.ConditionRelative, models.ConditionPercentage:
		return nil
	default:
		return fmt.Errorf("validator: unrecognized condition_type %q", ct)
	}
}

// ValidateOrderType checks that ot is one of the recognized OrderType
// values.
func ValidateOrderType(ot models.OrderType) error {
	switch ot {
	case models.OrderMarket, models.OrderLimit:
		return nil
	default:
		return fmt.Errorf("validator: unrecognized order_type %q", ot)
	}
}

// ValidateTimeString checks that s matches the "HH:MM" 24-hour format the
// Trigger Evaluator parses TimeCondition boundaries with.
func ValidateTimeString(s string) error {
	if !timeFormat.MatchString(s) {
		return fmt.Errorf("validator: %q is not a valid HH:MM time", s)
	}
	return nil
}

// ValidateActiveDays checks that every entry is a weekday index in
// [0, 4] (Mon..Fri) and that the list is non-empty.
func ValidateActiveDays(days []int) error {
	if len(days) == 0 {
		return fmt.Errorf("validator: active_days must not be empty")
	}
	for _, d := range days {
		if d < 0 || d > 4 {
			return fmt.Errorf("validator: active_days entry %d out of range [0,4]", d)
		}
	}
	return nil
}

// ValidatePriceCondition validates a PriceCondition, if non-nil and
// enabled; a nil or disabled condition is always valid.
func ValidatePriceCondition(pc *models.PriceCondition) error {
	if pc == nil || !pc.Enabled {
		return nil
	}
	if err := ValidateConditionType(pc.ConditionType); err != nil {
		return err
	}
	if err := ValidateOrderType(pc.OrderType); err != nil {
		return err
	}
	if pc.ConditionType == models.ConditionPercentage && (pc.Value <= 0 || pc.Value > 100) {
		return fmt.Errorf("validator: percentage value %.4f must be in (0, 100]", pc.Value)
	}
	if pc.Value <= 0 {
		return fmt.Errorf("validator: condition value must be positive, got %.4f", pc.Value)
	}
	return nil
}

// ValidateTimeCondition validates a TimeCondition, if non-nil.
func ValidateTimeCondition(tc *models.TimeCondition) error {
	if tc == nil {
		return nil
	}
	if tc.StartTime != "" {
		if err := ValidateTimeString(tc.StartTime); err != nil {
			return err
		}
	}
	if tc.EndTime != "" {
		if err := ValidateTimeString(tc.EndTime); err != nil {
			return err
		}
	}
	if tc.SquareOffTime != "" {
		if err := ValidateTimeString(tc.SquareOffTime); err != nil {
			return err
		}
	}
	if len(tc.ActiveDays) > 0 {
		if err := ValidateActiveDays(tc.ActiveDays); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePriority checks that priority parses as a non-negative integer,
// accepting it pre-stringified the way form/query input arrives.
func ValidatePriority(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("validator: priority must be an integer: %w", err)
	}
	if n < 0 {
		return 0, fmt.Errorf("validator: priority must be non-negative, got %d", n)
	}
	return n, nil
}

// ValidateExitRule runs every applicable check against rule, returning the
// first failure encountered.
func ValidateExitRule(rule *models.ExitRule) error {
	if strings.TrimSpace(rule.Name) == "" {
		return fmt.Errorf("validator: rule name must not be empty")
	}
	if err := ValidateSymbolPattern(rule.SymbolPattern); err != nil {
		return err
	}
	if err := ValidateApplyTo(rule.ApplyTo); err != nil {
		return err
	}
	if err := ValidatePriceCondition(rule.TakeProfit); err != nil {
		return fmt.Errorf("validator: take_profit: %w", err)
	}
	if err := ValidatePriceCondition(rule.StopLoss); err != nil {
		return fmt.Errorf("validator: stop_loss: %w", err)
	}
	if err := ValidateTimeCondition(rule.TimeConditions); err != nil {
		return fmt.Errorf("validator: time_conditions: %w", err)
	}
	if rule.Priority < 0 {
		return fmt.Errorf("validator: priority must be non-negative, got %d", rule.Priority)
	}
	return nil
}
