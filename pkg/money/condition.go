// Package money implements the take-profit/stop-loss price arithmetic
// shared by the Rules Matcher and the Trigger Evaluator. Prices are carried
// through shopspring/decimal internally to avoid float64 accumulation
// error on repeated percentage math, then converted back to float64 at the
// package boundary since the rest of the engine (watermarks, broker
// payloads) is float64-typed.
package money

import "github.com/shopspring/decimal"

// ConditionType mirrors models.ConditionType without importing internal/models,
// keeping this package free of engine-internal imports and independently
// testable.
type ConditionType string

const (
	Absolute   ConditionType = "ABSOLUTE"
	Relative   ConditionType = "RELATIVE"
	Percentage ConditionType = "PERCENTAGE"
)

// Side mirrors models.PositionType's two tradeable sides.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// TakeProfitPrice computes the TP price for entry E, side and value v, per
// the condition-type table:
//
//	ABSOLUTE:   value
//	RELATIVE:   E+v (LONG) / E-v (SHORT)
//	PERCENTAGE: E*(1+v/100) (LONG) / E*(1-v/100) (SHORT)
func TakeProfitPrice(conditionType ConditionType, side Side, entry, value float64) float64 {
	e, v := decimal.NewFromFloat(entry), decimal.NewFromFloat(value)
	var result decimal.Decimal
	switch conditionType {
	case Absolute:
		result = v
	case Relative:
		if side == Long {
			result = e.Add(v)
		} else {
			result = e.Sub(v)
		}
	case Percentage:
		factor := v.Div(decimal.NewFromInt(100))
		if side == Long {
			result = e.Mul(decimal.NewFromInt(1).Add(factor))
		} else {
			result = e.Mul(decimal.NewFromInt(1).Sub(factor))
		}
	default:
		result = e
	}
	f, _ := result.Float64()
	return f
}

// StopLossPrice computes the SL price for entry E, side and value v, per
// the condition-type table:
//
//	ABSOLUTE:   value
//	RELATIVE:   E-v (LONG) / E+v (SHORT)
//	PERCENTAGE: E*(1-v/100) (LONG) / E*(1+v/100) (SHORT)
func StopLossPrice(conditionType ConditionType, side Side, entry, value float64) float64 {
	e, v := decimal.NewFromFloat(entry), decimal.NewFromFloat(value)
	var result decimal.Decimal
	switch conditionType {
	case Absolute:
		result = v
	case Relative:
		if side == Long {
			result = e.Sub(v)
		} else {
			result = e.Add(v)
		}
	case Percentage:
		factor := v.Div(decimal.NewFromInt(100))
		if side == Long {
			result = e.Mul(decimal.NewFromInt(1).Sub(factor))
		} else {
			result = e.Mul(decimal.NewFromInt(1).Add(factor))
		}
	default:
		result = e
	}
	f, _ := result.Float64()
	return f
}

// CheckStopLoss reports whether price has reached or breached the stop
// for side, satisfying the round-trip property: CheckStopLoss ⇒ price is
// on the losing side of sl (inclusive at the boundary).
func CheckStopLoss(side Side, price, sl float64) bool {
	if side == Long {
		return price <= sl
	}
	return price >= sl
}

// CheckTakeProfit reports whether price has reached or breached the target
// for side.
func CheckTakeProfit(side Side, price, tp float64) bool {
	if side == Long {
		return price >= tp
	}
	return price <= tp
}
