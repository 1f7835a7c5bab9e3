package trigger

import (
	"testing"
	"time"

	"github.com/devanshjainms/exitengine/internal/models"
)

func newLongTrade(entry, tp, sl float64, tpCond, slCond *models.PriceCondition) *models.ActiveTrade {
	pos := &models.Position{Exchange: "NSE", TradingSymbol: "INFY", Quantity: 10, BuyPrice: entry, AveragePrice: entry}
	rule := &models.ExitRule{ID: "r1", TakeProfit: tpCond, StopLoss: slCond}
	var tpPtr, slPtr *float64
	if tpCond != nil {
		tpPtr = &tp
	}
	if slCond != nil {
		slPtr = &sl
	}
	return models.NewActiveTrade(pos, rule, tpPtr, slPtr, time.Now())
}

func newShortTrade(entry, tp, sl float64, tpCond, slCond *models.PriceCondition) *models.ActiveTrade {
	pos := &models.Position{Exchange: "NSE", TradingSymbol: "INFY", Quantity: -10, SellPrice: entry, AveragePrice: entry}
	rule := &models.ExitRule{ID: "r1", TakeProfit: tpCond, StopLoss: slCond}
	var tpPtr, slPtr *float64
	if tpCond != nil {
		tpPtr = &tp
	}
	if slCond != nil {
		slPtr = &sl
	}
	return models.NewActiveTrade(pos, rule, tpPtr, slPtr, time.Now())
}

func TestEvaluate_StaticTakeProfit_Long(t *testing.T) {
	tp := &models.PriceCondition{Enabled: true, ConditionType: models.ConditionAbsolute, Value: 1100}
	trade := newLongTrade(1000, 1100, 0, tp, nil)
	trade.UpdatePrice(1100)

	fired, kind := Evaluate(trade, time.Now(), nil)
	if !fired || kind != models.TriggerTakeProfit {
		t.Fatalf("expected TP trigger, got fired=%v kind=%v", fired, kind)
	}
}

func TestEvaluate_StaticTakeProfit_Short(t *testing.T) {
	tp := &models.PriceCondition{Enabled: true, ConditionType: models.ConditionAbsolute, Value: 900}
	trade := newShortTrade(1000, 900, 0, tp, nil)
	trade.UpdatePrice(900)

	fired, kind := Evaluate(trade, time.Now(), nil)
	if !fired || kind != models.TriggerTakeProfit {
		t.Fatalf("expected TP trigger, got fired=%v kind=%v", fired, kind)
	}
}

func TestEvaluate_StaticStopLoss_Long(t *testing.T) {
	sl := &models.PriceCondition{Enabled: true, ConditionType: models.ConditionAbsolute, Value: 950}
	trade := newLongTrade(1000, 0, 950, nil, sl)
	trade.UpdatePrice(950)

	fired, kind := Evaluate(trade, time.Now(), nil)
	if !fired || kind != models.TriggerStopLoss {
		t.Fatalf("expected SL trigger, got fired=%v kind=%v", fired, kind)
	}
}

func TestEvaluate_NoFireBetweenTPAndSL(t *testing.T) {
	tp := &models.PriceCondition{Enabled: true, ConditionType: models.ConditionAbsolute, Value: 1100}
	sl := &models.PriceCondition{Enabled: true, ConditionType: models.ConditionAbsolute, Value: 950}
	trade := newLongTrade(1000, 1100, 950, tp, sl)
	trade.UpdatePrice(1020)

	fired, _ := Evaluate(trade, time.Now(), nil)
	if fired {
		t.Fatal("expected no trigger while price is between TP and SL")
	}
}

func TestEvaluate_AlreadyTriggeredNeverFiresAgain(t *testing.T) {
	tp := &models.PriceCondition{Enabled: true, ConditionType: models.ConditionAbsolute, Value: 1100}
	trade := newLongTrade(1000, 1100, 0, tp, nil)
	trade.UpdatePrice(1100)
	if !trade.TryTrigger(models.TriggerTakeProfit, time.Now()) {
		t.Fatal("expected first TryTrigger to succeed")
	}

	fired, _ := Evaluate(trade, time.Now(), nil)
	if fired {
		t.Fatal("expected evaluator to skip an already-triggered trade")
	}
}

func TestEvaluate_TrailingTakeProfit_Long(t *testing.T) {
	tp := &models.PriceCondition{Enabled: true, ConditionType: models.ConditionAbsolute, Value: 1100, Trail: true, TrailStep: 10}
	trade := newLongTrade(1000, 1100, 0, tp, nil)

	trade.UpdatePrice(1120) // highest now 1120, past tp_price 1100, no fire yet (trail trigger 1110)
	fired, _ := Evaluate(trade, time.Now(), nil)
	if fired {
		t.Fatal("expected no trigger while price is above the trailing trigger")
	}

	trade.UpdatePrice(1105) // still above trailing trigger (1120-10=1110)? 1105 <= 1110 -> fires
	fired, kind := Evaluate(trade, time.Now(), nil)
	if !fired || kind != models.TriggerTakeProfit {
		t.Fatalf("expected trailing TP to fire, got fired=%v kind=%v", fired, kind)
	}
}

func TestEvaluate_TrailingStopLoss_Long(t *testing.T) {
	sl := &models.PriceCondition{Enabled: true, ConditionType: models.ConditionAbsolute, Value: 30, Trail: true}
	trade := newLongTrade(1000, 0, 950, nil, sl)

	trade.UpdatePrice(1050) // highest 1050, trailing stop = 1050-30=1020
	fired, _ := Evaluate(trade, time.Now(), nil)
	if fired {
		t.Fatal("expected no trigger above the trailing stop")
	}

	trade.UpdatePrice(1015) // below trailing stop 1020
	fired, kind := Evaluate(trade, time.Now(), nil)
	if !fired || kind != models.TriggerStopLoss {
		t.Fatalf("expected trailing SL to fire, got fired=%v kind=%v", fired, kind)
	}
}

func TestEvaluate_OutsideTimeWindowSkipsEntirely(t *testing.T) {
	tp := &models.PriceCondition{Enabled: true, ConditionType: models.ConditionAbsolute, Value: 1100}
	trade := newLongTrade(1000, 1100, 0, tp, nil)
	trade.Rule.TimeConditions = &models.TimeCondition{StartTime: "09:15", EndTime: "15:30", ActiveDays: []int{0, 1, 2, 3, 4}}
	trade.UpdatePrice(1200) // would otherwise fire TP

	loc := time.UTC
	outsideWindow := time.Date(2026, 8, 3, 20, 0, 0, 0, loc) // Monday 20:00, after end_time
	fired, _ := Evaluate(trade, outsideWindow, loc)
	if fired {
		t.Fatal("expected no trigger outside the trading window even though TP would fire")
	}
}

func TestEvaluate_PastSquareOffTime(t *testing.T) {
	trade := newLongTrade(1000, 0, 0, nil, nil)
	trade.Rule.TimeConditions = &models.TimeCondition{StartTime: "09:15", EndTime: "23:59", SquareOffTime: "15:20", ActiveDays: []int{0, 1, 2, 3, 4}}
	trade.UpdatePrice(1000)

	loc := time.UTC
	pastSquareOffTime := time.Date(2026, 8, 3, 15, 25, 0, 0, loc) // Monday 15:25
	fired, kind := Evaluate(trade, pastSquareOffTime, loc)
	if !fired || kind != models.TriggerSquareOff {
		t.Fatalf("expected SQUARE_OFF trigger, got fired=%v kind=%v", fired, kind)
	}
}

func TestEvaluate_InactiveWeekdaySkips(t *testing.T) {
	tp := &models.PriceCondition{Enabled: true, ConditionType: models.ConditionAbsolute, Value: 1100}
	trade := newLongTrade(1000, 1100, 0, tp, nil)
	trade.Rule.TimeConditions = &models.TimeCondition{ActiveDays: []int{0, 1, 2, 3, 4}} // weekdays only
	trade.UpdatePrice(1200)

	loc := time.UTC
	saturday := time.Date(2026, 8, 1, 12, 0, 0, 0, loc)
	fired, _ := Evaluate(trade, saturday, loc)
	if fired {
		t.Fatal("expected weekend to be an inactive day, skipping evaluation")
	}
}
