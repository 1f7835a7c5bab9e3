// Package trigger implements the Trigger Evaluator: the per-price-update
// decision of whether a tracked trade should exit, and if so which
// condition fired.
package trigger

import (
	"time"

	"github.com/devanshjainms/exitengine/internal/models"
	"github.com/devanshjainms/exitengine/pkg/money"
	"github.com/devanshjainms/exitengine/pkg/timeutil"
)

// Evaluate runs the six-step decision order against trade, assuming the
// caller has already applied the new price via trade.UpdatePrice. now and
// loc are the wall-clock time and time zone used for time-window/square-off
// comparisons; loc is typically the owning user's preferred IANA zone.
//
// Evaluate never mutates trade — callers combine a true result with
// trade.TryTrigger to perform the at-most-once transition into TRIGGERED.
func Evaluate(trade *models.ActiveTrade, now time.Time, loc *time.Location) (fired bool, kind models.TriggerType) {
	snap := trade.Snapshot()
	if snap.Triggered {
		return false, ""
	}

	rule := trade.Rule
	side := moneySide(trade.Position.Type())
	local := timeutil.ToLocation(now, loc)

	if tc := rule.TimeConditions; tc != nil {
		if !withinWindow(tc, local) {
			return false, ""
		}
		if pastSquareOff(tc, local) {
			return true, models.TriggerSquareOff
		}
	}

	if tp := rule.TakeProfit; tp != nil && tp.Enabled && trade.TPPrice != nil {
		if tp.Trail {
			if evaluateTrailingTP(side, *trade.TPPrice, tp.TrailStep, snap) {
				return true, models.TriggerTakeProfit
			}
		} else if evaluateStaticTP(side, *trade.TPPrice, snap.CurrentPrice) {
			return true, models.TriggerTakeProfit
		}
	}

	if sl := rule.StopLoss; sl != nil && sl.Enabled && trade.SLPrice != nil {
		if sl.Trail {
			if evaluateTrailingSL(side, sl.Value, snap) {
				return true, models.TriggerStopLoss
			}
		} else if evaluateStaticSL(side, *trade.SLPrice, snap.CurrentPrice) {
			return true, models.TriggerStopLoss
		}
	}

	return false, ""
}

func moneySide(t models.PositionType) money.Side {
	if t == models.PositionShort {
		return money.Short
	}
	return money.Long
}

// withinWindow reports whether now falls inside the rule's trading window
// on an active weekday. An empty Start/End bound is treated as unbounded on
// that side; Go's time.Weekday is Sunday=0, translated to the spec's
// Monday=0..Friday=4 scheme.
func withinWindow(tc *models.TimeCondition, now time.Time) bool {
	if !isActiveDay(tc.ActiveDays, now.Weekday()) {
		return false
	}
	if tc.StartTime == "" && tc.EndTime == "" {
		return true
	}
	current := timeutil.ClockOf(now.Hour(), now.Minute())
	start, end := timeutil.Clock(0), timeutil.Clock(23*60+59)
	if tc.StartTime != "" {
		if c, err := timeutil.ParseClock(tc.StartTime); err == nil {
			start = c
		}
	}
	if tc.EndTime != "" {
		if c, err := timeutil.ParseClock(tc.EndTime); err == nil {
			end = c
		}
	}
	return timeutil.InWindow(current, start, end)
}

func pastSquareOff(tc *models.TimeCondition, now time.Time) bool {
	if tc.SquareOffTime == "" {
		return false
	}
	target, err := timeutil.ParseClock(tc.SquareOffTime)
	if err != nil {
		return false
	}
	current := timeutil.ClockOf(now.Hour(), now.Minute())
	return timeutil.AtOrPast(current, target)
}

func isActiveDay(activeDays []int, weekday time.Weekday) bool {
	if len(activeDays) == 0 {
		return true
	}
	day := mondayIndexed(weekday)
	for _, d := range activeDays {
		if d == day {
			return true
		}
	}
	return false
}

// mondayIndexed converts Go's Sunday=0 weekday into the spec's Monday=0
// scheme. Saturday/Sunday map outside [0,4] and so never match a weekday
// rule's active-days list, which is the intended behavior.
func mondayIndexed(weekday time.Weekday) int {
	return (int(weekday) + 6) % 7
}

func evaluateTrailingTP(side money.Side, tpPrice, trailStep float64, snap models.TradeSnapshot) bool {
	if side == money.Long {
		if snap.HighestPrice < tpPrice {
			return false
		}
		trailTrigger := snap.HighestPrice - trailStep
		return snap.CurrentPrice <= trailTrigger
	}
	if snap.LowestPrice > tpPrice {
		return false
	}
	trailTrigger := snap.LowestPrice + trailStep
	return snap.CurrentPrice >= trailTrigger
}

func evaluateStaticTP(side money.Side, tpPrice, currentPrice float64) bool {
	if side == money.Long {
		return currentPrice >= tpPrice
	}
	return currentPrice <= tpPrice
}

// evaluateTrailingSL mirrors the original's use of the raw stop-loss value
// (distance from watermark) rather than the precomputed static slPrice.
func evaluateTrailingSL(side money.Side, stopValue float64, snap models.TradeSnapshot) bool {
	if side == money.Long {
		trailingStop := snap.HighestPrice - stopValue
		return snap.CurrentPrice <= trailingStop
	}
	trailingStop := snap.LowestPrice + stopValue
	return snap.CurrentPrice >= trailingStop
}

func evaluateStaticSL(side money.Side, slPrice, currentPrice float64) bool {
	if side == money.Long {
		return currentPrice <= slPrice
	}
	return currentPrice >= slPrice
}
