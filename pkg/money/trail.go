package money

// TrailingTakeProfitArmed reports whether the trailing TP has armed: for
// LONG once highest has reached tp, for SHORT once lowest has reached tp.
func TrailingTakeProfitArmed(side Side, highest, lowest, tp float64) bool {
	if side == Long {
		return highest >= tp
	}
	return lowest <= tp
}

// TrailingTakeProfitTrigger computes the current trailing-TP exit price
// once armed: highest-step for LONG, lowest+step for SHORT.
func TrailingTakeProfitTrigger(side Side, highest, lowest, step float64) float64 {
	if side == Long {
		return highest - step
	}
	return lowest + step
}

// TrailingStopLossTrigger computes the current trailing-SL exit price:
// highest-stopValue for LONG, lowest+stopValue for SHORT. Unlike trailing
// TP this has no arming condition — it trails from the first tick.
func TrailingStopLossTrigger(side Side, highest, lowest, stopValue float64) float64 {
	if side == Long {
		return highest - stopValue
	}
	return lowest + stopValue
}
