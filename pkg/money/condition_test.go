package money

import "testing"

func almostEqual(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < 1e-6
}

func TestTakeProfitPrice(t *testing.T) {
	cases := []struct {
		name          string
		conditionType ConditionType
		side          Side
		entry         float64
		value         float64
		want          float64
	}{
		{"relative long", Relative, Long, 366.89, 100, 466.89},
		{"percentage short", Percentage, Short, 200, 30, 140},
		{"absolute long", Absolute, Long, 366.89, 500, 500},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := TakeProfitPrice(c.conditionType, c.side, c.entry, c.value)
			if !almostEqual(got, c.want) {
				t.Errorf("TakeProfitPrice() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestStopLossPrice(t *testing.T) {
	cases := []struct {
		name          string
		conditionType ConditionType
		side          Side
		entry         float64
		value         float64
		want          float64
	}{
		{"relative long", Relative, Long, 366.89, 40, 326.89},
		{"relative short", Relative, Short, 200, 40, 240},
		{"percentage long", Percentage, Long, 100, 10, 90},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := StopLossPrice(c.conditionType, c.side, c.entry, c.value)
			if !almostEqual(got, c.want) {
				t.Errorf("StopLossPrice() = %v, want %v", got, c.want)
			}
		})
	}
}

// Scenario 1: Static TP, LONG.
func TestScenario_StaticTPLong(t *testing.T) {
	entry := 366.89
	tp := TakeProfitPrice(Relative, Long, entry, 100)

	prices := []float64{370, 420, 466, 467}
	fired := -1
	for i, p := range prices {
		if CheckTakeProfit(Long, p, tp) {
			fired = i
			break
		}
	}
	if fired != 3 {
		t.Fatalf("expected fire at index 3 (price=467), got index %d", fired)
	}
}

// Scenario 2: Static SL, LONG.
func TestScenario_StaticSLLong(t *testing.T) {
	entry := 366.89
	sl := StopLossPrice(Relative, Long, entry, 40)
	if !almostEqual(sl, 326.89) {
		t.Fatalf("sl_price = %v, want 326.89", sl)
	}

	prices := []float64{360, 340, 325}
	fired := -1
	for i, p := range prices {
		if CheckStopLoss(Long, p, sl) {
			fired = i
			break
		}
	}
	if fired != 2 {
		t.Fatalf("expected fire at index 2 (price=325), got index %d", fired)
	}
}

// Scenario 3: no-fire in band.
func TestScenario_NoFireInBand(t *testing.T) {
	entry := 366.89
	tp := TakeProfitPrice(Relative, Long, entry, 100)
	sl := StopLossPrice(Relative, Long, entry, 40)

	for _, p := range []float64{340, 380, 400, 420, 430} {
		if CheckTakeProfit(Long, p, tp) {
			t.Fatalf("unexpected TP fire at price=%v", p)
		}
		if CheckStopLoss(Long, p, sl) {
			t.Fatalf("unexpected SL fire at price=%v", p)
		}
	}
}

// Scenario 4: Percentage TP on SHORT.
func TestScenario_PercentageTPShort(t *testing.T) {
	entry := 200.0
	tp := TakeProfitPrice(Percentage, Short, entry, 30)
	if !almostEqual(tp, 140) {
		t.Fatalf("tp_price = %v, want 140", tp)
	}

	prices := []float64{180, 160, 140, 139}
	fired := -1
	for i, p := range prices {
		if CheckTakeProfit(Short, p, tp) {
			fired = i
			break
		}
	}
	if fired != 2 {
		t.Fatalf("expected fire at index 2 (price=140, inclusive boundary), got index %d", fired)
	}
}

// Scenario 5: Trailing TP, LONG.
func TestScenario_TrailingTPLong(t *testing.T) {
	entry := 366.89
	tp := TakeProfitPrice(Relative, Long, entry, 100) // 466.89
	step := 20.0

	highest, lowest := entry, entry
	observe := func(p float64) {
		if p > highest {
			highest = p
		}
		if p < lowest {
			lowest = p
		}
	}

	prices := []float64{366, 450, 470, 480, 460}
	fired := -1
	for i, p := range prices {
		observe(p)
		if !TrailingTakeProfitArmed(Long, highest, lowest, tp) {
			continue
		}
		trigger := TrailingTakeProfitTrigger(Long, highest, lowest, step)
		if p <= trigger {
			fired = i
			break
		}
	}
	if fired != 4 {
		t.Fatalf("expected fire at index 4 (price=460), got index %d", fired)
	}
	if !almostEqual(highest, 480) {
		t.Fatalf("highest = %v, want 480", highest)
	}
}
