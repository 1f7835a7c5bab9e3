package models

import (
	"sync"
	"time"
)

// TriggerType identifies which condition fired for an ActiveTrade.
type TriggerType string

const (
	TriggerTakeProfit TriggerType = "TP"
	TriggerStopLoss   TriggerType = "SL"
	TriggerSquareOff  TriggerType = "SQUARE_OFF"
)

// TradeState is the ActiveTrade lifecycle state.
type TradeState string

const (
	TradeCreated       TradeState = "CREATED"
	TradeTracking      TradeState = "TRACKING"
	TradeTriggered     TradeState = "TRIGGERED"
	TradeClosedExternal TradeState = "CLOSED_EXTERNAL"
)

// ActiveTrade is a Position matched to an ExitRule, tracked for exit.
// The zero value is not usable; construct via NewActiveTrade.
//
// mu guards State, CurrentPrice, HighestPrice, LowestPrice, TriggerType and
// TriggeredAt. Triggered is a separate atomic-style boolean guarded by the
// same mutex so the compare-and-set described in the trigger evaluator can
// be expressed as a single critical section.
type ActiveTrade struct {
	mu sync.Mutex

	Position *Position
	Rule     *ExitRule // immutable snapshot, see ExitRule.Snapshot

	TPPrice *float64
	SLPrice *float64

	CurrentPrice float64
	HighestPrice float64
	LowestPrice  float64

	state       TradeState
	triggered   bool
	TriggerType TriggerType
	TriggeredAt time.Time

	CreatedAt time.Time
}

// NewActiveTrade constructs a trade in the CREATED state, seeding watermarks
// from the position's entry price.
func NewActiveTrade(pos *Position, rule *ExitRule, tpPrice, slPrice *float64, now time.Time) *ActiveTrade {
	entry := pos.EntryPrice()
	return &ActiveTrade{
		Position:     pos,
		Rule:         rule,
		TPPrice:      tpPrice,
		SLPrice:      slPrice,
		CurrentPrice: entry,
		HighestPrice: entry,
		LowestPrice:  entry,
		state:        TradeCreated,
		CreatedAt:    now,
	}
}

// Key returns the trade's identity, equal to its Position's identity.
func (t *ActiveTrade) Key() string {
	return t.Position.Key()
}

// Triggered reports whether this trade has already fired a condition.
func (t *ActiveTrade) Triggered() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.triggered
}

// UpdatePrice advances watermarks and current price under lock. Returns
// false without mutating anything if the trade is already triggered.
func (t *ActiveTrade) UpdatePrice(price float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.triggered {
		return false
	}
	if t.state == TradeCreated {
		t.state = TradeTracking
	}
	if price > t.HighestPrice {
		t.HighestPrice = price
	}
	if price < t.LowestPrice {
		t.LowestPrice = price
	}
	t.CurrentPrice = price
	return true
}

// TryTrigger performs the compare-and-set transition into TRIGGERED.
// Only the caller for which this returns true may invoke the Exit Executor.
func (t *ActiveTrade) TryTrigger(kind TriggerType, at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.triggered {
		return false
	}
	t.triggered = true
	t.state = TradeTriggered
	t.TriggerType = kind
	t.TriggeredAt = at
	return true
}

// UpdatePosition replaces the trade's Position reference with a freshly
// diffed one (new average/last price, possibly changed quantity from a
// partial fill), guarded by the same lock as the price/state fields so a
// concurrent evaluation never observes a torn read. A no-op once the trade
// is triggered or closed — the Position snapshot used to build the exit
// order is whatever TryTrigger observed last.
func (t *ActiveTrade) UpdatePosition(pos *Position) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.triggered || t.state == TradeClosedExternal {
		return
	}
	t.Position = pos
}

// CloseExternal marks the trade terminal because its position disappeared
// at the broker without going through the Exit Executor. A no-op if the
// trade is already terminal.
func (t *ActiveTrade) CloseExternal() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.triggered || t.state == TradeClosedExternal {
		return
	}
	t.state = TradeClosedExternal
}

// State returns the current lifecycle state.
func (t *ActiveTrade) State() TradeState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Snapshot returns a value copy of the trade's observable fields for
// publishing to callers outside the engine (Status/ActiveTrades API).
type TradeSnapshot struct {
	Exchange      string
	TradingSymbol string
	RuleID        string
	State         TradeState
	CurrentPrice  float64
	HighestPrice  float64
	LowestPrice   float64
	Triggered     bool
	TriggerType   TriggerType
	TriggeredAt   time.Time
	CreatedAt     time.Time
}

func (t *ActiveTrade) Snapshot() TradeSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TradeSnapshot{
		Exchange:      t.Position.Exchange,
		TradingSymbol: t.Position.TradingSymbol,
		RuleID:        t.Rule.ID,
		State:         t.state,
		CurrentPrice:  t.CurrentPrice,
		HighestPrice:  t.HighestPrice,
		LowestPrice:   t.LowestPrice,
		Triggered:     t.triggered,
		TriggerType:   t.TriggerType,
		TriggeredAt:   t.TriggeredAt,
		CreatedAt:     t.CreatedAt,
	}
}
