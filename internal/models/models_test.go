package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestBrokerAccount_SecretFieldsExcludedFromJSON(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	acct := BrokerAccount{
		ID:           1,
		UserID:       42,
		BrokerID:     "kite",
		APIKey:       "plaintext_api_key",
		APISecret:    "plaintext_api_secret",
		AccessToken:  "plaintext_access_token",
		RefreshToken: "plaintext_refresh_token",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	data, err := json.Marshal(acct)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := string(data)

	for _, secret := range []string{"plaintext_api_key", "plaintext_api_secret", "plaintext_access_token", "plaintext_refresh_token"} {
		if strings.Contains(out, secret) {
			t.Errorf("secret field %q leaked into JSON: %s", secret, out)
		}
	}
	for _, public := range []string{"broker_id", "is_active", "user_id"} {
		if !strings.Contains(out, public) {
			t.Errorf("public field %q missing from JSON: %s", public, out)
		}
	}
}

func TestBrokerAccount_TokenValid(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	cases := []struct {
		name string
		acct BrokerAccount
		want bool
	}{
		{"empty token", BrokerAccount{AccessToken: ""}, false},
		{"no expiry set", BrokerAccount{AccessToken: "tok"}, true},
		{"future expiry", BrokerAccount{AccessToken: "tok", TokenExpiresAt: &future}, true},
		{"past expiry", BrokerAccount{AccessToken: "tok", TokenExpiresAt: &past}, false},
		{"expiry exactly now", BrokerAccount{AccessToken: "tok", TokenExpiresAt: &now}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.acct.TokenValid(now); got != c.want {
				t.Errorf("TokenValid() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestPosition_TypeAndEntryPrice(t *testing.T) {
	cases := []struct {
		name      string
		qty       int64
		buyPrice  float64
		sellPrice float64
		avgPrice  float64
		wantType  PositionType
		wantEntry float64
	}{
		{"long", 1000, 366.89, 0, 0, PositionLong, 366.89},
		{"short", -500, 0, 200.0, 0, PositionShort, 200.0},
		{"flat", 0, 0, 0, 150.0, PositionFlat, 150.0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := &Position{Quantity: c.qty, BuyPrice: c.buyPrice, SellPrice: c.sellPrice, AveragePrice: c.avgPrice}
			if got := p.Type(); got != c.wantType {
				t.Errorf("Type() = %v, want %v", got, c.wantType)
			}
			if got := p.EntryPrice(); got != c.wantEntry {
				t.Errorf("EntryPrice() = %v, want %v", got, c.wantEntry)
			}
		})
	}
}

func TestPosition_IsFlatNeverTracked(t *testing.T) {
	p := &Position{Quantity: 0}
	if !p.IsFlat() {
		t.Error("zero-quantity position must report IsFlat")
	}
	if p.Type() != PositionFlat {
		t.Error("zero-quantity position must derive PositionFlat")
	}
}

func TestActiveTrade_WatermarksMonotonic(t *testing.T) {
	pos := &Position{Exchange: "BFO", TradingSymbol: "SENSEX25D0486000CE", Quantity: 1000, BuyPrice: 366.89}
	rule := &ExitRule{ID: "rule-1"}
	trade := NewActiveTrade(pos, rule, nil, nil, time.Now())

	prices := []float64{370, 350, 420, 400, 466}
	for _, p := range prices {
		trade.UpdatePrice(p)
	}

	snap := trade.Snapshot()
	if snap.HighestPrice != 466 {
		t.Errorf("HighestPrice = %v, want 466", snap.HighestPrice)
	}
	if snap.LowestPrice != 350 {
		t.Errorf("LowestPrice = %v, want 350", snap.LowestPrice)
	}
}

func TestActiveTrade_TryTriggerIsCompareAndSet(t *testing.T) {
	pos := &Position{Exchange: "BFO", TradingSymbol: "SENSEX25D0486000CE", Quantity: 1000, BuyPrice: 366.89}
	rule := &ExitRule{ID: "rule-1"}
	trade := NewActiveTrade(pos, rule, nil, nil, time.Now())

	if !trade.TryTrigger(TriggerTakeProfit, time.Now()) {
		t.Fatal("first TryTrigger should succeed")
	}
	if trade.TryTrigger(TriggerStopLoss, time.Now()) {
		t.Fatal("second TryTrigger must fail, trade already triggered")
	}
	if !trade.Triggered() {
		t.Fatal("trade should report Triggered() == true")
	}
	if trade.UpdatePrice(500) {
		t.Fatal("UpdatePrice must be a no-op once triggered")
	}
}

func TestExitRule_SnapshotIsIndependentCopy(t *testing.T) {
	rule := &ExitRule{
		ID:         "rule-1",
		TakeProfit: &PriceCondition{Enabled: true, Value: 100},
		TimeConditions: &TimeCondition{
			SquareOffTime: "15:20",
			ActiveDays:    []int{0, 1, 2, 3, 4},
		},
	}
	snap := rule.Snapshot()

	rule.TakeProfit.Value = 999
	rule.TimeConditions.ActiveDays[0] = 6

	if snap.TakeProfit.Value != 100 {
		t.Errorf("snapshot TakeProfit.Value mutated by source edit: got %v", snap.TakeProfit.Value)
	}
	if snap.TimeConditions.ActiveDays[0] != 0 {
		t.Errorf("snapshot ActiveDays mutated by source edit: got %v", snap.TimeConditions.ActiveDays[0])
	}
}
