package models

import "time"

// TradeLogStatus is the terminal outcome of an exit attempt.
type TradeLogStatus string

const (
	TradeLogPlaced   TradeLogStatus = "PLACED"
	TradeLogRejected TradeLogStatus = "REJECTED"
)

// TradeLog is one row per terminal ActiveTrade transition, written by the
// Exit Executor independent of the Event Bus notification.
type TradeLog struct {
	ID            int64          `json:"id" db:"id"`
	UserID        int64          `json:"user_id" db:"user_id"`
	Symbol        string         `json:"symbol" db:"symbol"`
	Exchange      string         `json:"exchange" db:"exchange"`
	Side          string         `json:"side" db:"side"` // BUY / SELL
	Quantity      int64          `json:"quantity" db:"quantity"`
	Price         float64        `json:"price" db:"price"`
	OrderID       string         `json:"order_id,omitempty" db:"order_id"`
	OrderType     OrderType      `json:"order_type" db:"order_type"`
	TriggerType   TriggerType    `json:"trigger_type,omitempty" db:"trigger_type"`
	TriggerPrice  float64        `json:"trigger_price,omitempty" db:"trigger_price"`
	Status        TradeLogStatus `json:"status" db:"status"`
	RejectReason  string         `json:"reject_reason,omitempty" db:"reject_reason"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
}
