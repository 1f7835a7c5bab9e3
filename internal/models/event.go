package models

import "time"

// EventType enumerates the event types the core emits.
type EventType string

const (
	EventPositionOpened    EventType = "POSITION_OPENED"
	EventPositionClosed    EventType = "POSITION_CLOSED"
	EventPositionUpdated   EventType = "POSITION_UPDATED"
	EventPriceUpdate       EventType = "PRICE_UPDATE"
	EventRuleMatched       EventType = "RULE_MATCHED"
	EventTPTriggered       EventType = "TP_TRIGGERED"
	EventSLTriggered       EventType = "SL_TRIGGERED"
	EventTimeTrigger       EventType = "TIME_TRIGGER"
	EventOrderPlaced       EventType = "ORDER_PLACED"
	EventOrderRejected     EventType = "ORDER_REJECTED"
	EventEngineStarted     EventType = "ENGINE_STARTED"
	EventEngineStopped     EventType = "ENGINE_STOPPED"
	EventBrokerConnected   EventType = "BROKER_CONNECTED"
	EventBrokerDisconnected EventType = "BROKER_DISCONNECTED"
	EventSystemError       EventType = "SYSTEM_ERROR"
)

// Event is the Event Bus's wire/payload type.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	UserID    int64                  `json:"user_id"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}
