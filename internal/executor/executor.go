// Package executor implements the Exit Executor: placing the broker order
// for a triggered trade and recording its outcome.
package executor

import (
	"context"
	"time"

	"github.com/devanshjainms/exitengine/internal/broker"
	"github.com/devanshjainms/exitengine/internal/eventbus"
	"github.com/devanshjainms/exitengine/internal/models"
	"github.com/devanshjainms/exitengine/pkg/applog"
)

// TradeLogWriter persists the terminal outcome of an exit attempt,
// independent of the Event Bus notification. Implemented by
// internal/repository.
type TradeLogWriter interface {
	LogTrade(ctx context.Context, entry *models.TradeLog) error
}

// Executor places exit orders for triggered trades. Retry policy for the
// broker call itself lives inside the broker.Client implementation
// (Kite's PlaceOrder uses the exit-order retry contract); Executor's job
// is building the order, handling the terminal success/failure split, and
// recording it.
type Executor struct {
	bus  *eventbus.Bus
	logs TradeLogWriter
	log  *applog.Logger
}

// NewExecutor builds an Executor. bus and logs may be nil in tests; a nil
// bus skips event publication, a nil logs skips trade-log persistence.
func NewExecutor(bus *eventbus.Bus, logs TradeLogWriter, log *applog.Logger) *Executor {
	if log == nil {
		log = applog.L()
	}
	return &Executor{bus: bus, logs: logs, log: log.WithComponent("exit_executor")}
}

// Execute places the exit order for trade via client, which must have
// already transitioned into TRIGGERED for kind (trade.TryTrigger returned
// true for this caller). The caller is responsible for publishing the
// TP_TRIGGERED/SL_TRIGGERED/TIME_TRIGGER event before calling Execute —
// Execute only emits the terminal ORDER_PLACED or ORDER_REJECTED event.
func (e *Executor) Execute(ctx context.Context, client broker.Client, userID int64, trade *models.ActiveTrade, kind models.TriggerType) {
	pos := trade.Position
	rule := trade.Rule
	snap := trade.Snapshot()

	params := buildOrderParams(pos, rule, kind)

	orderID, err := client.PlaceOrder(ctx, params)

	entry := &models.TradeLog{
		UserID:       userID,
		Symbol:       pos.TradingSymbol,
		Exchange:     pos.Exchange,
		Side:         params.TransactionType,
		Quantity:     pos.AbsQuantity(),
		OrderType:    models.OrderType(params.OrderType),
		TriggerType:  kind,
		TriggerPrice: snap.CurrentPrice,
		Price:        snap.CurrentPrice,
		CreatedAt:    time.Now(),
	}

	if err != nil {
		entry.Status = models.TradeLogRejected
		entry.RejectReason = err.Error()
		e.writeLog(ctx, entry)
		e.publish(models.EventOrderRejected, userID, trade, kind, map[string]interface{}{
			"error": err.Error(),
		})
		e.log.Warn("exit order rejected",
			applog.Symbol(pos.TradingSymbol), applog.RuleID(rule.ID), applog.Err(err))
		return
	}

	entry.Status = models.TradeLogPlaced
	entry.OrderID = orderID
	e.writeLog(ctx, entry)
	e.publish(models.EventOrderPlaced, userID, trade, kind, map[string]interface{}{
		"order_id": orderID,
	})
	e.log.Info("exit order placed",
		applog.Symbol(pos.TradingSymbol), applog.RuleID(rule.ID), applog.OrderID(orderID))
}

func buildOrderParams(pos *models.Position, rule *models.ExitRule, kind models.TriggerType) broker.PlaceOrderParams {
	transactionType := broker.TransactionSell
	if pos.Type() == models.PositionShort {
		transactionType = broker.TransactionBuy
	}

	orderType := broker.OrderTypeMarket
	switch kind {
	case models.TriggerTakeProfit:
		if rule.TakeProfit != nil && rule.TakeProfit.OrderType == models.OrderLimit {
			orderType = broker.OrderTypeLimit
		}
	case models.TriggerStopLoss:
		if rule.StopLoss != nil && rule.StopLoss.OrderType == models.OrderLimit {
			orderType = broker.OrderTypeLimit
		}
	case models.TriggerSquareOff:
		orderType = broker.OrderTypeMarket
	}

	return broker.PlaceOrderParams{
		Variety:         broker.VarietyRegular,
		Exchange:        pos.Exchange,
		TradingSymbol:   pos.TradingSymbol,
		TransactionType: transactionType,
		Quantity:        int(pos.AbsQuantity()),
		Product:         string(pos.Product),
		OrderType:       orderType,
		Tag:             exitTag(kind, rule.ID),
	}
}

// exitTag builds the idempotency marker the Position Monitor reads back to
// distinguish system-generated exit orders from manual ones:
// "{TP|SL|SQ}_{first 8 chars of rule_id}".
func exitTag(kind models.TriggerType, ruleID string) string {
	prefix := "SQ"
	switch kind {
	case models.TriggerTakeProfit:
		prefix = "TP"
	case models.TriggerStopLoss:
		prefix = "SL"
	}
	short := ruleID
	if len(short) > 8 {
		short = short[:8]
	}
	return prefix + "_" + short
}

func (e *Executor) writeLog(ctx context.Context, entry *models.TradeLog) {
	if e.logs == nil {
		return
	}
	if err := e.logs.LogTrade(ctx, entry); err != nil {
		e.log.Error("trade log write failed", applog.Err(err))
	}
}

func (e *Executor) publish(eventType models.EventType, userID int64, trade *models.ActiveTrade, kind models.TriggerType, extra map[string]interface{}) {
	if e.bus == nil {
		return
	}
	data := map[string]interface{}{
		"symbol":       trade.Position.TradingSymbol,
		"exchange":     trade.Position.Exchange,
		"trigger_type": kind,
		"rule_id":      trade.Rule.ID,
	}
	for k, v := range extra {
		data[k] = v
	}
	e.bus.Publish(eventbus.NewEvent(eventType, userID, data))
}
