package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/devanshjainms/exitengine/internal/broker"
	"github.com/devanshjainms/exitengine/internal/models"
	"github.com/devanshjainms/exitengine/internal/trigger"
	"github.com/devanshjainms/exitengine/pkg/applog"
)

// wireMonitor connects userID's Position Monitor to rule matching (on
// open), the ActiveTrade set (on update/close), and price tracking
// (Track/Untrack as trades come and go).
func (s *Supervisor) wireMonitor(runCtx context.Context, ue *userEngine) {
	ue.monitor.OnOpened(func(pos *models.Position) {
		s.handlePositionOpened(runCtx, ue, pos)
	})
	ue.monitor.OnUpdated(func(pos *models.Position, prevQuantity int64) {
		s.handlePositionUpdated(ue, pos)
	})
	ue.monitor.OnClosed(func(pos *models.Position) {
		s.handlePositionClosed(ue, pos)
	})
}

func (s *Supervisor) handlePositionOpened(ctx context.Context, ue *userEngine, pos *models.Position) {
	s.publish(models.EventPositionOpened, ue.userID, map[string]interface{}{
		"symbol": pos.TradingSymbol, "exchange": pos.Exchange, "quantity": pos.Quantity,
	})

	rule, tp, sl, ok := ue.matcher.Match(pos)
	if !ok {
		s.log.Debug("no exit rule matched position, skipping",
			applog.UserID(ue.userID), applog.Symbol(pos.TradingSymbol))
		return
	}

	trade := models.NewActiveTrade(pos, rule, tp, sl, time.Now())

	ue.tradesMu.Lock()
	ue.trades[pos.Key()] = trade
	ue.tradesMu.Unlock()

	s.publish(models.EventRuleMatched, ue.userID, map[string]interface{}{
		"symbol": pos.TradingSymbol, "rule_id": rule.ID,
	})

	if pos.InstrumentToken != 0 {
		ue.source.Track(pos.InstrumentToken, pos.Exchange+":"+pos.TradingSymbol)
		if last, found := ue.cache.Get(pos.InstrumentToken); found {
			s.onPriceUpdate(ctx, ue, pos.InstrumentToken, last)
		}
	}
}

func (s *Supervisor) handlePositionUpdated(ue *userEngine, pos *models.Position) {
	ue.tradesMu.RLock()
	trade, ok := ue.trades[pos.Key()]
	ue.tradesMu.RUnlock()
	if !ok {
		return
	}
	trade.UpdatePosition(pos)
	s.publish(models.EventPositionUpdated, ue.userID, map[string]interface{}{
		"symbol": pos.TradingSymbol, "exchange": pos.Exchange, "quantity": pos.Quantity,
	})
}

func (s *Supervisor) handlePositionClosed(ue *userEngine, pos *models.Position) {
	ue.tradesMu.Lock()
	trade, ok := ue.trades[pos.Key()]
	if ok {
		delete(ue.trades, pos.Key())
	}
	ue.tradesMu.Unlock()

	if ok && !trade.Triggered() {
		trade.CloseExternal()
	}
	if pos.InstrumentToken != 0 {
		ue.source.Untrack(pos.InstrumentToken)
	}
	s.publish(models.EventPositionClosed, ue.userID, map[string]interface{}{
		"symbol": pos.TradingSymbol, "exchange": pos.Exchange,
	})
}

// onPriceUpdate is the Trigger Evaluation activity: it runs synchronously
// inside the Price Source's delivery path (streaming tick callback or poll
// sweep), evaluating every trade currently holding token.
func (s *Supervisor) onPriceUpdate(ctx context.Context, ue *userEngine, token uint32, px float64) {
	ue.tradesMu.RLock()
	var matches []*models.ActiveTrade
	for _, t := range ue.trades {
		if t.Position.InstrumentToken == token {
			matches = append(matches, t)
		}
	}
	ue.tradesMu.RUnlock()

	for _, trade := range matches {
		s.evaluateTrade(ctx, ue, trade, px)
	}
}

func (s *Supervisor) evaluateTrade(ctx context.Context, ue *userEngine, trade *models.ActiveTrade, px float64) {
	if !trade.UpdatePrice(px) {
		return
	}
	fired, kind := trigger.Evaluate(trade, time.Now(), ue.loc)
	if !fired {
		return
	}
	if !trade.TryTrigger(kind, time.Now()) {
		return
	}

	s.publishPreTriggerEvent(ue.userID, trade, kind)

	execCtx, cancel := context.WithTimeout(context.Background(), exitOrderTimeout)
	defer cancel()
	s.exec.Execute(execCtx, ue.client, ue.userID, trade, kind)
}

func (s *Supervisor) publishPreTriggerEvent(userID int64, trade *models.ActiveTrade, kind models.TriggerType) {
	eventType := models.EventTimeTrigger
	switch kind {
	case models.TriggerTakeProfit:
		eventType = models.EventTPTriggered
	case models.TriggerStopLoss:
		eventType = models.EventSLTriggered
	}
	snap := trade.Snapshot()
	s.publish(eventType, userID, map[string]interface{}{
		"symbol":        snap.TradingSymbol,
		"exchange":      snap.Exchange,
		"rule_id":       snap.RuleID,
		"current_price": snap.CurrentPrice,
	})
}

// runPositionPoll drives Position Monitor polls and the broker-auth
// failure counter the Engine Supervisor owns (Monitor tracks its own
// generic error counter, but only repeated AUTH-kind failures stop the
// engine; nothing restarts it afterwards).
func (s *Supervisor) runPositionPoll(runCtx context.Context, ue *userEngine) {
	ticker := time.NewTicker(s.cfg.PositionPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-runCtx.Done():
			return
		case <-ticker.C:
			err := ue.monitor.Poll(runCtx)
			s.handlePollError(ue, err)
		}
	}
}

func (s *Supervisor) handlePollError(ue *userEngine, err error) {
	if err == nil {
		atomic.StoreInt32(&ue.consecutiveAuthFailures, 0)
		return
	}
	var bErr *broker.Error
	if !errors.As(err, &bErr) || bErr.Kind != broker.KindAuth {
		return
	}
	n := atomic.AddInt32(&ue.consecutiveAuthFailures, 1)
	if n < s.cfg.MaxConsecutiveAuthFailures {
		return
	}
	s.publish(models.EventBrokerDisconnected, ue.userID, map[string]interface{}{"broker_id": ue.brokerID})
	s.log.Warn("broker auth failing repeatedly, stopping engine",
		applog.UserID(ue.userID), applog.Int("consecutive_failures", int(n)))
	go func() { _ = s.Stop(ue.userID) }()
}
