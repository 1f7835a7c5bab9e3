// Package position implements the Position Monitor: polling a broker's net
// positions and diffing them against what was last observed to detect
// opens, quantity changes, and closes.
package position

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/devanshjainms/exitengine/internal/broker"
	"github.com/devanshjainms/exitengine/internal/models"
	"github.com/devanshjainms/exitengine/pkg/applog"
)

// DefaultPollInterval is how often Monitor polls Positions when no other
// interval is supplied to StartPoll.
const DefaultPollInterval = 1500 * time.Millisecond

// Monitor tracks one user's broker positions across successive polls,
// emitting callbacks on open/update/close. It holds no opinion on exit
// rules or triggers — internal/trigger and internal/engine own that.
type Monitor struct {
	userID int64
	client broker.Client
	log    *applog.Logger

	mu       sync.RWMutex
	observed map[string]*models.Position

	consecutiveErrors int32

	onOpened  func(pos *models.Position)
	onUpdated func(pos *models.Position, prevQuantity int64)
	onClosed  func(pos *models.Position)
}

// NewMonitor builds a Monitor for userID's positions via client. Monitor
// only invokes callbacks; publishing POSITION_OPENED/UPDATED/CLOSED events
// on the Event Bus is the caller's responsibility (see internal/engine).
func NewMonitor(userID int64, client broker.Client, log *applog.Logger) *Monitor {
	if log == nil {
		log = applog.L()
	}
	return &Monitor{
		userID:   userID,
		client:   client,
		log:      log.WithComponent("position_monitor").WithUserID(userID),
		observed: make(map[string]*models.Position),
	}
}

// OnOpened registers the callback fired when a new non-flat position
// appears that was not previously tracked.
func (m *Monitor) OnOpened(fn func(pos *models.Position)) { m.onOpened = fn }

// OnUpdated registers the callback fired when a tracked position's
// quantity changes (partial fill, scale-in, scale-out) without going flat.
func (m *Monitor) OnUpdated(fn func(pos *models.Position, prevQuantity int64)) { m.onUpdated = fn }

// OnClosed registers the callback fired when a tracked position goes flat
// or disappears from the broker's position report entirely.
func (m *Monitor) OnClosed(fn func(pos *models.Position)) { m.onClosed = fn }

// ConsecutiveErrors returns the number of consecutive failed polls. The
// Engine Supervisor does not read it; it keeps its own count of
// broker-auth failures.
func (m *Monitor) ConsecutiveErrors() int32 {
	return atomic.LoadInt32(&m.consecutiveErrors)
}

// Poll fetches the current net position set and diffs it against what was
// last observed, invoking callbacks for every change detected.
func (m *Monitor) Poll(ctx context.Context) error {
	result, err := m.client.Positions(ctx)
	if err != nil {
		atomic.AddInt32(&m.consecutiveErrors, 1)
		m.log.Warn("position poll failed", applog.Err(err))
		return err
	}
	atomic.StoreInt32(&m.consecutiveErrors, 0)

	now := time.Now()
	m.diff(result.Net, now)
	return nil
}

// diff reconciles current against m.observed: new non-flat keys open,
// existing keys with a changed quantity update, flat or vanished keys
// close. LastPrice/LastUpdated refresh on every poll regardless of
// whether a lifecycle event fires, so Snapshot always reflects the latest
// broker-reported price.
func (m *Monitor) diff(current []broker.Position, now time.Time) {
	seen := make(map[string]struct{}, len(current))

	for _, bp := range current {
		pos := toModelPosition(bp, now)
		key := pos.Key()
		seen[key] = struct{}{}

		if pos.IsFlat() {
			m.mu.Lock()
			prev, tracked := m.observed[key]
			if tracked {
				delete(m.observed, key)
			}
			m.mu.Unlock()
			if tracked {
				m.emitClosed(prev)
			}
			continue
		}

		m.mu.Lock()
		prev, tracked := m.observed[key]
		if !tracked {
			pos.FirstSeen = now
			m.observed[key] = pos
			m.mu.Unlock()
			m.emitOpened(pos)
			continue
		}

		prevQuantity := prev.Quantity
		pos.FirstSeen = prev.FirstSeen
		m.observed[key] = pos
		m.mu.Unlock()

		if pos.Quantity != prevQuantity {
			m.emitUpdated(pos, prevQuantity)
		}
	}

	m.mu.Lock()
	var vanished []*models.Position
	for key, prev := range m.observed {
		if _, ok := seen[key]; !ok {
			vanished = append(vanished, prev)
			delete(m.observed, key)
		}
	}
	m.mu.Unlock()

	for _, prev := range vanished {
		m.emitClosed(prev)
	}
}

func toModelPosition(bp broker.Position, now time.Time) *models.Position {
	return &models.Position{
		Exchange:        bp.Exchange,
		TradingSymbol:   bp.TradingSymbol,
		InstrumentToken: bp.InstrumentToken,
		Product:         models.Product(bp.Product),
		Quantity:        int64(bp.Quantity),
		AveragePrice:    bp.AveragePrice,
		LastPrice:       bp.LastPrice,
		BuyQuantity:     int64(bp.BuyQuantity),
		SellQuantity:    int64(bp.SellQuantity),
		BuyPrice:        bp.BuyPrice,
		SellPrice:       bp.SellPrice,
		Multiplier:      bp.Multiplier,
		LastUpdated:     now,
	}
}

func (m *Monitor) emitOpened(pos *models.Position) {
	m.log.Info("position opened", applog.Symbol(pos.TradingSymbol), applog.Quantity(int(pos.Quantity)))
	if m.onOpened != nil {
		m.onOpened(pos)
	}
}

func (m *Monitor) emitUpdated(pos *models.Position, prevQuantity int64) {
	m.log.Info("position updated", applog.Symbol(pos.TradingSymbol), applog.Quantity(int(pos.Quantity)))
	if m.onUpdated != nil {
		m.onUpdated(pos, prevQuantity)
	}
}

func (m *Monitor) emitClosed(pos *models.Position) {
	m.log.Info("position closed", applog.Symbol(pos.TradingSymbol))
	if m.onClosed != nil {
		m.onClosed(pos)
	}
}

// StartPoll runs Poll on a ticker until ctx is cancelled. Poll errors are
// logged and do not stop the loop.
func (m *Monitor) StartPoll(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = m.Poll(ctx)
		}
	}
}

// Snapshot returns a copy of every currently tracked non-flat position,
// keyed by Position.Key().
func (m *Monitor) Snapshot() map[string]*models.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*models.Position, len(m.observed))
	for k, v := range m.observed {
		cp := *v
		out[k] = &cp
	}
	return out
}

// Count returns the number of currently tracked non-flat positions.
func (m *Monitor) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.observed)
}

// SystemOrderTags polls the account's order book and returns the tags of
// orders placed by the engine itself (per broker.IsSystemTag), so callers
// can distinguish system-driven fills from manual trading activity when
// reconciling a CLOSED_EXTERNAL position.
func (m *Monitor) SystemOrderTags(ctx context.Context) ([]string, error) {
	orders, err := m.client.Orders(ctx)
	if err != nil {
		return nil, err
	}
	var tags []string
	for _, o := range orders {
		if broker.IsSystemTag(o.Tag) {
			tags = append(tags, o.Tag)
		}
	}
	return tags, nil
}
