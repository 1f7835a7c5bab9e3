// Package engine implements the Engine Supervisor: the per-user control
// loop that ties the Position Monitor, Price Source, Rules Matcher, and
// Trigger Evaluator together and drives the Exit Executor on a fired
// trigger.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/devanshjainms/exitengine/internal/broker"
	"github.com/devanshjainms/exitengine/internal/eventbus"
	"github.com/devanshjainms/exitengine/internal/executor"
	"github.com/devanshjainms/exitengine/internal/models"
	"github.com/devanshjainms/exitengine/internal/position"
	"github.com/devanshjainms/exitengine/internal/price"
	"github.com/devanshjainms/exitengine/internal/rules"
	"github.com/devanshjainms/exitengine/internal/trigger"
	"github.com/devanshjainms/exitengine/pkg/applog"
)

// ErrNotConfigured is returned by Start when the user has no active,
// token-valid broker account under the supervisor's default broker.
var ErrNotConfigured = errors.New("engine: user has no active broker account")

// exitOrderTimeout bounds one full Exit Executor attempt, including the
// broker client's own internal retry/backoff.
const exitOrderTimeout = 30 * time.Second

// UserStore is the subset of the user repository the supervisor needs, to
// resolve the IANA zone TimeCondition comparisons run in.
type UserStore interface {
	GetTimeZone(ctx context.Context, userID int64) (string, error)
}

// Config tunes the cadence of the three per-user activities and the
// broker-auth failure threshold at which the user's engine is stopped (it
// is not restarted automatically).
type Config struct {
	DefaultBrokerID            string
	PositionPollInterval       time.Duration
	PriceSource                price.Config
	RulesRefreshInterval       time.Duration
	MaxConsecutiveAuthFailures int32
}

// DefaultConfig matches the documented defaults: 1.5s position poll, 1s
// price poll fallback, 1s rules refresh, stop the user's engine after 3
// consecutive broker-auth failures.
func DefaultConfig() Config {
	return Config{
		DefaultBrokerID:            "kite",
		PositionPollInterval:       position.DefaultPollInterval,
		PriceSource:                price.DefaultConfig(),
		RulesRefreshInterval:       rules.DefaultRefreshInterval,
		MaxConsecutiveAuthFailures: 3,
	}
}

// Supervisor owns every running user's engine. One process runs exactly
// one Supervisor; it also hosts the process-wide maintenance loop (see
// maintenance.go).
type Supervisor struct {
	cfg       Config
	factory   *broker.Factory
	rulesStore rules.Store
	users     UserStore
	exec      *executor.Executor
	bus       *eventbus.Bus
	log       *applog.Logger

	mu      sync.Mutex
	running map[int64]*userEngine
}

// NewSupervisor wires a Supervisor. bus may be nil (no event publication);
// users may be nil, in which case every user runs in Asia/Kolkata.
func NewSupervisor(cfg Config, factory *broker.Factory, rulesStore rules.Store, users UserStore, exec *executor.Executor, bus *eventbus.Bus, log *applog.Logger) *Supervisor {
	if log == nil {
		log = applog.L()
	}
	if cfg.DefaultBrokerID == "" {
		cfg.DefaultBrokerID = "kite"
	}
	if cfg.MaxConsecutiveAuthFailures <= 0 {
		cfg.MaxConsecutiveAuthFailures = 3
	}
	return &Supervisor{
		cfg:        cfg,
		factory:    factory,
		rulesStore: rulesStore,
		users:      users,
		exec:       exec,
		bus:        bus,
		log:        log.WithComponent("engine_supervisor"),
		running:    make(map[int64]*userEngine),
	}
}

// userEngine is the per-user runtime state. All activities share runCtx,
// cancelled by Stop.
type userEngine struct {
	userID   int64
	brokerID string
	client   broker.Client

	matcher *rules.Matcher
	monitor *position.Monitor
	cache   *price.Cache
	source  *price.Source
	loc     *time.Location

	cancel context.CancelFunc
	wg     sync.WaitGroup

	tradesMu sync.RWMutex
	trades   map[string]*models.ActiveTrade

	consecutiveAuthFailures int32
	startedAt               time.Time
}

// Start launches userID's engine. Idempotent: calling Start on an
// already-running user is a no-op that returns nil.
func (s *Supervisor) Start(ctx context.Context, userID int64) error {
	s.mu.Lock()
	if _, ok := s.running[userID]; ok {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	client, err := s.factory.GetClient(ctx, userID, s.cfg.DefaultBrokerID)
	if err != nil {
		return fmt.Errorf("engine: get broker client: %w", err)
	}
	if client == nil {
		return ErrNotConfigured
	}

	loc := s.resolveLocation(ctx, userID)

	matcher := rules.NewMatcher(userID, s.rulesStore, s.log)
	if err := matcher.Reload(ctx); err != nil {
		return fmt.Errorf("engine: initial rule load: %w", err)
	}

	cache := price.NewCache()
	var ticker broker.Ticker
	if provider, ok := client.(broker.TickerProvider); ok {
		ticker = provider.NewTickerForAccount(s.log)
	}
	source := price.NewSource(client, ticker, cache, s.cfg.PriceSource, s.log)
	monitor := position.NewMonitor(userID, client, s.log)

	ue := &userEngine{
		userID:    userID,
		brokerID:  s.cfg.DefaultBrokerID,
		client:    client,
		matcher:   matcher,
		monitor:   monitor,
		cache:     cache,
		source:    source,
		loc:       loc,
		trades:    make(map[string]*models.ActiveTrade),
		startedAt: time.Now(),
	}

	runCtx, cancel := context.WithCancel(context.Background())
	ue.cancel = cancel

	s.wireMonitor(runCtx, ue)
	source.OnPriceUpdate(func(token uint32, px float64) { s.onPriceUpdate(runCtx, ue, token, px) })

	s.mu.Lock()
	s.running[userID] = ue
	s.mu.Unlock()

	ue.wg.Add(3)
	go s.runGuarded(ue, "position_poll", func() { s.runPositionPoll(runCtx, ue) })
	go s.runGuarded(ue, "price_source", func() { source.Start(runCtx); <-runCtx.Done() })
	go s.runGuarded(ue, "rules_refresh", func() { matcher.StartRefresh(runCtx, s.cfg.RulesRefreshInterval) })

	s.publish(models.EventEngineStarted, userID, nil)
	s.log.Info("engine started", applog.UserID(userID), applog.Broker(s.cfg.DefaultBrokerID))
	return nil
}

// Stop cancels userID's three activities, waits for them to drain,
// unsubscribes every tracked token, and drops the broker client
// reference. Idempotent on an already-stopped user.
func (s *Supervisor) Stop(userID int64) error {
	s.mu.Lock()
	ue, ok := s.running[userID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.running, userID)
	s.mu.Unlock()

	ue.cancel()
	ue.wg.Wait()

	ue.tradesMu.RLock()
	tokens := make([]uint32, 0, len(ue.trades))
	for _, t := range ue.trades {
		if tok := t.Position.InstrumentToken; tok != 0 {
			tokens = append(tokens, tok)
		}
	}
	ue.tradesMu.RUnlock()
	for _, tok := range tokens {
		ue.source.Untrack(tok)
	}

	s.publish(models.EventEngineStopped, userID, nil)
	s.log.Info("engine stopped", applog.UserID(userID))
	return nil
}

// Status is the point-in-time summary returned for the engine status API.
type Status struct {
	Running            bool
	ActiveTradesCount  int
	PositionsMonitored int
	RulesLoaded        int
	TickerConnected    bool
	StartedAt          time.Time
}

// Status reports userID's current engine state. A never-started or
// already-stopped user reports Running: false and zero values otherwise.
func (s *Supervisor) Status(userID int64) Status {
	s.mu.Lock()
	ue, ok := s.running[userID]
	s.mu.Unlock()
	if !ok {
		return Status{}
	}
	ue.tradesMu.RLock()
	tradeCount := len(ue.trades)
	ue.tradesMu.RUnlock()
	return Status{
		Running:            true,
		ActiveTradesCount:  tradeCount,
		PositionsMonitored: ue.monitor.Count(),
		RulesLoaded:        ue.matcher.RuleCount(),
		TickerConnected:    ue.source.IsStreaming(),
		StartedAt:          ue.startedAt,
	}
}

// ActiveTrades returns a point-in-time snapshot of userID's tracked
// trades, or nil if the user's engine isn't running.
func (s *Supervisor) ActiveTrades(userID int64) []models.TradeSnapshot {
	s.mu.Lock()
	ue, ok := s.running[userID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	ue.tradesMu.RLock()
	defer ue.tradesMu.RUnlock()
	out := make([]models.TradeSnapshot, 0, len(ue.trades))
	for _, t := range ue.trades {
		out = append(out, t.Snapshot())
	}
	return out
}

// IsRunning reports whether userID currently has an engine running.
func (s *Supervisor) IsRunning(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[userID]
	return ok
}

// runningUserIDs returns every currently running user, for the
// maintenance loop's lightweight broker health check.
func (s *Supervisor) runningUserIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.running))
	for id := range s.running {
		ids = append(ids, id)
	}
	return ids
}

func (s *Supervisor) resolveLocation(ctx context.Context, userID int64) *time.Location {
	tz := "Asia/Kolkata"
	if s.users != nil {
		if userTZ, err := s.users.GetTimeZone(ctx, userID); err == nil && userTZ != "" {
			tz = userTZ
		}
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("unknown time zone, falling back to Asia/Kolkata", applog.UserID(userID), applog.String("time_zone", tz))
		loc, _ = time.LoadLocation("Asia/Kolkata")
	}
	if loc == nil {
		loc = time.UTC
	}
	return loc
}

// runGuarded runs fn to completion, converting a panic into a logged
// SYSTEM_ERROR event rather than letting it bring down the other
// activities or the process.
func (s *Supervisor) runGuarded(ue *userEngine, activity string, fn func()) {
	defer ue.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("engine activity panicked", applog.UserID(ue.userID), applog.String("activity", activity), applog.Any("panic", r))
			s.publish(models.EventSystemError, ue.userID, map[string]interface{}{
				"activity": activity,
				"panic":    fmt.Sprint(r),
			})
		}
	}()
	fn()
}

func (s *Supervisor) publish(eventType models.EventType, userID int64, data map[string]interface{}) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.NewEvent(eventType, userID, data))
}
