package engine

import (
	"context"
	"sync"
	"time"

	"github.com/devanshjainms/exitengine/pkg/applog"
)

// SessionPruner deletes expired login sessions.
type SessionPruner interface {
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// TradeLogPruner deletes trade log rows older than a retention window.
type TradeLogPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// HealthChecker samples broker connectivity for a single user, used to
// populate the /health endpoint without touching any user's ActiveTrade set.
type HealthChecker interface {
	Ping(ctx context.Context, userID int64, brokerID string) error
}

// MaintenanceConfig tunes the process-wide scheduler's three independent
// tickers and the trade log retention window.
type MaintenanceConfig struct {
	SessionSweepInterval  time.Duration
	TradeLogSweepInterval time.Duration
	HealthCheckInterval   time.Duration
	TradeLogRetention     time.Duration
}

// DefaultMaintenanceConfig matches the documented defaults: hourly session
// sweep, daily trade log pruning at a 90-day retention, five-minute health
// sampling.
func DefaultMaintenanceConfig() MaintenanceConfig {
	return MaintenanceConfig{
		SessionSweepInterval:  time.Hour,
		TradeLogSweepInterval: 24 * time.Hour,
		HealthCheckInterval:   5 * time.Minute,
		TradeLogRetention:     90 * 24 * time.Hour,
	}
}

// Maintenance is the process-wide periodic scheduler the Supervisor owns
// alongside its per-user activities. None of its three loops ever touch a
// user's ActiveTrade set; they only reach the repository layer and the
// health snapshot consumed by /health.
type Maintenance struct {
	cfg      MaintenanceConfig
	sessions SessionPruner
	logs     TradeLogPruner
	health   HealthChecker
	sup      *Supervisor
	log      *applog.Logger

	healthMu      sync.Mutex
	lastHealthErr error
}

// NewMaintenance builds a Maintenance loop. Any collaborator left nil
// disables that loop's ticker entirely (useful when a deployment has no
// session store, e.g. stateless JWT auth with no server-side revocation).
func NewMaintenance(cfg MaintenanceConfig, sessions SessionPruner, logs TradeLogPruner, health HealthChecker, sup *Supervisor, log *applog.Logger) *Maintenance {
	if log == nil {
		log = applog.L()
	}
	return &Maintenance{
		cfg:      cfg,
		sessions: sessions,
		logs:     logs,
		health:   health,
		sup:      sup,
		log:      log.WithComponent("engine_maintenance"),
	}
}

// Run blocks until ctx is cancelled, driving all three ticker loops
// concurrently so a slow health check never delays session or trade log
// pruning (and vice versa).
func (m *Maintenance) Run(ctx context.Context) {
	var loops []func()
	if m.sessions != nil {
		loops = append(loops, func() { m.runSessionSweep(ctx) })
	}
	if m.logs != nil {
		loops = append(loops, func() { m.runTradeLogSweep(ctx) })
	}
	if m.health != nil {
		loops = append(loops, func() { m.runHealthCheck(ctx) })
	}
	if len(loops) == 0 {
		<-ctx.Done()
		return
	}
	done := make(chan struct{}, len(loops))
	for _, loop := range loops {
		go func(l func()) {
			defer func() { done <- struct{}{} }()
			l()
		}(loop)
	}
	for range loops {
		<-done
	}
}

func (m *Maintenance) runSessionSweep(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.sessions.DeleteExpiredSessions(ctx)
			if err != nil {
				m.log.Warn("session sweep failed", applog.Any("error", err))
				continue
			}
			if n > 0 {
				m.log.Info("expired sessions pruned", applog.Int64("count", n))
			}
		}
	}
}

func (m *Maintenance) runTradeLogSweep(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.TradeLogSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-m.cfg.TradeLogRetention)
			n, err := m.logs.DeleteOlderThan(ctx, cutoff)
			if err != nil {
				m.log.Warn("trade log sweep failed", applog.Any("error", err))
				continue
			}
			if n > 0 {
				m.log.Info("old trade log rows pruned", applog.Int64("count", n), applog.Any("cutoff", cutoff))
			}
		}
	}
}

// runHealthCheck samples one running user's broker connectivity per tick
// (round-robin would add state for little benefit at this cadence — a
// handful of users is enough to detect a broker-wide outage).
func (m *Maintenance) runHealthCheck(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids := m.sup.runningUserIDs()
			if len(ids) == 0 {
				m.healthMu.Lock()
				m.lastHealthErr = nil
				m.healthMu.Unlock()
				continue
			}
			userID := ids[0]
			err := m.health.Ping(ctx, userID, m.sup.cfg.DefaultBrokerID)
			m.healthMu.Lock()
			m.lastHealthErr = err
			m.healthMu.Unlock()
			if err != nil {
				m.log.Warn("broker health check failed", applog.UserID(userID), applog.Any("error", err))
			}
		}
	}
}

// LastHealthErr reports the most recent broker health check's outcome, for
// the /health handler to surface without blocking on a live probe.
func (m *Maintenance) LastHealthErr() error {
	m.healthMu.Lock()
	defer m.healthMu.Unlock()
	return m.lastHealthErr
}
