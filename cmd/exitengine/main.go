// Command exitengine runs the trade-exit engine's HTTP API, the per-user
// Engine Supervisor, and the process-wide maintenance scheduler in a
// single process.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/devanshjainms/exitengine/internal/api"
	"github.com/devanshjainms/exitengine/internal/broker"
	_ "github.com/devanshjainms/exitengine/internal/broker/kite"
	"github.com/devanshjainms/exitengine/internal/config"
	"github.com/devanshjainms/exitengine/internal/engine"
	"github.com/devanshjainms/exitengine/internal/eventbus"
	"github.com/devanshjainms/exitengine/internal/executor"
	"github.com/devanshjainms/exitengine/internal/repository"
	"github.com/devanshjainms/exitengine/internal/wshub"
	"github.com/devanshjainms/exitengine/pkg/applog"
	"github.com/devanshjainms/exitengine/pkg/cryptoutil"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := applog.InitGlobalLogger(applog.LogConfig{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatal("failed to connect to database", applog.Err(err))
	}
	defer db.Close()
	log.Info("connected to database")

	rulesRepo := repository.NewRuleRepository(db)
	accountsRepo := repository.NewBrokerAccountRepository(db)
	usersRepo := repository.NewUserRepository(db)
	sessionsRepo := repository.NewSessionRepository(db)
	tradeLogsRepo := repository.NewTradeLogRepository(db)

	cipher := cryptoutil.NewCredentialCipher(cfg.Security.CredentialCipherKey, cfg.Security.CredentialCipherSalt)
	factory := broker.NewFactory(accountsRepo, cipher, log)

	bus := eventbus.New(log)
	exec := executor.NewExecutor(bus, tradeLogsRepo, log)

	hub := wshub.NewHub(log)
	hubStop := make(chan struct{})
	go hub.Run(hubStop)
	hub.SubscribeEventBus(bus)

	supCfg := engine.Config{
		DefaultBrokerID:            cfg.Engine.DefaultBrokerID,
		PositionPollInterval:       cfg.Engine.PositionPollInterval,
		RulesRefreshInterval:       cfg.Engine.RulesRefreshInterval,
		MaxConsecutiveAuthFailures: int32(cfg.Engine.MaxConsecutiveAuthFailures),
	}
	sup := engine.NewSupervisor(supCfg, factory, rulesRepo, usersRepo, exec, bus, log)

	health := &brokerHealthChecker{factory: factory}
	maintCfg := engine.MaintenanceConfig{
		SessionSweepInterval:  cfg.Engine.SessionSweepInterval,
		TradeLogSweepInterval: cfg.Engine.TradeLogSweepInterval,
		HealthCheckInterval:   cfg.Engine.HealthCheckInterval,
		TradeLogRetention:     cfg.Engine.TradeLogRetention,
	}
	maint := engine.NewMaintenance(maintCfg, sessionsRepo, tradeLogsRepo, health, sup, log)

	maintCtx, stopMaint := context.WithCancel(context.Background())
	go maint.Run(maintCtx)

	deps := &api.Dependencies{
		Rules:          rulesRepo,
		BrokerAccounts: accountsRepo,
		TradeLogs:      tradeLogsRepo,
		Users:          usersRepo,
		Sessions:       sessionsRepo,
		Factory:        factory,
		Cipher:         cipher,
		Supervisor:     sup,
		Maintenance:    maint,
		Hub:            hub,
		JWTSecret:      cfg.Security.JWTSecret,
		AccessTTL:      cfg.Security.JWTAccessTTL,
		RefreshTTL:     cfg.Security.JWTRefreshTTL,
	}
	router := api.SetupRoutes(deps)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting server", applog.String("addr", server.Addr))
		var serveErr error
		if cfg.Server.UseHTTPS {
			serveErr = server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			serveErr = server.ListenAndServe()
		}
		if serveErr != nil && serveErr != http.ErrServerClosed {
			log.Fatal("server failed", applog.Err(serveErr))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", applog.Err(err))
	}

	stopMaint()
	close(hubStop)

	log.Info("server exited")
}

func initDatabase(cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password,
		cfg.Database.Name, cfg.Database.SSLMode,
	)

	db, err := sql.Open(cfg.Database.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// brokerHealthChecker adapts the broker Factory into engine.HealthChecker
// by pulling the cached client for (userID, brokerID) and issuing a
// lightweight Positions call.
type brokerHealthChecker struct {
	factory *broker.Factory
}

func (h *brokerHealthChecker) Ping(ctx context.Context, userID int64, brokerID string) error {
	client, err := h.factory.GetClient(ctx, userID, brokerID)
	if err != nil {
		return err
	}
	if client == nil {
		return nil
	}
	_, err = client.Positions(ctx)
	return err
}
