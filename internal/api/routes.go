// Package api assembles the HTTP surface: route registration and the
// Dependencies every handler group is constructed from.
package api

import (
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/devanshjainms/exitengine/internal/api/handlers"
	"github.com/devanshjainms/exitengine/internal/api/middleware"
	"github.com/devanshjainms/exitengine/internal/broker"
	"github.com/devanshjainms/exitengine/internal/engine"
	"github.com/devanshjainms/exitengine/internal/repository"
	"github.com/devanshjainms/exitengine/internal/wshub"
	"github.com/devanshjainms/exitengine/pkg/cryptoutil"
)

// Dependencies carries every collaborator the route tree needs to build
// its handler groups.
type Dependencies struct {
	Rules          *repository.RuleRepository
	BrokerAccounts *repository.BrokerAccountRepository
	TradeLogs      *repository.TradeLogRepository
	Users          *repository.UserRepository
	Sessions       *repository.SessionRepository
	Factory        *broker.Factory
	Cipher         *cryptoutil.CredentialCipher
	Supervisor     *engine.Supervisor
	Maintenance    *engine.Maintenance
	Hub            *wshub.Hub

	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// SetupRoutes builds the full route tree: global middleware (recovery,
// logging, CORS), unauthenticated auth/health/metrics/websocket endpoints,
// an authenticated /api/v1 subrouter, and debug endpoints behind Basic
// Auth.
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)

	ruleHandler := handlers.NewRuleHandler(deps.Rules)
	brokerHandler := handlers.NewBrokerAccountHandler(deps.BrokerAccounts, deps.Factory, deps.Cipher)
	engineHandler := handlers.NewEngineHandler(deps.Supervisor)
	tradeLogHandler := handlers.NewTradeLogHandler(deps.TradeLogs)

	// Auth routes are unauthenticated by construction (they issue the
	// tokens everything else requires).
	auth := router.PathPrefix("/api/v1/auth").Subrouter()
	if deps.Users != nil && deps.Sessions != nil {
		authHandler := handlers.NewAuthHandler(deps.Users, deps.Sessions, deps.JWTSecret, deps.AccessTTL, deps.RefreshTTL)
		auth.HandleFunc("/signup", authHandler.Signup).Methods("POST")
		auth.HandleFunc("/login", authHandler.Login).Methods("POST")
		auth.HandleFunc("/refresh", authHandler.Refresh).Methods("POST")
		auth.HandleFunc("/logout", authHandler.Logout).Methods("POST")
	}

	apiV1 := router.PathPrefix("/api/v1").Subrouter()
	apiV1.Use(middleware.NewAuth(deps.JWTSecret))

	apiV1.HandleFunc("/rules", ruleHandler.ListRules).Methods("GET")
	apiV1.HandleFunc("/rules", ruleHandler.CreateRule).Methods("POST")
	apiV1.HandleFunc("/rules/{id}", ruleHandler.GetRule).Methods("GET")
	apiV1.HandleFunc("/rules/{id}", ruleHandler.UpdateRule).Methods("PUT")
	apiV1.HandleFunc("/rules/{id}", ruleHandler.DeleteRule).Methods("DELETE")

	apiV1.HandleFunc("/brokers", brokerHandler.ListBrokerAccounts).Methods("GET")
	apiV1.HandleFunc("/brokers/{id}/link", brokerHandler.LinkBrokerAccount).Methods("POST")
	apiV1.HandleFunc("/brokers/{id}/link", brokerHandler.UnlinkBrokerAccount).Methods("DELETE")

	apiV1.HandleFunc("/engine/start", engineHandler.StartEngine).Methods("POST")
	apiV1.HandleFunc("/engine/stop", engineHandler.StopEngine).Methods("POST")
	apiV1.HandleFunc("/engine/status", engineHandler.EngineStatus).Methods("GET")
	apiV1.HandleFunc("/engine/trades", engineHandler.EngineTrades).Methods("GET")

	apiV1.HandleFunc("/trade-logs", tradeLogHandler.ListTradeLogs).Methods("GET")

	if deps.Hub != nil {
		checker := wshub.NewOriginChecker()
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			wshub.ServeWS(deps.Hub, checker, w, r)
		}).Methods("GET")
	}

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if deps.Maintenance != nil {
			if err := deps.Maintenance.LastHealthErr(); err != nil {
				writeHealthResponse(w, http.StatusServiceUnavailable, "degraded", err.Error())
				return
			}
		}
		writeHealthResponse(w, http.StatusOK, "ok", "")
	}).Methods("GET")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	debug := router.PathPrefix("/debug/pprof").Subrouter()
	debug.Use(middleware.DebugAuth)
	debug.HandleFunc("/", pprof.Index)
	debug.HandleFunc("/cmdline", pprof.Cmdline)
	debug.HandleFunc("/profile", pprof.Profile)
	debug.HandleFunc("/symbol", pprof.Symbol)
	debug.HandleFunc("/trace", pprof.Trace)
	debug.HandleFunc("/heap", func(w http.ResponseWriter, r *http.Request) { pprof.Handler("heap").ServeHTTP(w, r) })
	debug.HandleFunc("/goroutine", func(w http.ResponseWriter, r *http.Request) { pprof.Handler("goroutine").ServeHTTP(w, r) })
	debug.HandleFunc("/allocs", func(w http.ResponseWriter, r *http.Request) { pprof.Handler("allocs").ServeHTTP(w, r) })

	router.Handle("/debug/runtime", middleware.DebugAuth(http.HandlerFunc(runtimeStatsHandler))).Methods("GET")

	return router
}
