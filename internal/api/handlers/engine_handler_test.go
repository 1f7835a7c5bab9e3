package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/devanshjainms/exitengine/internal/broker"
	"github.com/devanshjainms/exitengine/internal/engine"
	"github.com/devanshjainms/exitengine/internal/eventbus"
	"github.com/devanshjainms/exitengine/internal/executor"
	"github.com/devanshjainms/exitengine/internal/models"
	"github.com/devanshjainms/exitengine/pkg/applog"
)

// noAccountStore reports every user as having no active broker account,
// so Start always returns engine.ErrNotConfigured.
type noAccountStore struct{}

func (noAccountStore) GetByUserAndBroker(ctx context.Context, userID int64, brokerID string) (*models.BrokerAccount, error) {
	return nil, nil
}

func newTestEngineHandler() *EngineHandler {
	factory := broker.NewFactory(noAccountStore{}, nil, applog.L())
	bus := eventbus.New(applog.L())
	exec := executor.NewExecutor(bus, nil, applog.L())
	sup := engine.NewSupervisor(engine.DefaultConfig(), factory, nil, nil, exec, bus, applog.L())
	return NewEngineHandler(sup)
}

func TestEngineHandler_StartEngine_NotConfigured(t *testing.T) {
	h := newTestEngineHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/engine/start", nil)
	w := httptest.NewRecorder()

	h.StartEngine(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for an unconfigured broker, got %d", w.Code)
	}
}

func TestEngineHandler_EngineStatus_NeverStarted(t *testing.T) {
	h := newTestEngineHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/engine/status", nil)
	w := httptest.NewRecorder()

	h.EngineStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestEngineHandler_StopEngine_Idempotent(t *testing.T) {
	h := newTestEngineHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/engine/stop", nil)
	w := httptest.NewRecorder()

	h.StopEngine(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 stopping an engine that never ran, got %d", w.Code)
	}
}
