package wshub

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/devanshjainms/exitengine/internal/eventbus"
	"github.com/devanshjainms/exitengine/internal/models"
)

func newTestRequest() (*http.Request, error) {
	return http.NewRequest(http.MethodGet, "/ws/stream", nil)
}

func TestHub_BroadcastDeliversToRegisteredClient(t *testing.T) {
	hub := NewHub(nil)
	stop := make(chan struct{})
	go hub.Run(stop)
	defer close(stop)

	client := &Client{hub: hub, send: make(chan []byte, 4)}
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast("TP_TRIGGERED", map[string]string{"symbol": "NIFTY"})

	select {
	case msg := <-client.send:
		var decoded Message
		if err := json.Unmarshal(msg, &decoded); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if decoded.Type != "TP_TRIGGERED" {
			t.Errorf("Type = %q, want TP_TRIGGERED", decoded.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestHub_SubscribeEventBus_ForwardsEvents(t *testing.T) {
	hub := NewHub(nil)
	stop := make(chan struct{})
	go hub.Run(stop)
	defer close(stop)

	bus := eventbus.New(nil)
	hub.SubscribeEventBus(bus)

	client := &Client{hub: hub, send: make(chan []byte, 4)}
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	bus.Publish(eventbus.NewEvent(models.EventEngineStarted, 42, nil))

	select {
	case msg := <-client.send:
		var decoded Message
		if err := json.Unmarshal(msg, &decoded); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if decoded.Type != string(models.EventEngineStarted) {
			t.Errorf("Type = %q, want %q", decoded.Type, models.EventEngineStarted)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for forwarded event")
	}
}

func TestHub_UnregisterClosesSendChannel(t *testing.T) {
	hub := NewHub(nil)
	stop := make(chan struct{})
	go hub.Run(stop)
	defer close(stop)

	client := &Client{hub: hub, send: make(chan []byte, 4)}
	hub.register <- client
	time.Sleep(10 * time.Millisecond)
	hub.unregister <- client

	select {
	case _, ok := <-client.send:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestOriginChecker_EmptyOriginAllowed(t *testing.T) {
	c := NewOriginChecker()
	req, _ := newTestRequest()
	if !c.check(req) {
		t.Fatal("request with no Origin header must be allowed (non-browser clients)")
	}
}
