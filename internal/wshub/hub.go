// Package wshub implements the UI/ops websocket fanout hub: one goroutine
// owns the client registry and broadcast delivery, fed by the Event Bus
// rather than any broker or exchange connection.
package wshub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/devanshjainms/exitengine/internal/eventbus"
	"github.com/devanshjainms/exitengine/internal/models"
	"github.com/devanshjainms/exitengine/pkg/applog"
)

// Message is the envelope every broadcast client receives.
type Message struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Hub maintains the set of connected clients and broadcasts Event Bus
// traffic to them. The zero value is not usable; construct with NewHub.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	log        *applog.Logger
}

// NewHub builds an empty Hub. Call Run in its own goroutine before
// subscribing it to an event bus.
func NewHub(log *applog.Logger) *Hub {
	if log == nil {
		log = applog.L()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log.WithComponent("wshub"),
	}
}

// Run drives the registry and broadcast loop until stopCh is closed.
// Broadcasting copies the client set under a read lock, then sends outside
// any lock, so a single slow client can never hold up Run's own loop; a
// client whose send buffer is full is evicted instead of blocking.
func (h *Hub) Run(stopCh <-chan struct{}) {
	for {
		select {
		case <-stopCh:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
			}
			h.clients = make(map[*Client]bool)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			targets := make([]*Client, 0, len(h.clients))
			for c := range h.clients {
				targets = append(targets, c)
			}
			h.mu.RUnlock()

			for _, c := range targets {
				select {
				case c.send <- message:
				default:
					h.log.Warn("dropping slow websocket client")
					go func(c *Client) { h.unregister <- c }(c)
				}
			}
		}
	}
}

// Broadcast marshals v into a Message of the given type and enqueues it
// for delivery to every connected client.
func (h *Hub) Broadcast(msgType string, v interface{}) {
	payload, err := json.Marshal(Message{Type: msgType, Timestamp: time.Now(), Data: v})
	if err != nil {
		h.log.Error("failed to marshal broadcast message", applog.Err(err))
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.log.Warn("broadcast channel full, dropping message", applog.String("type", msgType))
	}
}

// SubscribeEventBus wires the hub to every event the bus carries, so the
// UI gets a live feed of position/trade/engine activity without the hub
// ever touching engine internals directly.
func (h *Hub) SubscribeEventBus(bus *eventbus.Bus) {
	bus.SubscribeAll(func(e models.Event) {
		h.Broadcast(string(e.Type), e)
	})
}

// ClientCount reports the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
