// Package eventbus implements the core's in-process publish/subscribe
// mechanism: components publish typed events without knowing who, if
// anyone, is listening. Three handler scopes exist, delivered in a fixed
// order on every publish: global (every event), type-scoped (events of one
// EventType, any user), and user-scoped (events of one EventType, one
// user). A panicking or erroring handler never stops delivery to the
// handlers after it.
package eventbus

import (
	"sync"

	"github.com/google/uuid"

	"github.com/devanshjainms/exitengine/internal/models"
	"github.com/devanshjainms/exitengine/pkg/applog"
)

// Handler processes one event. Handlers run synchronously on the
// publishing goroutine and must not block for long.
type Handler func(models.Event)

// Bus is the central in-process event dispatcher. The zero value is not
// usable; construct with New.
type Bus struct {
	mu       sync.RWMutex
	global   []Handler
	byType   map[models.EventType][]Handler
	byUser   map[int64]map[models.EventType][]Handler
	log      *applog.Logger
}

// New constructs an empty Bus.
func New(log *applog.Logger) *Bus {
	if log == nil {
		log = applog.L()
	}
	return &Bus{
		byType: make(map[models.EventType][]Handler),
		byUser: make(map[int64]map[models.EventType][]Handler),
		log:    log.WithComponent("eventbus"),
	}
}

// SubscribeAll registers h to receive every published event, regardless of
// type or user.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.global = append(b.global, h)
}

// Subscribe registers h for events of the given type, across all users.
func (b *Bus) Subscribe(eventType models.EventType, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byType[eventType] = append(b.byType[eventType], h)
}

// SubscribeUser registers h for events of the given type belonging to
// userID only.
func (b *Bus) SubscribeUser(userID int64, eventType models.EventType, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.byUser[userID] == nil {
		b.byUser[userID] = make(map[models.EventType][]Handler)
	}
	b.byUser[userID][eventType] = append(b.byUser[userID][eventType], h)
}

// RemoveUserHandlers drops every user-scoped handler registered for
// userID. Stopping a user's engine does not call it; user-scoped handlers
// stay registered until it is called.
func (b *Bus) RemoveUserHandlers(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.byUser, userID)
}

// NewEvent builds an Event with a generated ID, ready for Publish. Handlers
// that need a stable timestamp should set one explicitly; NewEvent leaves it
// to the caller so tests can control it.
func NewEvent(eventType models.EventType, userID int64, data map[string]interface{}) models.Event {
	return models.Event{
		ID:     uuid.NewString(),
		Type:   eventType,
		UserID: userID,
		Data:   data,
	}
}

// Publish delivers event to global handlers, then type-scoped handlers,
// then (if event.UserID is set) user-scoped handlers for that user and
// type, in that order. A handler that panics is recovered and logged;
// delivery continues to the remaining handlers.
func (b *Bus) Publish(event models.Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.global)+4)
	handlers = append(handlers, b.global...)
	handlers = append(handlers, b.byType[event.Type]...)
	if event.UserID != 0 {
		if perUser, ok := b.byUser[event.UserID]; ok {
			handlers = append(handlers, perUser[event.Type]...)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(h, event)
	}
}

// PublishMany publishes each event in order.
func (b *Bus) PublishMany(events []models.Event) {
	for _, e := range events {
		b.Publish(e)
	}
}

func (b *Bus) dispatch(h Handler, event models.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked",
				applog.String("event_type", string(event.Type)),
				applog.Any("recovered", r),
			)
		}
	}()
	h(event)
}
