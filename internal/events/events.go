package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event types.
const (
	GigSaved      = "gig.saved"
	GigDeleted    = "gig.deleted"
	GigRolledOver = "gig.rolled_over"
)

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      zerolog.Logger
	now         func() time.Time
}

// NewEventBus constructs an empty bus.
func NewEventBus(logger zerolog.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[string][]EventHandler),
		logger:      logger.With().Str("component", "events").Logger(),
		now:         time.Now,
	}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish encodes payload as JSON and delivers it to subscribers of evType.
func (b *EventBus) Publish(evType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error().Err(err).Str("type", evType).Msg("Failed to encode event payload")
		return
	}
	b.Dispatch(Event{Type: evType, Payload: data})
}

// Dispatch notifies subscribers of the event type. Handlers run synchronously
// in subscription order; a failing handler does not stop the others.
func (b *EventBus) Dispatch(event Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = b.now()
	}

	for _, handler := range handlers {
		if err := handler(event); err != nil {
			b.logger.Error().Err(err).Str("type", event.Type).Msg("Event handler failed")
		}
	}
}

// LogHandler returns a handler that writes events to logger.
func LogHandler(logger zerolog.Logger) EventHandler {
	return func(event Event) error {
		logger.Info().
			Str("type", event.Type).
			RawJSON("payload", event.Payload).
			Time("at", event.CreatedAt).
			Msg("Gig activity")
		return nil
	}
}
