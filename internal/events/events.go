package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"studiobook/internal/metrics"
)

// Reservation lifecycle event types.
const (
	ReservationCommitted     = "reservation.committed"
	ReservationRejected      = "reservation.rejected"
	ReservationStatusChanged = "reservation.status_changed"
)

// Event represents a lightweight domain event.
type Event struct {
	Type          string
	TenantID      string
	ReservationID string
	Payload       []byte
	CreatedAt     time.Time
}

// New builds an event with a JSON encoded payload.
func New(eventType, tenantID, reservationID string, payload any) Event {
	ev := Event{
		Type:          eventType,
		TenantID:      tenantID,
		ReservationID: reservationID,
		CreatedAt:     time.Now(),
	}
	if payload != nil {
		// Payloads are plain structs and maps; a failed encode leaves it empty.
		ev.Payload, _ = json.Marshal(payload)
	}
	return ev
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// Publisher is the write side of the bus.
type Publisher interface {
	Publish(event Event)
}

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      zerolog.Logger
}

// NewEventBus constructs an empty bus.
func NewEventBus(logger zerolog.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[string][]EventHandler),
		logger:      logger.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type. Handlers run synchronously
// and their errors are logged, never returned to the publisher.
func (b *EventBus) Publish(event Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	metrics.IncEvent(event.Type)

	for _, handler := range handlers {
		if err := handler(event); err != nil {
			b.logger.Warn().Err(err).
				Str("type", event.Type).
				Str("reservation_id", event.ReservationID).
				Msg("event handler failed")
		}
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(Event) {}
