package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventTransactionRecorded = "transaction_recorded"
	EventTransactionUpdated  = "transaction_updated"
	EventTransactionDeleted  = "transaction_deleted"
	EventInstancesGenerated  = "instances_generated"
	EventRecurringCancelled  = "recurring_cancelled"
	EventRecurringUpdated    = "recurring_updated"
	EventReminderDelivered   = "reminder_delivered"
)

// TransactionEventPayload describes the minimal transaction snapshot for
// event consumers.
type TransactionEventPayload struct {
	TransactionID int64     `json:"transaction_id"`
	AccountID     int64     `json:"account_id"`
	Title         string    `json:"title"`
	Amount        string    `json:"amount"`
	Type          string    `json:"type"`
	Date          time.Time `json:"date"`
}

// GenerationEventPayload reports one template's materialization batch.
type GenerationEventPayload struct {
	TemplateID int64     `json:"template_id"`
	Inserted   int       `json:"inserted"`
	LastDate   time.Time `json:"last_date"`
}

// ReminderEventPayload reports a completed reminder delivery.
type ReminderEventPayload struct {
	DeliveredAt time.Time `json:"delivered_at"`
	LocalDate   string    `json:"local_date"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
	Processed bool
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
