package order

import (
	"encoding/json"
	"time"
)

// Event type names published to Kafka after a commit succeeds.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderCancelled     = "order.cancelled"
	EventOrderExpired       = "order.expired"
)

// Event is the envelope written to the order events topic, keyed by order ID.
type Event struct {
	Type       string          `json:"type"`
	OrderID    string          `json:"order_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// EventType returns the envelope's type name, mirrored into the Kafka
// message header by the producer.
func (e Event) EventType() string {
	return e.Type
}

// NewEvent wraps a payload in the event envelope.
func NewEvent(eventType, orderID string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Type:       eventType,
		OrderID:    orderID,
		OccurredAt: time.Now(),
		Data:       raw,
	}, nil
}

type OrderCreated struct {
	OrderID    string    `json:"order_id"`
	UserID     string    `json:"user_id"`
	Items      []Item    `json:"items"`
	TotalPrice int       `json:"total_price"`
	Status     Status    `json:"status"`
	PlacedAt   time.Time `json:"placed_at"`
}

type OrderStatusChanged struct {
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	ChangedAt time.Time `json:"changed_at"`
}

type OrderCancelled struct {
	OrderID     string    `json:"order_id"`
	UserID      string    `json:"user_id"`
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelled_at"`
}

type OrderExpired struct {
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	ExpiredAt time.Time `json:"expired_at"`
}
