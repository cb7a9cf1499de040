package order

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusProcessed      Status = "processed"
	StatusShipped        Status = "shipped"
	StatusOutForDelivery Status = "out-for-delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
	StatusOnHold         Status = "on-hold"
	StatusExpired        Status = "expired"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrEmptyOrder        = errors.New("order must have at least one item")
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// validTransitions defines allowed state transitions.
// pending and processed are entry states; delivered, cancelled and expired
// are terminal (no outgoing edges).
var validTransitions = map[Status][]Status{
	StatusPending:        {StatusProcessed, StatusCancelled, StatusExpired},
	StatusProcessed:      {StatusShipped, StatusCancelled, StatusOnHold},
	StatusShipped:        {StatusOutForDelivery, StatusCancelled, StatusOnHold},
	StatusOutForDelivery: {StatusDelivered, StatusCancelled},
	StatusOnHold:         {StatusCancelled, StatusShipped, StatusOutForDelivery},
}

// ValidStatus reports whether s is one of the known order statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusProcessed, StatusShipped, StatusOutForDelivery,
		StatusDelivered, StatusCancelled, StatusOnHold, StatusExpired:
		return true
	}
	return false
}

// Item is a line item with product fields snapshotted at order time, so
// later edits to the product never alter historical orders. Items are
// written once and never mutated.
type Item struct {
	ID           string `json:"id"`
	ProductID    string `json:"product_id"`
	Quantity     int    `json:"quantity"`
	ProductPrice int    `json:"product_price"`
	ProductName  string `json:"product_name"`
	ProductImage string `json:"product_image"`
}

// Shipping carries the delivery fields captured with the order.
type Shipping struct {
	Address1 string `json:"address1"`
	Address2 string `json:"address2,omitempty"`
	City     string `json:"city"`
	Zip      string `json:"zip"`
	Country  string `json:"country"`
	Phone    string `json:"phone"`
}

type Order struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Items         []Item    `json:"items"`
	Shipping      Shipping  `json:"shipping"`
	TotalPrice    int       `json:"total_price"`
	Status        Status    `json:"status"`
	StatusHistory []Status  `json:"status_history"`
	DateOrdered   time.Time `json:"date_ordered"`
	Version       int       `json:"version"`
}

// CanTransitionTo checks if the order can transition to the target status.
func (o *Order) CanTransitionTo(target Status) bool {
	if target == o.Status {
		return false
	}
	allowed, exists := validTransitions[o.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// Transition moves the order to target. Self-transitions and edges not in
// the transition table fail with ErrInvalidTransition. On success the old
// status is appended to StatusHistory, unless it is already the most recent
// entry there.
func (o *Order) Transition(target Status) error {
	if !ValidStatus(target) {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, target)
	}
	if !o.CanTransitionTo(target) {
		return fmt.Errorf("%w: status cannot go directly from %s to %s", ErrInvalidTransition, o.Status, target)
	}

	if n := len(o.StatusHistory); n == 0 || o.StatusHistory[n-1] != o.Status {
		o.StatusHistory = append(o.StatusHistory, o.Status)
	}
	o.Status = target
	return nil
}
