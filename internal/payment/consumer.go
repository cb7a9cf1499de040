package payment

import (
	"context"
	"encoding/json"
	"log"

	"github.com/example/ec-shop/internal/command"
	"github.com/example/ec-shop/internal/domain/order"
)

// EventPaymentCompleted is the event type the payment collaborator publishes
// when a checkout session settles.
const EventPaymentCompleted = "payment.completed"

// Completed is a settled payment carrying everything needed to create the
// order it paid for.
type Completed struct {
	Type     string           `json:"type"`
	UserID   string           `json:"user_id"`
	Items    []order.LineItem `json:"items"`
	Shipping order.Shipping   `json:"shipping"`
}

// OrderCreator is the slice of the command handler the listener needs.
type OrderCreator interface {
	CreateOrder(ctx context.Context, cmd command.CreateOrder) (*order.Order, error)
}

// Listener maps completed-payment events into order creation. Orders created
// this way enter the lifecycle as processed: the payment already confirmed
// them.
type Listener struct {
	orders OrderCreator
}

func NewListener(orders OrderCreator) *Listener {
	return &Listener{orders: orders}
}

// HandleEvent processes one message from the payments topic. Malformed or
// foreign events are skipped; order-creation failures are logged and the
// message is consumed (redelivery is the payment collaborator's concern).
func (l *Listener) HandleEvent(ctx context.Context, key, value []byte) error {
	var event Completed
	if err := json.Unmarshal(value, &event); err != nil {
		log.Printf("[Payment] Skipping malformed event: %v", err)
		return nil
	}
	if event.Type != EventPaymentCompleted {
		return nil
	}

	o, err := l.orders.CreateOrder(ctx, command.CreateOrder{
		UserID:        event.UserID,
		Items:         event.Items,
		Shipping:      event.Shipping,
		InitialStatus: order.StatusProcessed,
	})
	if err != nil {
		log.Printf("[Payment] Failed to create order for user %s: %v", event.UserID, err)
		return err
	}

	log.Printf("[Payment] Created order %s for user %s from completed payment", o.ID, event.UserID)
	return nil
}
