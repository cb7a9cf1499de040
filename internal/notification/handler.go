package notification

import (
	"context"
	"encoding/json"
	"log"

	"github.com/example/ec-shop/internal/domain/order"
	"github.com/example/ec-shop/internal/domain/user"
	"github.com/example/ec-shop/internal/email"
)

// Sender sends the notifier's emails. Satisfied by *email.Service.
type Sender interface {
	SendOrderConfirmation(to, orderID string, total int, items []email.OrderItem) error
	SendStatusUpdate(to, orderID, newStatus string) error
}

// UserGetter resolves the recipient of a notification.
type UserGetter interface {
	GetUser(ctx context.Context, id string) (*user.User, error)
}

// Handler consumes order lifecycle events and emails the order's owner.
type Handler struct {
	sender Sender
	users  UserGetter
}

func NewHandler(sender Sender, users UserGetter) *Handler {
	return &Handler{sender: sender, users: users}
}

// HandleEvent processes one event from the orders topic. Notification
// failures are logged, never retried here: mail is best-effort.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event order.Event
	if err := json.Unmarshal(value, &event); err != nil {
		log.Printf("[Notifier] Failed to unmarshal event: %v", err)
		return err
	}

	switch event.Type {
	case order.EventOrderCreated:
		return h.handleOrderCreated(ctx, event)
	case order.EventOrderStatusChanged:
		return h.handleStatusChanged(ctx, event)
	case order.EventOrderExpired:
		return h.handleExpired(ctx, event)
	}
	return nil
}

func (h *Handler) handleOrderCreated(ctx context.Context, event order.Event) error {
	var e order.OrderCreated
	if err := json.Unmarshal(event.Data, &e); err != nil {
		log.Printf("[Notifier] Failed to unmarshal %s event: %v", event.Type, err)
		return err
	}

	u, err := h.users.GetUser(ctx, e.UserID)
	if err != nil {
		log.Printf("[Notifier] Cannot resolve recipient for order %s: %v", e.OrderID, err)
		return nil
	}

	items := make([]email.OrderItem, len(e.Items))
	for i, item := range e.Items {
		items[i] = email.OrderItem{
			Name:     item.ProductName,
			Quantity: item.Quantity,
			Price:    item.ProductPrice,
		}
	}

	if err := h.sender.SendOrderConfirmation(u.Email, e.OrderID, e.TotalPrice, items); err != nil {
		log.Printf("[Notifier] Failed to send confirmation for order %s: %v", e.OrderID, err)
		return nil
	}
	log.Printf("[Notifier] Sent order confirmation for order %s to %s", e.OrderID, u.Email)
	return nil
}

func (h *Handler) handleStatusChanged(ctx context.Context, event order.Event) error {
	var e order.OrderStatusChanged
	if err := json.Unmarshal(event.Data, &e); err != nil {
		log.Printf("[Notifier] Failed to unmarshal %s event: %v", event.Type, err)
		return err
	}
	return h.sendStatusMail(ctx, e.OrderID, e.UserID, string(e.To))
}

func (h *Handler) handleExpired(ctx context.Context, event order.Event) error {
	var e order.OrderExpired
	if err := json.Unmarshal(event.Data, &e); err != nil {
		log.Printf("[Notifier] Failed to unmarshal %s event: %v", event.Type, err)
		return err
	}
	return h.sendStatusMail(ctx, e.OrderID, e.UserID, string(order.StatusExpired))
}

func (h *Handler) sendStatusMail(ctx context.Context, orderID, userID, newStatus string) error {
	u, err := h.users.GetUser(ctx, userID)
	if err != nil {
		log.Printf("[Notifier] Cannot resolve recipient for order %s: %v", orderID, err)
		return nil
	}
	if err := h.sender.SendStatusUpdate(u.Email, orderID, newStatus); err != nil {
		log.Printf("[Notifier] Failed to send status mail for order %s: %v", orderID, err)
	}
	return nil
}
