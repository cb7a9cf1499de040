package command

import (
	"time"

	"github.com/example/ec-shop/internal/domain/order"
)

// Order Commands

type CreateOrder struct {
	UserID   string           `json:"user_id"`
	Items    []order.LineItem `json:"items"`
	Shipping order.Shipping   `json:"shipping"`
	// InitialStatus is "pending" for orders awaiting external confirmation
	// (the default) or "processed" for direct creation, e.g. from a
	// completed-payment event.
	InitialStatus order.Status `json:"initial_status,omitempty"`
}

type ChangeOrderStatus struct {
	OrderID   string       `json:"order_id"`
	NewStatus order.Status `json:"new_status"`
}

type CancelOrder struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

type DeleteOrder struct {
	OrderID string `json:"order_id"`
}

// ExpireStaleOrders sweeps pending orders older than OlderThan, releasing
// their reserved stock. Triggered by an external scheduler via cmd/reaper.
type ExpireStaleOrders struct {
	OlderThan time.Duration `json:"older_than"`
}
