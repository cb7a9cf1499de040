package command

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/example/ec-shop/internal/domain/cart"
	"github.com/example/ec-shop/internal/domain/inventory"
	"github.com/example/ec-shop/internal/domain/order"
	"github.com/example/ec-shop/internal/domain/product"
	"github.com/example/ec-shop/internal/infrastructure/store"
)

const (
	// DefaultMaxAttempts bounds the optimistic-concurrency retry loop.
	DefaultMaxAttempts = 3
	// DefaultRetryBackoff is the fixed wait between retry attempts.
	DefaultRetryBackoff = time.Second
	// DefaultStaleAge is how old a pending order must be before the reaper
	// expires it.
	DefaultStaleAge = 24 * time.Hour
)

var (
	ErrInvalidUser    = errors.New("invalid user")
	ErrInvalidProduct = errors.New("invalid product in the order")
	ErrOrderConflict  = errors.New("order conflict, please try again later")
)

// EventPublisher publishes order lifecycle events after a commit succeeds.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Handler orchestrates the order fulfillment workflows: transactional order
// creation with bounded conflict retry, status transitions, cancellation,
// deletion and the stale-order sweep.
type Handler struct {
	store    store.Store
	ledger   *inventory.Ledger
	producer EventPublisher

	// MaxAttempts and RetryBackoff tune the conflict retry loop. Tests set
	// RetryBackoff to zero.
	MaxAttempts  int
	RetryBackoff time.Duration
}

func NewHandler(st store.Store, producer EventPublisher) *Handler {
	return &Handler{
		store:        st,
		ledger:       inventory.NewLedger(st),
		producer:     producer,
		MaxAttempts:  DefaultMaxAttempts,
		RetryBackoff: DefaultRetryBackoff,
	}
}

// CreateOrder converts raw line items into a committed order inside an
// all-or-nothing unit of work. A stock-counter conflict (another writer
// changed count_in_stock between this attempt's read and its commit)
// discards the whole attempt, waits the backoff and reruns it; all other
// errors abort and propagate unmodified. After MaxAttempts conflicts the
// call fails with ErrOrderConflict and no partial effects.
func (h *Handler) CreateOrder(ctx context.Context, cmd CreateOrder) (*order.Order, error) {
	if cmd.UserID == "" {
		return nil, ErrInvalidUser
	}
	if _, err := h.store.GetUser(ctx, cmd.UserID); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidUser, cmd.UserID)
	}

	initialStatus := cmd.InitialStatus
	if initialStatus == "" {
		initialStatus = order.StatusPending
	}

	for attempt := 1; ; attempt++ {
		o, err := h.tryCreateOrder(ctx, cmd, initialStatus)
		if err == nil {
			h.publish(ctx, order.EventOrderCreated, o.ID, order.OrderCreated{
				OrderID:    o.ID,
				UserID:     o.UserID,
				Items:      o.Items,
				TotalPrice: o.TotalPrice,
				Status:     o.Status,
				PlacedAt:   o.DateOrdered,
			})
			return o, nil
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			return nil, err
		}
		if attempt >= h.MaxAttempts {
			log.Printf("[Order] Giving up on order for user %s after %d conflicting attempts", cmd.UserID, attempt)
			return nil, ErrOrderConflict
		}
		log.Printf("[Order] Stock conflict on attempt %d/%d for user %s, retrying", attempt, h.MaxAttempts, cmd.UserID)
		time.Sleep(h.RetryBackoff)
	}
}

// tryCreateOrder runs one attempt: validate and snapshot every line item,
// plan one stock reservation per distinct product, assemble the order, and
// hand everything to the store as a single unit of work.
func (h *Handler) tryCreateOrder(ctx context.Context, cmd CreateOrder, initialStatus order.Status) (*order.Order, error) {
	var (
		items        []order.Item
		reservations []store.StockReservation
		removeCarts  []string
		needed       = make(map[string]int)
		reserveOrder []string
	)

	// Line items are processed strictly in the order supplied.
	for _, line := range cmd.Items {
		p, err := h.store.GetProduct(ctx, line.ProductID)
		if errors.Is(err, product.ErrProductNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidProduct, line.ProductID)
		}
		if err != nil {
			return nil, err
		}

		item, err := order.BuildItem(p, line)
		if err != nil {
			return nil, err
		}

		// A cart entry marked reserved already had its stock decremented by
		// an earlier reservation flow; decrementing again would double-count.
		alreadyReserved := false
		if line.CartProductID != "" {
			cp, err := h.store.GetCartProduct(ctx, line.CartProductID)
			switch {
			case errors.Is(err, cart.ErrCartProductNotFound):
				// Cart entry is gone; treat the line as a plain line item.
			case err != nil:
				return nil, err
			default:
				alreadyReserved = cp.Reserved
				removeCarts = append(removeCarts, cp.ID)
			}
		}

		if !alreadyReserved {
			if _, seen := needed[line.ProductID]; !seen {
				reserveOrder = append(reserveOrder, line.ProductID)
			}
			needed[line.ProductID] += line.Quantity
		}

		items = append(items, item)
	}

	// Reservations are coalesced per product: several lines may reference the
	// same product (one cart entry per size/colour), and the store's version
	// check permits only one decrement per product per unit of work. The
	// aggregate quantity is validated against the current counter.
	for _, productID := range reserveOrder {
		res, err := h.ledger.Reserve(ctx, productID, needed[productID])
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, res)
	}

	o, err := order.Assemble(cmd.UserID, items, cmd.Shipping, initialStatus)
	if err != nil {
		return nil, err
	}

	if err := h.store.CommitOrder(ctx, store.OrderCommit{
		Order:                o,
		Reservations:         reservations,
		RemoveCartProductIDs: removeCarts,
	}); err != nil {
		return nil, err
	}
	return o, nil
}

// ChangeOrderStatus applies one edge of the order status state machine and
// persists it with a version check.
func (h *Handler) ChangeOrderStatus(ctx context.Context, cmd ChangeOrderStatus) (*order.Order, error) {
	o, err := h.store.GetOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	from := o.Status
	if err := o.Transition(cmd.NewStatus); err != nil {
		return nil, err
	}
	if err := h.store.UpdateOrderStatus(ctx, o); err != nil {
		return nil, err
	}

	h.publish(ctx, order.EventOrderStatusChanged, o.ID, order.OrderStatusChanged{
		OrderID:   o.ID,
		UserID:    o.UserID,
		From:      from,
		To:        o.Status,
		ChangedAt: time.Now(),
	})
	return o, nil
}

// CancelOrder transitions the order to cancelled and releases its reserved
// stock, both in one unit of work.
func (h *Handler) CancelOrder(ctx context.Context, cmd CancelOrder) error {
	o, err := h.store.GetOrder(ctx, cmd.OrderID)
	if err != nil {
		return err
	}

	if err := o.Transition(order.StatusCancelled); err != nil {
		return err
	}

	releases := h.ledger.ReleaseAll(itemQuantities(o.Items))
	if err := h.store.CloseOrder(ctx, o, releases); err != nil {
		return err
	}

	h.publish(ctx, order.EventOrderCancelled, o.ID, order.OrderCancelled{
		OrderID:     o.ID,
		UserID:      o.UserID,
		Reason:      cmd.Reason,
		CancelledAt: time.Now(),
	})
	return nil
}

// DeleteOrder removes an order and its items. Admin only; enforced at the
// API boundary.
func (h *Handler) DeleteOrder(ctx context.Context, cmd DeleteOrder) error {
	return h.store.DeleteOrder(ctx, cmd.OrderID)
}

// ExpireStaleOrders expires every pending order older than cmd.OlderThan
// (DefaultStaleAge when zero), restoring its reserved stock. Each order is
// one unit of work; a failure on one order is logged and does not stop the
// sweep. Returns the number of orders expired.
func (h *Handler) ExpireStaleOrders(ctx context.Context, cmd ExpireStaleOrders) (int, error) {
	olderThan := cmd.OlderThan
	if olderThan <= 0 {
		olderThan = DefaultStaleAge
	}
	cutoff := time.Now().Add(-olderThan)

	stale, err := h.store.ListStalePendingOrders(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range stale {
		o := &stale[i]
		if err := o.Transition(order.StatusExpired); err != nil {
			log.Printf("[Reaper] Skipping order %s: %v", o.ID, err)
			continue
		}
		releases := h.ledger.ReleaseAll(itemQuantities(o.Items))
		if err := h.store.CloseOrder(ctx, o, releases); err != nil {
			log.Printf("[Reaper] Failed to expire order %s: %v", o.ID, err)
			continue
		}
		expired++

		h.publish(ctx, order.EventOrderExpired, o.ID, order.OrderExpired{
			OrderID:   o.ID,
			UserID:    o.UserID,
			ExpiredAt: time.Now(),
		})
	}
	return expired, nil
}

// publish sends a lifecycle event after the unit of work committed. Delivery
// failures are logged, not surfaced: the state change already happened.
func (h *Handler) publish(ctx context.Context, eventType, orderID string, data any) {
	if h.producer == nil {
		return
	}
	event, err := order.NewEvent(eventType, orderID, data)
	if err != nil {
		log.Printf("[Order] Failed to encode %s event for order %s: %v", eventType, orderID, err)
		return
	}
	if err := h.producer.Publish(ctx, orderID, event); err != nil {
		log.Printf("[Order] Failed to publish %s event for order %s: %v", eventType, orderID, err)
	}
}

func itemQuantities(items []order.Item) []inventory.ItemQuantity {
	out := make([]inventory.ItemQuantity, len(items))
	for i, item := range items {
		out[i] = inventory.ItemQuantity{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return out
}
