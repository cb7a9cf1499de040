package query

import (
	"context"

	"github.com/example/ec-shop/internal/domain/order"
	"github.com/example/ec-shop/internal/domain/product"
	"github.com/example/ec-shop/internal/infrastructure/store"
)

// Handler serves the read side: order lookups by id and user, admin listing
// and counts, and product detail. All writes go through the command handler.
type Handler struct {
	store store.Store
}

func NewHandler(st store.Store) *Handler {
	return &Handler{store: st}
}

func (h *Handler) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	return h.store.GetOrder(ctx, id)
}

// ListOrdersByUser returns a user's orders, newest first.
func (h *Handler) ListOrdersByUser(ctx context.Context, userID string) ([]order.Order, error) {
	return h.store.ListOrdersByUser(ctx, userID)
}

// ListOrders returns all orders, newest first. Admin only; enforced at the
// API boundary.
func (h *Handler) ListOrders(ctx context.Context) ([]order.Order, error) {
	return h.store.ListOrders(ctx)
}

func (h *Handler) CountOrders(ctx context.Context) (int, error) {
	return h.store.CountOrders(ctx)
}

func (h *Handler) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	return h.store.GetProduct(ctx, id)
}
