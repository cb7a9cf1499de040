package store

import (
	"context"
	"errors"
	"time"

	"github.com/example/ec-shop/internal/domain/cart"
	"github.com/example/ec-shop/internal/domain/order"
	"github.com/example/ec-shop/internal/domain/product"
	"github.com/example/ec-shop/internal/domain/user"
)

// ErrVersionConflict is returned when a version-checked write observes that
// another writer changed the document between this workflow's read and its
// intended write. The order workflow recovers from it by retrying the whole
// attempt; it is never surfaced to callers directly.
var ErrVersionConflict = errors.New("version conflict")

// StockReservation is a planned decrement of a product's available stock,
// conditional on the product version still matching ExpectedVersion when the
// unit of work commits.
type StockReservation struct {
	ProductID       string
	Quantity        int
	ExpectedVersion int
}

// StockRelease is an unconditional increment of a product's available stock,
// applied when an order is cancelled or expires.
type StockRelease struct {
	ProductID string
	Quantity  int
}

// OrderCommit is everything one order-creation attempt writes. The store
// applies it atomically: either the order and its items are persisted exactly
// once, every reservation decrement passes its version check and consumed
// cart products are removed, or none of it happens.
type OrderCommit struct {
	Order                *order.Order
	Reservations         []StockReservation
	RemoveCartProductIDs []string
}

// Store is the persistence boundary of the fulfillment core. Implementations
// must make CommitOrder, CloseOrder and DeleteOrder all-or-nothing units of
// work, and must fail version-checked writes with ErrVersionConflict rather
// than overwriting.
type Store interface {
	GetUser(ctx context.Context, id string) (*user.User, error)
	GetProduct(ctx context.Context, id string) (*product.Product, error)
	GetCartProduct(ctx context.Context, id string) (*cart.CartProduct, error)

	GetOrder(ctx context.Context, id string) (*order.Order, error)
	ListOrders(ctx context.Context) ([]order.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]order.Order, error)
	CountOrders(ctx context.Context) (int, error)
	ListStalePendingOrders(ctx context.Context, cutoff time.Time) ([]order.Order, error)

	// CommitOrder runs one order-creation unit of work.
	CommitOrder(ctx context.Context, commit OrderCommit) error

	// UpdateOrderStatus persists a status change, checked against the order
	// version the caller loaded.
	UpdateOrderStatus(ctx context.Context, o *order.Order) error

	// CloseOrder persists a terminal status change (cancelled/expired) and
	// restores reserved stock in the same unit of work.
	CloseOrder(ctx context.Context, o *order.Order, releases []StockRelease) error

	// DeleteOrder removes an order and cascades to its items.
	DeleteOrder(ctx context.Context, id string) error
}
