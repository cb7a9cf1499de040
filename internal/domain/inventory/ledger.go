package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/ec-shop/internal/domain/product"
	"github.com/example/ec-shop/internal/infrastructure/store"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)

// ProductGetter is the read view of the store the ledger needs.
type ProductGetter interface {
	GetProduct(ctx context.Context, id string) (*product.Product, error)
}

// Ledger owns the stock-reservation policy for the per-product
// count_in_stock counter. Reserve validates against the current counter and
// plans a version-checked decrement; the decrement itself executes when the
// enclosing unit of work commits, so it rolls back with everything else and
// a concurrent writer surfaces as store.ErrVersionConflict instead of being
// silently overwritten.
type Ledger struct {
	products ProductGetter
}

func NewLedger(products ProductGetter) *Ledger {
	return &Ledger{products: products}
}

// Reserve checks that the product exists and has at least quantity units
// available, and returns the planned decrement carrying the observed version
// as the commit-time expectation.
func (l *Ledger) Reserve(ctx context.Context, productID string, quantity int) (store.StockReservation, error) {
	if quantity <= 0 {
		return store.StockReservation{}, ErrInvalidQuantity
	}

	p, err := l.products.GetProduct(ctx, productID)
	if err != nil {
		return store.StockReservation{}, err
	}
	if p.CountInStock < quantity {
		return store.StockReservation{}, fmt.Errorf("%w: product %s has %d units, %d requested",
			ErrInsufficientStock, productID, p.CountInStock, quantity)
	}

	return store.StockReservation{
		ProductID:       productID,
		Quantity:        quantity,
		ExpectedVersion: p.Version,
	}, nil
}

// Release plans an unconditional restock, applied inside the caller's unit
// of work on cancellation or expiry. Callers must not release the same
// reservation twice.
func (l *Ledger) Release(productID string, quantity int) store.StockRelease {
	return store.StockRelease{ProductID: productID, Quantity: quantity}
}

// ReleaseAll plans restocks for every line item of an order.
func (l *Ledger) ReleaseAll(items []ItemQuantity) []store.StockRelease {
	releases := make([]store.StockRelease, 0, len(items))
	for _, item := range items {
		releases = append(releases, l.Release(item.ProductID, item.Quantity))
	}
	return releases
}

// ItemQuantity is the (product, quantity) pair of one reserved line.
type ItemQuantity struct {
	ProductID string
	Quantity  int
}
