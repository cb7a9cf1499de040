package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-shop/internal/domain/product"
	"github.com/google/uuid"
)

var ErrInvalidQuantity = errors.New("quantity must be positive")

// OutOfStockError is returned when a line item asks for more units than the
// product currently has. The message distinguishes a product with zero stock
// from a partial shortfall, per the storefront's error copy.
type OutOfStockError struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *OutOfStockError) Error() string {
	msg := fmt.Sprintf("an order for product %s could not be created", e.ProductName)
	if e.Available == 0 {
		return msg + ": out of stock"
	}
	return fmt.Sprintf("%s: ordered %d, but only %d left in stock", msg, e.Requested, e.Available)
}

// LineItem is the raw request shape for one order line, as submitted by the
// client or carried on a completed-payment event. CartProductID is set when
// the line originated from a cart entry.
type LineItem struct {
	ProductID      string `json:"product_id"`
	Quantity       int    `json:"quantity"`
	SelectedSize   string `json:"selected_size,omitempty"`
	SelectedColour string `json:"selected_colour,omitempty"`
	CartProductID  string `json:"cart_product_id,omitempty"`
}

// BuildItem validates a raw line item against the product it references and
// materializes the Item snapshot (price, name, image captured now). It does
// not decrement stock; that is the inventory ledger's job, invoked by the
// workflow around this step.
func BuildItem(p *product.Product, line LineItem) (Item, error) {
	if p == nil {
		return Item{}, product.ErrProductNotFound
	}
	if line.Quantity <= 0 {
		return Item{}, ErrInvalidQuantity
	}
	if p.CountInStock < line.Quantity {
		return Item{}, &OutOfStockError{
			ProductID:   p.ID,
			ProductName: p.Name,
			Requested:   line.Quantity,
			Available:   p.CountInStock,
		}
	}

	return Item{
		ID:           uuid.New().String(),
		ProductID:    p.ID,
		Quantity:     line.Quantity,
		ProductPrice: p.Price,
		ProductName:  p.Name,
		ProductImage: p.Image,
	}, nil
}

// Assemble builds the order aggregate from validated items. TotalPrice is
// always recomputed here from the item snapshots; it is never taken from
// caller input.
func Assemble(userID string, items []Item, shipping Shipping, initialStatus Status) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	if initialStatus != StatusPending && initialStatus != StatusProcessed {
		return nil, fmt.Errorf("%w: %s is not an entry status", ErrInvalidStatus, initialStatus)
	}

	var total int
	for _, item := range items {
		total += item.ProductPrice * item.Quantity
	}

	return &Order{
		ID:            uuid.New().String(),
		UserID:        userID,
		Items:         items,
		Shipping:      shipping,
		TotalPrice:    total,
		Status:        initialStatus,
		StatusHistory: []Status{initialStatus},
		DateOrdered:   time.Now(),
	}, nil
}
