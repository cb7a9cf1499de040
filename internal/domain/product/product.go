package product

import "errors"

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidName     = errors.New("product name is required")
	ErrInvalidPrice    = errors.New("product price must be positive")
)

// Product is the catalog document the fulfillment core reads and, for
// CountInStock, conditionally writes. CountInStock is the contended counter:
// it only decreases via a successful reservation and only increases via a
// release. Version is the optimistic-concurrency token checked at commit
// time by the store.
type Product struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Price        int    `json:"price"`
	Image        string `json:"image"`
	CountInStock int    `json:"count_in_stock"`
	Version      int    `json:"version"`
}

// Validate checks the fields a product must carry before it can be sold.
func (p *Product) Validate() error {
	if p.Name == "" {
		return ErrInvalidName
	}
	if p.Price <= 0 {
		return ErrInvalidPrice
	}
	return nil
}
