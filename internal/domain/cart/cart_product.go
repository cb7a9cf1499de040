package cart

import "errors"

var ErrCartProductNotFound = errors.New("cart product not found")

// CartProduct is a cart entry owned by the cart collaborator. The fulfillment
// workflow consumes it in two ways: the entry is deleted (and detached from
// the user) when the order it fed commits, and its Reserved flag tells the
// workflow whether stock for this line was already decremented by an earlier
// reservation flow. A second decrement for a reserved line would double-count.
type CartProduct struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	ProductID      string `json:"product_id"`
	Quantity       int    `json:"quantity"`
	SelectedSize   string `json:"selected_size,omitempty"`
	SelectedColour string `json:"selected_colour,omitempty"`
	Reserved       bool   `json:"reserved"`
}
