package api

import (
	"encoding/json"
	"fmt"

	"github.com/samber/lo"

	"storefront/internal/products"
)

// CartItem is one line of the server-side cart. An ID with the "temp-" prefix
// has not been confirmed by the server yet.
type CartItem struct {
	ID       string           `json:"_id"`
	Product  products.Product `json:"product"`
	Quantity int              `json:"quantity"`
	Size     string           `json:"size,omitempty"`
	Color    string           `json:"color,omitempty"`
}

// WishlistItem is a saved product. Items created while the server had no
// wishlist routes carry the ID "local-<productId>".
type WishlistItem struct {
	ID      string           `json:"_id"`
	Product products.Product `json:"product"`
}

// lineWire accepts both nested ({product:{...}}) and flat item shapes and both
// id spellings.
type lineWire struct {
	ID       string          `json:"_id"`
	AltID    string          `json:"id"`
	Product  json.RawMessage `json:"product"`
	Quantity int             `json:"quantity"`
	Size     string          `json:"size"`
	Color    string          `json:"color"`
}

func decodeLine(data []byte) (lineWire, products.Product, error) {
	var w lineWire
	if err := json.Unmarshal(data, &w); err != nil {
		return w, products.Product{}, err
	}
	var p products.Product
	product := w.Product
	if len(product) == 0 || string(product) == "null" {
		// flat shape: the item itself carries the product fields
		product = data
	}
	if err := json.Unmarshal(product, &p); err != nil {
		return w, p, err
	}
	return w, p, nil
}

func (i *CartItem) UnmarshalJSON(data []byte) error {
	w, p, err := decodeLine(data)
	if err != nil {
		return fmt.Errorf("decode cart item: %w", err)
	}
	*i = CartItem{
		ID:       lo.CoalesceOrEmpty(w.ID, w.AltID),
		Product:  p,
		Quantity: w.Quantity,
		Size:     w.Size,
		Color:    w.Color,
	}
	return nil
}

func (i *WishlistItem) UnmarshalJSON(data []byte) error {
	w, p, err := decodeLine(data)
	if err != nil {
		return fmt.Errorf("decode wishlist item: %w", err)
	}
	*i = WishlistItem{
		ID:      lo.CoalesceOrEmpty(w.ID, w.AltID),
		Product: p,
	}
	return nil
}

// ProductID resolves which product the item refers to: the product's own id
// first, then the item id.
func (i WishlistItem) ProductID() string {
	return lo.CoalesceOrEmpty(i.Product.ID, i.ID)
}
