package api

import (
	"context"
	"net/http"
	"net/url"

	"storefront/internal/products"
)

type cartData struct {
	Cart struct {
		Items []CartItem `json:"items"`
	} `json:"cart"`
}

func (d cartData) items() []CartItem {
	if d.Cart.Items == nil {
		return []CartItem{}
	}
	return d.Cart.Items
}

type addToCartRequest struct {
	ProductID string           `json:"productId"`
	Product   products.Product `json:"product"`
	Quantity  int              `json:"quantity"`
	Size      string           `json:"size,omitempty"`
	Color     string           `json:"color,omitempty"`
}

func (c *Client) GetCart(ctx context.Context) ([]CartItem, error) {
	var data cartData
	if err := c.do(ctx, "get cart", http.MethodGet, "/cart", nil, &data); err != nil {
		return nil, err
	}
	return data.items(), nil
}

// AddToCart returns the whole cart as the server sees it after the add.
func (c *Client) AddToCart(ctx context.Context, product products.Product, quantity int, size, color string) ([]CartItem, error) {
	var data cartData
	req := addToCartRequest{
		ProductID: product.ID,
		Product:   product,
		Quantity:  quantity,
		Size:      size,
		Color:     color,
	}
	if err := c.do(ctx, "add to cart", http.MethodPost, "/cart/add", req, &data); err != nil {
		return nil, err
	}
	return data.items(), nil
}

func (c *Client) RemoveFromCart(ctx context.Context, itemID string) ([]CartItem, error) {
	var data cartData
	if err := c.do(ctx, "remove from cart", http.MethodDelete, "/cart/remove/"+url.PathEscape(itemID), nil, &data); err != nil {
		return nil, err
	}
	return data.items(), nil
}

func (c *Client) UpdateCartItem(ctx context.Context, itemID string, quantity int) ([]CartItem, error) {
	var data cartData
	body := map[string]int{"quantity": quantity}
	if err := c.do(ctx, "update cart item", http.MethodPut, "/cart/update/"+url.PathEscape(itemID), body, &data); err != nil {
		return nil, err
	}
	return data.items(), nil
}

func (c *Client) ClearCart(ctx context.Context) error {
	return c.do(ctx, "clear cart", http.MethodDelete, "/cart/clear", nil, nil)
}
