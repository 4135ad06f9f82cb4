package api

import (
	"context"
	"net/http"
	"net/url"
)

type wishlistData struct {
	Wishlist struct {
		Items []WishlistItem `json:"items"`
	} `json:"wishlist"`
}

func (c *Client) GetWishlist(ctx context.Context) ([]WishlistItem, error) {
	var data wishlistData
	if err := c.do(ctx, "get wishlist", http.MethodGet, "/wishlist", nil, &data); err != nil {
		return nil, err
	}
	if data.Wishlist.Items == nil {
		return []WishlistItem{}, nil
	}
	return data.Wishlist.Items, nil
}

func (c *Client) AddToWishlist(ctx context.Context, productID string) error {
	body := map[string]string{"productId": productID}
	return c.do(ctx, "add to wishlist", http.MethodPost, "/wishlist/add", body, nil)
}

func (c *Client) RemoveFromWishlist(ctx context.Context, productID string) error {
	return c.do(ctx, "remove from wishlist", http.MethodDelete, "/wishlist/remove/"+url.PathEscape(productID), nil, nil)
}
