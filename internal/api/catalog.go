package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"storefront/internal/products"
)

// Categories served under /products/{category}.
var Categories = []string{"watches", "lenses", "accessories", "women", "skincare", "shoes"}

type ListQuery struct {
	Limit int
	Page  int
}

func (q ListQuery) encode() string {
	params := url.Values{}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if len(params) == 0 {
		return ""
	}
	return "?" + params.Encode()
}

type productsData struct {
	Products []products.Raw `json:"products"`
}

// Products lists a category, or everything when category is empty.
func (c *Client) Products(ctx context.Context, category string, q ListQuery) ([]products.Raw, error) {
	path := "/products"
	if category != "" {
		path += "/" + url.PathEscape(category)
	}
	var data productsData
	if err := c.do(ctx, "list products", http.MethodGet, path+q.encode(), nil, &data); err != nil {
		return nil, err
	}
	return data.Products, nil
}

// Product fetches one product. The record is returned as served so callers
// can hand it straight to the cart.
func (c *Client) Product(ctx context.Context, category, id string) (products.Raw, error) {
	var data struct {
		Product products.Raw `json:"product"`
	}
	path := "/products/" + url.PathEscape(category) + "/" + url.PathEscape(id)
	if err := c.do(ctx, "get product", http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	return data.Product, nil
}

func (c *Client) Search(ctx context.Context, query string) ([]products.Raw, error) {
	var data productsData
	if err := c.do(ctx, "search", http.MethodGet, "/search?q="+url.QueryEscape(query), nil, &data); err != nil {
		return nil, err
	}
	return data.Products, nil
}
