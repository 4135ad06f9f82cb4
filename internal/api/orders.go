package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

type ShippingAddress struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}

type Order struct {
	ID              string          `json:"_id"`
	Status          string          `json:"status"`
	TotalAmount     float64         `json:"totalAmount"`
	PaymentMethod   string          `json:"paymentMethod"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	Items           []CartItem      `json:"items,omitempty"`
	CreatedAt       string          `json:"createdAt,omitempty"`
}

// Tracking is the tracking document for one order, also sent as each frame of
// the live tracking stream.
type Tracking struct {
	OrderID           string `json:"orderId"`
	Status            string `json:"status"`
	TrackingNumber    string `json:"trackingNumber,omitempty"`
	EstimatedDelivery string `json:"estimatedDelivery,omitempty"`
	UpdatedAt         string `json:"updatedAt,omitempty"`
}

type createOrderRequest struct {
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
}

// CreateOrder places an order for everything currently in the server-side cart.
func (c *Client) CreateOrder(ctx context.Context, address ShippingAddress, paymentMethod string) (*Order, error) {
	var data struct {
		Order Order `json:"order"`
	}
	req := createOrderRequest{ShippingAddress: address, PaymentMethod: paymentMethod}
	if err := c.do(ctx, "create order", http.MethodPost, "/orders", req, &data); err != nil {
		return nil, err
	}
	return &data.Order, nil
}

func (c *Client) TrackOrder(ctx context.Context, orderID string) (*Tracking, error) {
	var tracking Tracking
	if err := c.do(ctx, "track order", http.MethodGet, "/tracking/"+url.PathEscape(orderID), nil, &tracking); err != nil {
		return nil, err
	}
	if tracking.OrderID == "" {
		tracking.OrderID = orderID
	}
	return &tracking, nil
}

// LiveTrackingURL is the WebSocket endpoint streaming tracking updates.
func (c *Client) LiveTrackingURL(orderID string) string {
	u := c.baseURL + "/tracking/" + url.PathEscape(orderID) + "/live"
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}
