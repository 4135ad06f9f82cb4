// Package orders places orders for the cart and follows them until delivery.
package orders

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"storefront/internal/api"
	"storefront/internal/shop"
	"storefront/internal/telemetry"
)

// PaymentCOD is cash on delivery, the only method the shop accepts.
const PaymentCOD = "COD"

const placeFailedMessage = "Failed to place order"

var (
	ErrIncompleteAddress = errors.New("please fill in all address fields")
	ErrEmptyCart         = errors.New("your cart is empty")
	ErrMissingOrderID    = errors.New("order id is required")
)

var tracer = otel.Tracer("storefront/internal/orders")

type Remote interface {
	CreateOrder(ctx context.Context, address api.ShippingAddress, paymentMethod string) (*api.Order, error)
	TrackOrder(ctx context.Context, orderID string) (*api.Tracking, error)
}

// Cart is what checkout needs from the cart reconciler.
type Cart interface {
	Items() []api.CartItem
	Clear(ctx context.Context) error
}

type Service struct {
	remote Remote
	gate   shop.Gate
	cart   Cart
}

func NewService(remote Remote, gate shop.Gate, cart Cart) (*Service, error) {
	if remote == nil {
		return nil, errors.New("orders remote is required")
	}
	if gate == nil {
		return nil, errors.New("session gate is required")
	}
	if cart == nil {
		return nil, errors.New("cart is required")
	}
	return &Service{remote: remote, gate: gate, cart: cart}, nil
}

// Checkout orders the current cart. Once the server accepts the order the
// cart is cleared; a failed clear is logged since the order already exists.
func (s *Service) Checkout(ctx context.Context, address api.ShippingAddress, paymentMethod string) (*api.Order, error) {
	if !s.gate.Authenticated() {
		return nil, shop.ErrAuthRequired
	}
	address = trimAddress(address)
	if !complete(address) {
		return nil, ErrIncompleteAddress
	}
	if len(s.cart.Items()) == 0 {
		return nil, ErrEmptyCart
	}
	if paymentMethod == "" {
		paymentMethod = PaymentCOD
	}

	ctx, span := tracer.Start(ctx, "orders.checkout")
	defer span.End()

	order, err := s.remote.CreateOrder(ctx, address, paymentMethod)
	if err != nil {
		telemetry.RecordError(span, err)
		slog.ErrorContext(ctx, "error placing order", "error", err)
		return nil, &shop.MutationError{Op: "place order", Message: api.ServerMessage(err, placeFailedMessage), Err: err}
	}
	span.SetAttributes(attribute.String("order.id", order.ID))
	slog.InfoContext(ctx, "order placed", "order", order.ID, "total", order.TotalAmount)

	if err := s.cart.Clear(ctx); err != nil {
		slog.WarnContext(ctx, "order placed but cart was not cleared", "order", order.ID, "error", err)
	}
	return order, nil
}

func (s *Service) Track(ctx context.Context, orderID string) (*api.Tracking, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, ErrMissingOrderID
	}
	ctx, span := tracer.Start(ctx, "orders.track")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	tracking, err := s.remote.TrackOrder(ctx, orderID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return tracking, nil
}

func trimAddress(a api.ShippingAddress) api.ShippingAddress {
	return api.ShippingAddress{
		Name:    strings.TrimSpace(a.Name),
		Phone:   strings.TrimSpace(a.Phone),
		Address: strings.TrimSpace(a.Address),
		City:    strings.TrimSpace(a.City),
		State:   strings.TrimSpace(a.State),
		Pincode: strings.TrimSpace(a.Pincode),
	}
}

func complete(a api.ShippingAddress) bool {
	return a.Name != "" && a.Phone != "" && a.Address != "" && a.City != "" && a.State != "" && a.Pincode != ""
}
