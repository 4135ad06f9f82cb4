// Package cart keeps the shopper's cart in memory, in step with the server.
//
// Every mutation goes to the server first. A successful response replaces the
// local cart wholesale with the server's item list; a failed one triggers a
// reload so local state never drifts for longer than one round-trip. When two
// mutations overlap, the last response to land wins unless the reconciler was
// built WithSequencing.
package cart

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"storefront/internal/api"
	"storefront/internal/products"
	"storefront/internal/shop"
	"storefront/internal/telemetry"
)

// tempPrefix marks item ids that were never confirmed by the server.
const tempPrefix = "temp-"

const (
	addFailedMessage   = "Failed to add to cart"
	clearFailedMessage = "Failed to clear cart"
)

var tracer = otel.Tracer("storefront/internal/cart")

// Remote is the part of the shop API the cart needs. Every call that changes
// the cart returns the full cart afterwards.
type Remote interface {
	GetCart(ctx context.Context) ([]api.CartItem, error)
	AddToCart(ctx context.Context, product products.Product, quantity int, size, color string) ([]api.CartItem, error)
	RemoveFromCart(ctx context.Context, itemID string) ([]api.CartItem, error)
	UpdateCartItem(ctx context.Context, itemID string, quantity int) ([]api.CartItem, error)
	ClearCart(ctx context.Context) error
}

// Reconciler is the single writer of the cart collection.
type Reconciler struct {
	remote    Remote
	gate      shop.Gate
	sequenced bool

	mu      sync.RWMutex
	items   []api.CartItem
	loading int
	issued  uint64 // sequence number of the newest request
	epoch   uint64 // bumped when the session ends
}

var _ shop.SessionObserver = (*Reconciler)(nil)

type Option func(*Reconciler)

// WithSequencing discards responses to requests that were superseded by a
// newer one, instead of letting the last response to arrive win.
func WithSequencing() Option {
	return func(r *Reconciler) {
		r.sequenced = true
	}
}

func New(remote Remote, gate shop.Gate, opts ...Option) (*Reconciler, error) {
	if remote == nil {
		return nil, errors.New("cart remote is required")
	}
	if gate == nil {
		return nil, errors.New("session gate is required")
	}
	r := &Reconciler{remote: remote, gate: gate, items: []api.CartItem{}}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

type ticket struct {
	seq   uint64
	epoch uint64
}

func (r *Reconciler) begin() ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issued++
	return ticket{seq: r.issued, epoch: r.epoch}
}

// apply replaces the cart with items unless the session ended since t was
// issued or, when sequencing, a newer request is outstanding.
func (r *Reconciler) apply(ctx context.Context, t ticket, items []api.CartItem) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.epoch != r.epoch {
		slog.DebugContext(ctx, "dropping cart response from ended session", "seq", t.seq)
		return false
	}
	if r.sequenced && t.seq != r.issued {
		slog.DebugContext(ctx, "dropping superseded cart response", "seq", t.seq, "newest", r.issued)
		return false
	}
	if items == nil {
		items = []api.CartItem{}
	}
	r.items = items
	return true
}

// Load replaces the local cart with the server's. It never fails outward: on
// error the previous state is kept and the failure is logged.
func (r *Reconciler) Load(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "cart.load")
	defer span.End()

	t := r.begin()
	r.setLoading(1)
	defer r.setLoading(-1)

	items, err := r.remote.GetCart(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		slog.ErrorContext(ctx, "error loading cart", "error", err)
		return
	}
	r.apply(ctx, t, items)
}

// Add puts quantity units of product into the cart. The product is normalized
// before it is sent. On failure the cart is reloaded and a
// *shop.MutationError with a displayable message is returned.
func (r *Reconciler) Add(ctx context.Context, product products.Raw, quantity int, size, color string) error {
	if !r.gate.Authenticated() {
		return shop.ErrAuthRequired
	}
	if product == nil || product.ID() == "" {
		return shop.ErrInvalidProduct
	}
	normalized := products.Normalize(product)
	if quantity < 1 {
		quantity = 1
	}

	ctx, span := tracer.Start(ctx, "cart.add")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", normalized.ID), attribute.Int("quantity", quantity))

	t := r.begin()
	items, err := r.remote.AddToCart(ctx, normalized, quantity, size, color)
	if err != nil {
		telemetry.RecordError(span, err)
		slog.WarnContext(ctx, "add to cart failed, reloading", "product", normalized.ID, "error", err)
		r.Load(ctx)
		return &shop.MutationError{Op: "add to cart", Message: api.ServerMessage(err, addFailedMessage), Err: err}
	}
	r.apply(ctx, t, items)
	return nil
}

// Remove deletes a cart line. Failures are recovered by reloading the cart
// and are not reported to the caller.
func (r *Reconciler) Remove(ctx context.Context, itemID string) {
	if !r.gate.Authenticated() {
		return
	}
	id := strings.TrimPrefix(itemID, tempPrefix)

	ctx, span := tracer.Start(ctx, "cart.remove")
	defer span.End()
	span.SetAttributes(attribute.String("item.id", id))

	t := r.begin()
	items, err := r.remote.RemoveFromCart(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		slog.ErrorContext(ctx, "error removing from cart", "item", id, "error", err)
		r.Load(ctx)
		return
	}
	r.apply(ctx, t, items)
}

// UpdateQuantity sets a line's quantity. Zero or less removes the line.
func (r *Reconciler) UpdateQuantity(ctx context.Context, itemID string, quantity int) {
	if !r.gate.Authenticated() {
		return
	}
	id := strings.TrimPrefix(itemID, tempPrefix)
	if quantity <= 0 {
		r.Remove(ctx, id)
		return
	}

	ctx, span := tracer.Start(ctx, "cart.update")
	defer span.End()
	span.SetAttributes(attribute.String("item.id", id), attribute.Int("quantity", quantity))

	t := r.begin()
	items, err := r.remote.UpdateCartItem(ctx, id, quantity)
	if err != nil {
		telemetry.RecordError(span, err)
		slog.ErrorContext(ctx, "error updating cart", "item", id, "quantity", quantity, "error", err)
		r.Load(ctx)
		return
	}
	r.apply(ctx, t, items)
}

// Clear empties the cart on the server and then locally. The local cart is
// left alone when the server call fails.
func (r *Reconciler) Clear(ctx context.Context) error {
	if !r.gate.Authenticated() {
		return nil
	}

	ctx, span := tracer.Start(ctx, "cart.clear")
	defer span.End()

	t := r.begin()
	if err := r.remote.ClearCart(ctx); err != nil {
		telemetry.RecordError(span, err)
		slog.ErrorContext(ctx, "error clearing cart", "error", err)
		return &shop.MutationError{Op: "clear cart", Message: api.ServerMessage(err, clearFailedMessage), Err: err}
	}
	r.apply(ctx, t, []api.CartItem{})
	return nil
}

// Items returns a copy of the cart in server order.
func (r *Reconciler) Items() []api.CartItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.items)
}

// IsLoading reports whether a Load is in flight.
func (r *Reconciler) IsLoading() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loading > 0
}

// Total is the sum of effective unit price times quantity.
func (r *Reconciler) Total() float64 {
	return Total(r.Items())
}

// Count is the number of units in the cart.
func (r *Reconciler) Count() int {
	return Count(r.Items())
}

func Total(items []api.CartItem) float64 {
	return lo.SumBy(items, func(item api.CartItem) float64 {
		return item.Product.EffectivePrice() * float64(quantity(item))
	})
}

func Count(items []api.CartItem) int {
	return lo.SumBy(items, quantity)
}

// quantity treats a missing quantity as one unit.
func quantity(item api.CartItem) int {
	if item.Quantity <= 0 {
		return 1
	}
	return item.Quantity
}

func (r *Reconciler) SessionStarted(ctx context.Context) {
	r.Load(ctx)
}

// SessionEnded empties the cart. Responses still in flight are dropped.
func (r *Reconciler) SessionEnded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = []api.CartItem{}
	r.epoch++
}

func (r *Reconciler) setLoading(delta int) {
	r.mu.Lock()
	r.loading += delta
	r.mu.Unlock()
}
