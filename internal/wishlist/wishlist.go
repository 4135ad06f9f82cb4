// Package wishlist keeps the shopper's wishlist in memory, in step with the
// server. Shop servers without wishlist routes are handled by keeping the
// wishlist on the device instead.
package wishlist

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"storefront/internal/api"
	"storefront/internal/cache"
	"storefront/internal/products"
	"storefront/internal/shop"
	"storefront/internal/telemetry"
)

// LocalKey is where the on-device wishlist lives. Nothing else writes it.
const LocalKey = "wishlist/local"

const (
	localPrefix       = "local-"
	addFailedMessage  = "Failed to add to wishlist"
	hydrateMaxLookups = 20
)

var tracer = otel.Tracer("storefront/internal/wishlist")

type Remote interface {
	GetWishlist(ctx context.Context) ([]api.WishlistItem, error)
	AddToWishlist(ctx context.Context, productID string) error
	RemoveFromWishlist(ctx context.Context, productID string) error
}

// ProductLookup fetches full product details for an id.
type ProductLookup func(ctx context.Context, productID string) (products.Product, error)

// Reconciler is the single writer of the wishlist collection and of LocalKey.
type Reconciler struct {
	remote Remote
	gate   shop.Gate
	local  cache.Cache

	mu      sync.RWMutex
	items   []api.WishlistItem
	loading int
	epoch   uint64
}

var _ shop.SessionObserver = (*Reconciler)(nil)

func New(remote Remote, gate shop.Gate, local cache.Cache) (*Reconciler, error) {
	if remote == nil {
		return nil, errors.New("wishlist remote is required")
	}
	if gate == nil {
		return nil, errors.New("session gate is required")
	}
	if local == nil {
		return nil, errors.New("local storage is required")
	}
	return &Reconciler{remote: remote, gate: gate, local: local, items: []api.WishlistItem{}}, nil
}

// Load replaces the wishlist with the server's, or with the on-device copy
// when the server has no wishlist routes. Other failures are logged and the
// current wishlist is kept.
func (r *Reconciler) Load(ctx context.Context) {
	if !r.gate.Authenticated() {
		r.replace(r.currentEpoch(), []api.WishlistItem{})
		return
	}

	ctx, span := tracer.Start(ctx, "wishlist.load")
	defer span.End()

	epoch := r.currentEpoch()
	r.setLoading(1)
	defer r.setLoading(-1)

	items, err := r.remote.GetWishlist(ctx)
	switch {
	case err == nil:
		r.replace(epoch, items)
	case api.IsNotImplemented(err):
		slog.DebugContext(ctx, "wishlist routes unavailable, using local copy", "error", err)
		local, ok := r.readLocal(ctx)
		if ok {
			r.replace(epoch, local)
		}
	default:
		telemetry.RecordError(span, err)
		slog.ErrorContext(ctx, "error loading wishlist", "error", err)
	}
}

// Add saves productID. product, when given, is kept as the local snapshot if
// the wishlist has to fall back to the device.
func (r *Reconciler) Add(ctx context.Context, productID string, product *products.Product) error {
	if !r.gate.Authenticated() {
		return shop.ErrAuthRequired
	}
	if productID == "" {
		return shop.ErrInvalidProduct
	}

	ctx, span := tracer.Start(ctx, "wishlist.add")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", productID))

	epoch := r.currentEpoch()
	err := r.remote.AddToWishlist(ctx, productID)
	switch {
	case err == nil:
		r.Load(ctx)
		return nil
	case api.IsNotImplemented(err):
		span.SetAttributes(attribute.Bool("local", true))
		r.addLocal(ctx, epoch, productID, product)
		return nil
	default:
		telemetry.RecordError(span, err)
		slog.ErrorContext(ctx, "error adding to wishlist", "product", productID, "error", err)
		return &shop.MutationError{Op: "add to wishlist", Message: api.ServerMessage(err, addFailedMessage), Err: err}
	}
}

// Remove drops productID. Failures other than missing routes are logged.
func (r *Reconciler) Remove(ctx context.Context, productID string) {
	if !r.gate.Authenticated() {
		return
	}

	ctx, span := tracer.Start(ctx, "wishlist.remove")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", productID))

	epoch := r.currentEpoch()
	err := r.remote.RemoveFromWishlist(ctx, productID)
	switch {
	case err == nil:
		r.Load(ctx)
	case api.IsNotImplemented(err):
		span.SetAttributes(attribute.Bool("local", true))
		r.removeLocal(ctx, epoch, productID)
	default:
		telemetry.RecordError(span, err)
		slog.ErrorContext(ctx, "error removing from wishlist", "product", productID, "error", err)
	}
}

// Contains reports whether any item resolves to productID.
func (r *Reconciler) Contains(productID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return contains(r.items, productID)
}

func (r *Reconciler) Items() []api.WishlistItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.items)
}

func (r *Reconciler) IsLoading() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loading > 0
}

// Hydrate fills in stub items with product details from lookup. Items that
// cannot be looked up keep their stub. On-device wishlists are persisted
// again so the details survive a restart.
func (r *Reconciler) Hydrate(ctx context.Context, lookup ProductLookup) {
	epoch := r.currentEpoch()
	stubs := lo.Filter(r.Items(), func(item api.WishlistItem, _ int) bool {
		return item.Product.IsStub()
	})
	if len(stubs) == 0 {
		return
	}
	if len(stubs) > hydrateMaxLookups {
		slog.WarnContext(ctx, "too many wishlist stubs, hydrating the first ones", "stubs", len(stubs), "max", hydrateMaxLookups)
		stubs = stubs[:hydrateMaxLookups]
	}

	found := make(map[string]products.Product, len(stubs))
	for _, item := range stubs {
		id := item.ProductID()
		p, err := lookup(ctx, id)
		if err != nil {
			slog.WarnContext(ctx, "failed to look up wishlist product", "product", id, "error", err)
			continue
		}
		if p.ID == "" {
			p.ID = id
		}
		found[id] = p
	}
	if len(found) == 0 {
		return
	}

	r.mu.Lock()
	if r.epoch != epoch {
		r.mu.Unlock()
		return
	}
	local := false
	for i, item := range r.items {
		if p, ok := found[item.ProductID()]; ok && item.Product.IsStub() {
			r.items[i].Product = p
		}
		local = local || isLocal(item)
	}
	snapshot := slices.Clone(r.items)
	r.mu.Unlock()

	if local {
		r.writeLocal(ctx, snapshot)
	}
}

func (r *Reconciler) SessionStarted(ctx context.Context) {
	r.Load(ctx)
}

// SessionEnded empties the wishlist. The on-device copy is left for the next
// session.
func (r *Reconciler) SessionEnded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = []api.WishlistItem{}
	r.epoch++
}

// addLocal and removeLocal drop the change when the session ended after
// epoch was read.
func (r *Reconciler) addLocal(ctx context.Context, epoch uint64, productID string, product *products.Product) {
	r.mu.Lock()
	if r.epoch != epoch || contains(r.items, productID) {
		r.mu.Unlock()
		return
	}
	snap := products.Stub(productID)
	if product != nil {
		snap = *product
		snap.ID = productID
	}
	r.items = append(r.items, api.WishlistItem{ID: localPrefix + productID, Product: snap})
	snapshot := slices.Clone(r.items)
	r.mu.Unlock()

	r.writeLocal(ctx, snapshot)
}

func (r *Reconciler) removeLocal(ctx context.Context, epoch uint64, productID string) {
	r.mu.Lock()
	if r.epoch != epoch {
		r.mu.Unlock()
		return
	}
	r.items = lo.Reject(r.items, func(item api.WishlistItem, _ int) bool {
		return item.ProductID() == productID
	})
	snapshot := slices.Clone(r.items)
	r.mu.Unlock()

	r.writeLocal(ctx, snapshot)
}

// readLocal returns false when there is nothing usable on the device.
func (r *Reconciler) readLocal(ctx context.Context) ([]api.WishlistItem, bool) {
	raw, err := cache.GetString(ctx, r.local, LocalKey)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			slog.ErrorContext(ctx, "failed to read local wishlist", "error", err)
		}
		return nil, false
	}
	var items []api.WishlistItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		slog.ErrorContext(ctx, "failed to decode local wishlist", "error", err)
		return nil, false
	}
	if items == nil {
		items = []api.WishlistItem{}
	}
	return items, true
}

func (r *Reconciler) writeLocal(ctx context.Context, items []api.WishlistItem) {
	b, err := json.Marshal(items)
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode local wishlist", "error", err)
		return
	}
	if err := r.local.Put(ctx, LocalKey, string(b)); err != nil {
		slog.ErrorContext(ctx, "failed to persist local wishlist", "error", err)
	}
}

func (r *Reconciler) replace(epoch uint64, items []api.WishlistItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if epoch != r.epoch {
		return
	}
	if items == nil {
		items = []api.WishlistItem{}
	}
	r.items = items
}

func (r *Reconciler) currentEpoch() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.epoch
}

func (r *Reconciler) setLoading(delta int) {
	r.mu.Lock()
	r.loading += delta
	r.mu.Unlock()
}

func contains(items []api.WishlistItem, productID string) bool {
	return lo.ContainsBy(items, func(item api.WishlistItem) bool {
		return item.ProductID() == productID
	})
}

func isLocal(item api.WishlistItem) bool {
	return strings.HasPrefix(item.ID, localPrefix)
}
