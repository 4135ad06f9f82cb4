package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"storefront/internal/api"
	"storefront/internal/cache"
	"storefront/internal/cart"
	"storefront/internal/config"
	"storefront/internal/money"
	"storefront/internal/orders"
	"storefront/internal/products"
	"storefront/internal/session"
	"storefront/internal/wishlist"
)

// app is one shopper's client: the API binding plus the state containers
// that sit on top of it.
type app struct {
	client   *api.Client
	session  *session.Manager
	cart     *cart.Reconciler
	wishlist *wishlist.Reconciler
	orders   *orders.Service
	watcher  *orders.Watcher
	money    *money.Formatter
	out      io.Writer
}

func newApp(cfg *config.Config, store cache.Cache, out io.Writer) (*app, error) {
	client, err := api.NewClient(cfg.API)
	if err != nil {
		return nil, fmt.Errorf("failed to create api client: %w", err)
	}

	var opts []session.Option
	if cfg.Session.Passphrase != "" {
		vault, err := session.NewVault(cfg.Session.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to create session vault: %w", err)
		}
		opts = append(opts, session.WithVault(vault))
	}
	sessions, err := session.NewManager(client, store, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	var cartOpts []cart.Option
	if cfg.Cart.SequenceResponses {
		cartOpts = append(cartOpts, cart.WithSequencing())
	}
	cartState, err := cart.New(client, sessions, cartOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	wishlistState, err := wishlist.New(client, sessions, store)
	if err != nil {
		return nil, fmt.Errorf("failed to create wishlist: %w", err)
	}
	sessions.Observe(cartState)
	sessions.Observe(wishlistState)

	orderService, err := orders.NewService(client, sessions, cartState)
	if err != nil {
		return nil, fmt.Errorf("failed to create order service: %w", err)
	}

	formatter, err := money.New(cfg.Currency)
	if err != nil {
		slog.Warn("unknown currency, falling back to INR", "currency", cfg.Currency, "error", err)
		formatter, err = money.New("INR")
		if err != nil {
			return nil, err
		}
	}

	return &app{
		client:   client,
		session:  sessions,
		cart:     cartState,
		wishlist: wishlistState,
		orders:   orderService,
		watcher:  orders.NewWatcher(client),
		money:    formatter,
		out:      out,
	}, nil
}

// lookupProduct finds a product by id across every category.
func (a *app) lookupProduct(ctx context.Context, productID string) (products.Product, error) {
	for _, category := range api.Categories {
		raw, err := a.client.Product(ctx, category, productID)
		if err != nil {
			if api.IsNotImplemented(err) {
				continue
			}
			return products.Product{}, err
		}
		if raw != nil {
			return products.Normalize(raw), nil
		}
	}
	return products.Product{}, errors.New("product not found in any category")
}

func (a *app) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.out, format, args...)
}
