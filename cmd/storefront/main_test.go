package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"storefront/internal/cache"
	"storefront/internal/config"
	"storefront/internal/shop"
)

// fakeShop is a shop API with auth, one product, a cart and no wishlist
// routes.
type fakeShop struct {
	mu    sync.Mutex
	items []map[string]any
}

func (s *fakeShop) reply(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *fakeShop) ok(w http.ResponseWriter, data any) {
	s.reply(w, http.StatusOK, map[string]any{"success": true, "data": data})
}

func (s *fakeShop) cart() map[string]any {
	return map[string]any{"cart": map[string]any{"items": s.items}}
}

func (s *fakeShop) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := map[string]any{"_id": "u1", "name": "Asha", "email": "asha@example.com"}
	authorized := r.Header.Get("Authorization") == "Bearer tok"

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/auth/login":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			s.reply(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Invalid credentials"})
			return
		}
		s.ok(w, map[string]any{"token": "tok", "user": user})
	case r.URL.Path == "/api/auth/me" && authorized:
		s.ok(w, map[string]any{"user": user})
	case r.URL.Path == "/api/products/watches/p1":
		s.ok(w, map[string]any{"product": map[string]any{"_id": "p1", "name": "Chrono", "price": 2000, "finalPrice": 1500}})
	case strings.HasPrefix(r.URL.Path, "/api/wishlist"):
		s.reply(w, http.StatusNotFound, map[string]any{"success": false, "message": "Route not found"})
	case !authorized:
		s.reply(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Not authorized"})
	case r.Method == http.MethodGet && r.URL.Path == "/api/cart":
		s.ok(w, s.cart())
	case r.Method == http.MethodPost && r.URL.Path == "/api/cart/add":
		var body struct {
			Product  json.RawMessage `json:"product"`
			Quantity int             `json:"quantity"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.items = append(s.items, map[string]any{"_id": "line1", "product": body.Product, "quantity": body.Quantity})
		s.ok(w, s.cart())
	default:
		s.reply(w, http.StatusNotFound, map[string]any{"success": false, "message": "Route not found"})
	}
}

func newTestApp(t *testing.T, server *httptest.Server, store cache.Cache) (*app, *bytes.Buffer) {
	t.Helper()
	cfg := &config.Config{
		API:      config.APIConfig{BaseURL: server.URL + "/api", HTTPClient: server.Client()},
		Currency: "USD",
	}
	out := &bytes.Buffer{}
	a, err := newApp(cfg, store, out)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, out
}

func TestShoppingSession(t *testing.T) {
	ctx := context.Background()
	server := httptest.NewServer(&fakeShop{})
	t.Cleanup(server.Close)
	store := cache.NewInMemoryCache()

	a, out := newTestApp(t, server, store)
	if a.session.Restore(ctx) {
		t.Fatal("nothing to restore yet")
	}

	steps := []struct {
		args []string
		want string
	}{
		{[]string{"login", "asha@example.com", "secret"}, "signed in as Asha"},
		{[]string{"add", "watches", "p1", "2"}, "2 items, total $3,000.00"},
		{[]string{"wish", "p1"}, "saved p1"},
		{[]string{"wishlist"}, "p1\tChrono"},
	}
	for _, step := range steps {
		out.Reset()
		if err := a.dispatch(ctx, step.args); err != nil {
			t.Fatalf("%v: %v", step.args, err)
		}
		if !strings.Contains(out.String(), step.want) {
			t.Fatalf("%v: expected %q in output %q", step.args, step.want, out.String())
		}
	}

	// a second run picks up the persisted session, cart and local wishlist
	b, out := newTestApp(t, server, store)
	if !b.session.Restore(ctx) {
		t.Fatal("expected session to be restored")
	}
	if err := b.dispatch(ctx, []string{"whoami"}); err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if !strings.Contains(out.String(), "Asha") {
		t.Fatalf("unexpected whoami output %q", out.String())
	}
	if len(b.cart.Items()) != 1 || !b.wishlist.Contains("p1") {
		t.Fatalf("expected restored cart and wishlist, got %d items, wishlist %v", len(b.cart.Items()), b.wishlist.Items())
	}

	out.Reset()
	if err := b.dispatch(ctx, []string{"logout"}); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if len(b.cart.Items()) != 0 || len(b.wishlist.Items()) != 0 {
		t.Fatal("expected logout to empty cart and wishlist")
	}
	if err := b.dispatch(ctx, []string{"add", "watches", "p1"}); !errors.Is(err, shop.ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
}

func TestLoginFailureShowsServerMessage(t *testing.T) {
	server := httptest.NewServer(&fakeShop{})
	t.Cleanup(server.Close)
	a, _ := newTestApp(t, server, cache.NewInMemoryCache())

	err := a.dispatch(context.Background(), []string{"login", "asha@example.com", "wrong"})
	if err == nil || err.Error() != "Invalid credentials" {
		t.Fatalf("expected server message, got %v", err)
	}
}

func TestDispatchUsage(t *testing.T) {
	server := httptest.NewServer(&fakeShop{})
	t.Cleanup(server.Close)
	a, _ := newTestApp(t, server, cache.NewInMemoryCache())

	if err := a.dispatch(context.Background(), []string{"qty", "line1"}); err == nil || !strings.HasPrefix(err.Error(), "usage: storefront qty") {
		t.Fatalf("expected usage error, got %v", err)
	}
	if err := a.dispatch(context.Background(), []string{"dance"}); err == nil {
		t.Fatal("expected unknown command error")
	}
	for _, name := range commandOrder {
		if _, ok := commands[name]; !ok {
			t.Fatalf("help lists unknown command %q", name)
		}
	}
	if len(commandOrder) != len(commands) {
		t.Fatal("help does not list every command")
	}
}
