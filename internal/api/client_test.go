package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"storefront/internal/config"
	"storefront/internal/products"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(config.APIConfig{
		BaseURL:    server.URL + "/api/",
		Retries:    1,
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(config.APIConfig{}); err == nil {
		t.Fatal("expected error for empty base URL")
	}
}

func TestGetCart_SetsHeadersAndDecodesItems(t *testing.T) {
	t.Parallel()

	var capturedReq *http.Request
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		capturedReq = r
		_, _ = w.Write([]byte(`{"success":true,"data":{"cart":{"items":[
			{"_id":"line-1","product":{"_id":"p1","name":"Watch","price":200,"finalPrice":150},"quantity":2,"size":"M"},
			{"id":"line-2","product":"p2","quantity":1}
		]}}}`))
	})
	client.SetToken("tok-123")

	items, err := client.GetCart(context.Background())
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}

	if capturedReq.URL.Path != "/api/cart" {
		t.Fatalf("unexpected path: %s", capturedReq.URL.Path)
	}
	if got := capturedReq.Header.Get("Authorization"); got != "Bearer tok-123" {
		t.Fatalf("unexpected Authorization header: %q", got)
	}
	if capturedReq.Header.Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID")
	}

	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ID != "line-1" || items[0].Quantity != 2 || items[0].Size != "M" {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	if items[0].Product.EffectivePrice() != 150 {
		t.Fatalf("unexpected effective price: %v", items[0].Product.EffectivePrice())
	}
	if items[1].ID != "line-2" || items[1].Product.ID != "p2" {
		t.Fatalf("unexpected second item: %+v", items[1])
	}
}

func TestGetCart_EmptyDataIsEmptyList(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"cart":null}}`))
	})

	items, err := client.GetCart(context.Background())
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", items)
	}
}

func TestAddToCart_SendsNormalizedProduct(t *testing.T) {
	t.Parallel()

	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/cart/add" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"cart":{"items":[{"_id":"line-1","product":{"_id":"p1"},"quantity":2}]}}}`))
	})

	product := products.Normalize(products.Raw{"_id": "p1", "price": 200.0, "finalPrice": 150.0})
	items, err := client.AddToCart(context.Background(), product, 2, "L", "red")
	if err != nil {
		t.Fatalf("add to cart: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}

	if body["productId"] != "p1" || body["quantity"] != 2.0 || body["size"] != "L" || body["color"] != "red" {
		t.Fatalf("unexpected request body: %v", body)
	}
	wireProduct, _ := body["product"].(map[string]any)
	if wireProduct["finalPrice"] != 150.0 || wireProduct["name"] != "" {
		t.Fatalf("unexpected product in body: %v", wireProduct)
	}
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		kind    Kind
		message string
	}{
		{name: "legacy route message", status: http.StatusOK, body: `{"success":false,"message":"Route not found"}`, kind: KindNotImplemented, message: "Route not found"},
		{name: "missing route html", status: http.StatusNotFound, body: `<!DOCTYPE html><pre>Cannot POST /api/wishlist/add</pre>`, kind: KindNotImplemented, message: "Not Found"},
		{name: "not implemented", status: http.StatusNotImplemented, body: `{"success":false}`, kind: KindNotImplemented},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"success":false,"message":"Token expired"}`, kind: KindUnauthorized, message: "Token expired"},
		{name: "validation", status: http.StatusBadRequest, body: `{"success":false,"message":"Out of stock"}`, kind: KindValidation, message: "Out of stock"},
		{name: "server error", status: http.StatusInternalServerError, body: `{"success":false,"message":"boom"}`, kind: KindTransient, message: "boom"},
		{name: "server error mentioning route", status: http.StatusInternalServerError, body: `{"success":false,"message":"Route not found"}`, kind: KindTransient, message: "Route not found"},
		{name: "unauthorized mentioning route", status: http.StatusForbidden, body: `{"success":false,"message":"Route not found"}`, kind: KindUnauthorized, message: "Route not found"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			err := client.AddToWishlist(context.Background(), "p2")
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if apiErr.Kind != tc.kind {
				t.Fatalf("kind = %v, want %v", apiErr.Kind, tc.kind)
			}
			if apiErr.Message != tc.message {
				t.Fatalf("message = %q, want %q", apiErr.Message, tc.message)
			}
			if got := IsNotImplemented(err); got != (tc.kind == KindNotImplemented) {
				t.Fatalf("IsNotImplemented = %v", got)
			}
		})
	}
}

func TestReadsRetryMutationsDoNot(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"success":false,"message":"try later"}`))
	})

	_, err := client.GetWishlist(context.Background())
	if KindOf(err) != KindTransient {
		t.Fatalf("expected transient error, got %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected GET to be tried twice, got %d", got)
	}

	calls.Store(0)
	if err := client.RemoveFromWishlist(context.Background(), "p1"); err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected DELETE to be sent once, got %d", got)
	}
}

func TestTransportErrorHasNoServerMessage(t *testing.T) {
	t.Parallel()

	client, err := NewClient(config.APIConfig{BaseURL: "http://127.0.0.1:1/api"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	err = client.ClearCart(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if KindOf(err) != KindTransient {
		t.Fatalf("expected transient kind, got %v", KindOf(err))
	}
	if got := ServerMessage(err, "fallback"); got != "fallback" {
		t.Fatalf("expected fallback message, got %q", got)
	}
}

func TestLoginAndMe(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			_, _ = w.Write([]byte(`{"success":true,"data":{"token":"tok-1","user":{"_id":"u1","name":"Asha","email":"asha@example.com"}}}`))
		case "/api/auth/me":
			if r.Header.Get("Authorization") != "Bearer tok-1" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"success":false,"message":"Not authorized"}`))
				return
			}
			_, _ = w.Write([]byte(`{"success":true,"data":{"user":{"_id":"u1","name":"Asha"}}}`))
		}
	})

	token, user, err := client.Login(context.Background(), "asha@example.com", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token != "tok-1" || user.ID != "u1" {
		t.Fatalf("unexpected login result %q %+v", token, user)
	}

	if _, err := client.Me(context.Background()); KindOf(err) != KindUnauthorized {
		t.Fatalf("expected unauthorized before token is set, got %v", err)
	}
	client.SetToken(token)
	me, err := client.Me(context.Background())
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if me.Name != "Asha" {
		t.Fatalf("unexpected user %+v", me)
	}
}

func TestProductsAndSearch(t *testing.T) {
	t.Parallel()

	var queries []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.String())
		_, _ = w.Write([]byte(`{"success":true,"data":{"products":[{"_id":"p1","productName":"Lens"}]}}`))
	})

	list, err := client.Products(context.Background(), "lenses", ListQuery{Limit: 20})
	if err != nil {
		t.Fatalf("products: %v", err)
	}
	if len(list) != 1 || list[0].ID() != "p1" {
		t.Fatalf("unexpected products %v", list)
	}
	if _, err := client.Search(context.Background(), "blue lens"); err != nil {
		t.Fatalf("search: %v", err)
	}

	if queries[0] != "/api/products/lenses?limit=20" {
		t.Fatalf("unexpected products url %s", queries[0])
	}
	if !strings.HasPrefix(queries[1], "/api/search?q=blue+lens") {
		t.Fatalf("unexpected search url %s", queries[1])
	}
}

func TestLiveTrackingURL(t *testing.T) {
	t.Parallel()

	for base, want := range map[string]string{
		"https://shop.example.com/api": "wss://shop.example.com/api/tracking/o1/live",
		"http://localhost:5000/api":    "ws://localhost:5000/api/tracking/o1/live",
	} {
		client, err := NewClient(config.APIConfig{BaseURL: base})
		if err != nil {
			t.Fatalf("new client: %v", err)
		}
		if got := client.LiveTrackingURL("o1"); got != want {
			t.Fatalf("LiveTrackingURL(%s) = %s, want %s", base, got, want)
		}
	}
}
