// Package session tracks whether a shopper is signed in and tells the cart
// and wishlist when that changes.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"storefront/internal/api"
	"storefront/internal/cache"
	"storefront/internal/shop"
)

const (
	tokenKey = "session/token"
	userKey  = "session/user"
)

type authClient interface {
	Login(ctx context.Context, email, password string) (string, *api.User, error)
	Signup(ctx context.Context, req api.SignupRequest) (string, *api.User, error)
	Me(ctx context.Context) (*api.User, error)
	SetToken(token string)
}

// Manager owns the signed-in state. It is the shop.Gate for the reconcilers.
type Manager struct {
	client authClient
	store  cache.Cache
	vault  *Vault

	mu        sync.RWMutex
	user      *api.User
	observers []shop.SessionObserver
}

var _ shop.Gate = (*Manager)(nil)

type Option func(*Manager)

// WithVault encrypts the persisted token.
func WithVault(v *Vault) Option {
	return func(m *Manager) {
		m.vault = v
	}
}

func NewManager(client authClient, store cache.Cache, opts ...Option) (*Manager, error) {
	if client == nil {
		return nil, errors.New("auth client is required")
	}
	if store == nil {
		return nil, errors.New("session storage is required")
	}
	m := &Manager{client: client, store: store}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Observe registers o for session transitions.
func (m *Manager) Observe(o shop.SessionObserver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

func (m *Manager) Authenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user != nil
}

// User returns a copy of the signed-in user, or nil.
func (m *Manager) User() *api.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

func (m *Manager) Login(ctx context.Context, email, password string) (*api.User, error) {
	token, user, err := m.client.Login(ctx, email, password)
	if err != nil {
		return nil, &shop.AuthError{Message: api.ServerMessage(err, "Login failed"), Err: err}
	}
	m.persist(ctx, token, user)
	m.start(ctx, token, user)
	slog.InfoContext(ctx, "signed in", "user", user.ID)
	return user, nil
}

func (m *Manager) Signup(ctx context.Context, req api.SignupRequest) (*api.User, error) {
	token, user, err := m.client.Signup(ctx, req)
	if err != nil {
		return nil, &shop.AuthError{Message: api.ServerMessage(err, "Signup failed"), Err: err}
	}
	m.persist(ctx, token, user)
	m.start(ctx, token, user)
	slog.InfoContext(ctx, "signed up", "user", user.ID)
	return user, nil
}

// Restore picks up a session persisted by an earlier run. The token is
// checked with the server; a rejected or unreadable session is wiped.
func (m *Manager) Restore(ctx context.Context) bool {
	token, err := m.loadToken(ctx)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			slog.ErrorContext(ctx, "failed to read persisted session token", "error", err)
			m.clear(ctx)
		}
		return false
	}
	if ok, err := m.store.Exists(ctx, userKey); err != nil || !ok {
		slog.InfoContext(ctx, "persisted session has no user record", "error", err)
		m.clear(ctx)
		return false
	}

	m.client.SetToken(token)
	user, err := m.client.Me(ctx)
	if err != nil {
		slog.InfoContext(ctx, "persisted session rejected", "error", err)
		m.client.SetToken("")
		m.clear(ctx)
		return false
	}
	m.persist(ctx, token, user)
	m.start(ctx, token, user)
	return true
}

// Logout ends the session. Observers have reset their state by the time it
// returns; clearing local storage failures are logged only.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	m.user = nil
	observers := slices.Clone(m.observers)
	m.mu.Unlock()

	m.client.SetToken("")
	for _, o := range observers {
		o.SessionEnded()
	}
	m.clear(ctx)
	slog.InfoContext(ctx, "signed out")
}

func (m *Manager) start(ctx context.Context, token string, user *api.User) {
	m.client.SetToken(token)
	m.mu.Lock()
	m.user = user
	observers := slices.Clone(m.observers)
	m.mu.Unlock()

	// cart and wishlist reload side by side; their loads never fail outward
	var g errgroup.Group
	for _, o := range observers {
		g.Go(func() error {
			o.SessionStarted(ctx)
			return nil
		})
	}
	_ = g.Wait()
}

func (m *Manager) persist(ctx context.Context, token string, user *api.User) {
	stored := token
	if m.vault != nil {
		sealed, err := m.vault.Seal(token)
		if err != nil {
			slog.ErrorContext(ctx, "failed to seal session token", "error", err)
			return
		}
		stored = sealed
	}
	userBytes, err := json.Marshal(user)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal session user", "error", err)
		return
	}
	if err := errors.Join(
		m.store.Put(ctx, tokenKey, stored),
		m.store.Put(ctx, userKey, string(userBytes)),
	); err != nil {
		slog.ErrorContext(ctx, "failed to persist session", "error", err)
	}
}

func (m *Manager) loadToken(ctx context.Context) (string, error) {
	stored, err := cache.GetString(ctx, m.store, tokenKey)
	if err != nil {
		return "", err
	}
	if m.vault == nil {
		return stored, nil
	}
	token, err := m.vault.Open(stored)
	if err != nil {
		return "", fmt.Errorf("open persisted token: %w", err)
	}
	return token, nil
}

func (m *Manager) clear(ctx context.Context) {
	if err := errors.Join(
		m.store.Delete(ctx, tokenKey),
		m.store.Delete(ctx, userKey),
	); err != nil {
		slog.ErrorContext(ctx, "failed to clear persisted session", "error", err)
	}
}
