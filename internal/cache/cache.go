package cache

import (
	"context"
	"errors"
	"io"
)

var ErrNotFound = errors.New("cache entry not found")

// Cache is the on-device key/value store. Values survive a restart for every
// backend except InMemoryCache.
type Cache interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// GetString reads a whole entry. Missing keys return ErrNotFound.
func GetString(ctx context.Context, c Cache, key string) (string, error) {
	r, err := c.Get(ctx, key)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = r.Close()
	}()
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
