package cache

import (
	"log/slog"

	"storefront/internal/config"
)

// MakeCache picks the persistence backend from config: Azure Blob Storage when
// an account is configured, otherwise a directory on disk.
func MakeCache(cfg config.StorageConfig) (Cache, error) {
	if cfg.AccountName != "" {
		slog.Info("using Azure Blob Storage for local persistence", "account", cfg.AccountName)
		return NewBlobCache(cfg)
	}
	dir := cfg.Dir
	if dir == "" {
		dir = "cache"
	}
	return NewFileCache(dir), nil
}
