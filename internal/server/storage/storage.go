// Package storage abstracts where user files live so that the quota and
// directory provisioning logic works for both a local filesystem and S3.
package storage

import (
	"context"
	"fmt"

	sc "github.com/dmitrijs2005/davkeeper/internal/server/config"
)

// Backend provisions a user's storage root and measures what it holds.
// path is the user's StoragePath, always ending with "/".
type Backend interface {
	EnsureDir(ctx context.Context, path string) error
	Size(ctx context.Context, path string) (int64, error)
}

// New returns the backend selected by cfg.StorageBackend.
func New(ctx context.Context, cfg *sc.Config) (Backend, error) {
	switch cfg.StorageBackend {
	case sc.StorageLocal:
		return NewLocal(), nil
	case sc.StorageS3:
		return NewS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
