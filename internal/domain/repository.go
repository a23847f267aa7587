package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (any, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Size() int
	Clear()
}

// CatalogRepository loads the scraped catalog as a whole table
type CatalogRepository interface {
	Snapshot(ctx context.Context) (*CatalogSnapshot, error)
}
