package cache

import (
	"context"
	"time"
)

// NullCache backs --no-cache: plans and artifacts are recomputed on every run.
type NullCache struct{}

// NewNullCache returns a cache that never stores plans or artifacts.
func NewNullCache() Cache {
	return &NullCache{}
}

// Get reports a miss for every plan or artifact key.
func (c *NullCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

// Set drops data.
func (c *NullCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return nil
}

func (c *NullCache) Delete(ctx context.Context, key string) error {
	return nil
}

func (c *NullCache) Close() error {
	return nil
}

var _ Cache = (*NullCache)(nil)
