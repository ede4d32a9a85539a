// Package cache stores schedule plans and rendered artifacts.
//
// Plans are pure functions of a graph and the scheduling options, so they
// can be reused across runs and across processes. Three backends share the
// [Cache] interface:
//
//   - [FileCache]: one file per entry under a directory, for the CLI
//   - [RedisCache]: a shared Redis instance, for the API server
//   - [NullCache]: stores nothing, for --no-cache
//
// Keys come from a [Keyer], so callers never build key strings by hand.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key-value store with optional expiry.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the stored value and whether it was found. A miss is not
	// an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend's resources.
	Close() error
}

// Entry lifetimes.
const (
	TTLPlan     = 7 * 24 * time.Hour
	TTLArtifact = 24 * time.Hour
)

// Keyer builds cache keys.
type Keyer interface {
	// PlanKey identifies the plan computed for a graph hash with a strategy
	// and lane count.
	PlanKey(graphHash, strategy string, lanes int) string

	// ArtifactKey identifies a rendered artifact of a plan.
	ArtifactKey(planHash, format string) string
}

// DefaultKeyer produces unscoped keys of the form "kind:sha256".
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// PlanKey implements Keyer.
func (DefaultKeyer) PlanKey(graphHash, strategy string, lanes int) string {
	return hashKey("plan", graphHash, strategy, lanes)
}

// ArtifactKey implements Keyer.
func (DefaultKeyer) ArtifactKey(planHash, format string) string {
	return hashKey("artifact", planHash, format)
}
