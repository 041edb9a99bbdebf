package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations. The primary use is
// the threshold criteria snapshot: criteria records are immutable within
// their validity window, so the full set is cached as a single value and
// read once per orchestration call.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetCriteriaSet retrieves the cached criteria snapshot.
	// Returns nil, nil on a miss.
	GetCriteriaSet(ctx context.Context) ([]*ThresholdCriteria, error)

	// SetCriteriaSet caches the full criteria snapshot.
	SetCriteriaSet(ctx context.Context, set []*ThresholdCriteria, ttl time.Duration) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CriteriaSetKey is the cache key for the criteria snapshot.
const CriteriaSetKey = "criteria:set"

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community tier)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
