package predictions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/liamcoop/premium/premium"
)

// Cache stores finalized results keyed by model version and validated input.
// Scoring is deterministic, so a hit is always identical to a fresh score.
type Cache interface {
	// Get returns the cached result; ok is false on a miss or expiry
	Get(ctx context.Context, key string) (res *premium.PremiumResult, ok bool, err error)

	// Set stores a result under key
	Set(ctx context.Context, key string, res *premium.PremiumResult) error
}

// CacheConfig holds configuration for cache behavior
type CacheConfig struct {
	// TTL is how long an entry stays valid. Zero keeps entries until evicted.
	TTL time.Duration

	// Size bounds the number of in-memory entries. Zero means unbounded.
	Size int
}

// DefaultCacheConfig returns the defaults used when nothing is configured
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:  10 * time.Minute,
		Size: 10000,
	}
}

// Key derives the cache key for a validated record under a pipeline's
// CacheScope. JSON object keys are emitted sorted, which makes the encoding
// canonical.
func Key(scope string, rec *premium.ValidatedRecord) (string, error) {
	canonical, err := json.Marshal(rec.Activation())
	if err != nil {
		return "", fmt.Errorf("failed to encode record: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return scope + ":" + hex.EncodeToString(sum[:]), nil
}

// TieredCache checks a fast local cache before a shared one and fills the
// local cache on shared hits
type TieredCache struct {
	local  Cache
	shared Cache
}

// NewTieredCache layers local in front of shared
func NewTieredCache(local, shared Cache) *TieredCache {
	return &TieredCache{local: local, shared: shared}
}

// Get returns the first hit
func (c *TieredCache) Get(ctx context.Context, key string) (*premium.PremiumResult, bool, error) {
	if res, ok, err := c.local.Get(ctx, key); err == nil && ok {
		return res, true, nil
	}

	res, ok, err := c.shared.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = c.local.Set(ctx, key, res)
	return res, true, nil
}

// Set writes through to both tiers
func (c *TieredCache) Set(ctx context.Context, key string, res *premium.PremiumResult) error {
	if err := c.local.Set(ctx, key, res); err != nil {
		return err
	}
	return c.shared.Set(ctx, key, res)
}
