package predictions

import (
	"context"
	"testing"
	"time"

	"github.com/liamcoop/premium/premium"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validated(t *testing.T, p *premium.Pipeline, raw premium.RawRecord) *premium.ValidatedRecord {
	t.Helper()
	rec, err := p.Validator().Validate(raw)
	require.NoError(t, err)
	return rec
}

func TestKeyIsCanonical(t *testing.T) {
	p := testPipeline(t)

	base := applicant()
	key, err := Key("v1", validated(t, p, base))
	require.NoError(t, err)

	// same values, different JSON spellings and an ignored extra field
	variant := applicant()
	variant["age"] = 30.0
	variant["income"] = int64(10)
	variant["nickname"] = "Al"
	same, err := Key("v1", validated(t, p, variant))
	require.NoError(t, err)
	assert.Equal(t, key, same)

	otherVersion, err := Key("v2", validated(t, p, base))
	require.NoError(t, err)
	assert.NotEqual(t, key, otherVersion)

	changed := applicant()
	changed["medical_history"] = "Thyroid"
	different, err := Key("v1", validated(t, p, changed))
	require.NoError(t, err)
	assert.NotEqual(t, key, different)
}

// TestKeySeparatesFinalizerSettings verifies that pipelines which clamp or
// round differently never share cache entries
func TestKeySeparatesFinalizerSettings(t *testing.T) {
	load := func(floor float64, decimals int32) *premium.Pipeline {
		p, err := premium.Load("", premium.Options{Floor: floor, Decimals: decimals})
		require.NoError(t, err)
		return p
	}

	base := load(0, 0)
	rec := validated(t, base, applicant())
	key, err := Key(base.CacheScope(), rec)
	require.NoError(t, err)

	same, err := Key(load(0, 0).CacheScope(), rec)
	require.NoError(t, err)
	assert.Equal(t, key, same)

	for _, other := range []*premium.Pipeline{load(100000, 0), load(0, 2)} {
		otherKey, err := Key(other.CacheScope(), rec)
		require.NoError(t, err)
		assert.NotEqual(t, key, otherKey, other.CacheScope())
	}
}

func TestMemoryCacheTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	cache := NewMemoryCache(CacheConfig{TTL: time.Minute})
	cache.now = func() time.Time { return now }

	res := &premium.PremiumResult{Premium: 11500, Segment: "rest"}
	require.NoError(t, cache.Set(ctx, "k", res))

	// stored value is a copy
	res.Premium = 1

	got, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 11500.0, got.Premium)

	now = now.Add(2 * time.Minute)
	_, ok, err = cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "entry should expire")

	_, ok, _ = cache.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestMemoryCacheEviction(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	cache := NewMemoryCache(CacheConfig{Size: 2})
	cache.now = func() time.Time { return now }

	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, cache.Set(ctx, key, &premium.PremiumResult{Segment: key}))
		now = now.Add(time.Second)
	}

	assert.Equal(t, 2, cache.Len())
	_, ok, _ := cache.Get(ctx, "a")
	assert.False(t, ok, "oldest entry is evicted")
	_, ok, _ = cache.Get(ctx, "c")
	assert.True(t, ok)

	// overwriting an existing key never evicts
	require.NoError(t, cache.Set(ctx, "c", &premium.PremiumResult{Segment: "c2"}))
	assert.Equal(t, 2, cache.Len())
}

func TestTieredCache(t *testing.T) {
	ctx := context.Background()
	local := NewMemoryCache(CacheConfig{})
	shared := NewMemoryCache(CacheConfig{})
	tiered := NewTieredCache(local, shared)

	res := &premium.PremiumResult{Premium: 42}
	require.NoError(t, shared.Set(ctx, "k", res))

	got, ok, err := tiered.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 42.0, got.Premium)
	assert.Equal(t, 1, local.Len(), "shared hit fills local")

	require.NoError(t, tiered.Set(ctx, "j", res))
	assert.Equal(t, 2, local.Len())
	assert.Equal(t, 2, shared.Len())

	_, ok, err = tiered.Get(ctx, "none")
	require.NoError(t, err)
	assert.False(t, ok)
}
