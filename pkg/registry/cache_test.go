package registry

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCachedTestStore(t *testing.T) (*CachedStore, *FileSystemStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	inner, err := NewFileSystemStore(t.TempDir())
	require.NoError(t, err)

	cfg := DefaultCacheConfig()
	cfg.RedisURL = "redis://" + mr.Addr()

	cached, err := NewCachedStore(inner, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cached.Close() })

	return cached, inner, mr
}

func TestCachedStore_GetPublishCaches(t *testing.T) {
	cached, inner, _ := newCachedTestStore(t)
	ctx := context.Background()

	pf := newTestRecord("id-1", "char.abc", "shot_010", 1, time.Now().UTC())
	require.NoError(t, cached.CreatePublish(ctx, pf))

	got, err := cached.GetPublish(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "char.abc", got.Name)

	// Remove the record from the backing store; the cached copy satisfies
	// reads because publish records are immutable.
	require.NoError(t, inner.DeletePublish(ctx, "id-1"))

	got, err = cached.GetPublish(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "id-1", got.ID)
}

func TestCachedStore_RetentionSweepsThroughCache(t *testing.T) {
	cached, _, _ := newCachedTestStore(t)
	ctx := context.Background()

	old := time.Now().UTC().Add(-60 * 24 * time.Hour)
	pf := newTestRecord("id-old", "char.abc", "shot_010", 1, old)
	require.NoError(t, cached.CreatePublish(ctx, pf))

	// Warm both cache layers.
	_, err := cached.GetPublish(ctx, "id-old")
	require.NoError(t, err)

	r, err := NewRetention(cached, RetentionConfig{
		MaxAge: 30 * 24 * time.Hour,
	}, retentionLogger())
	require.NoError(t, err, "cached store must support entity listing")

	// The default keep count of 3 would retain the only record.
	r.cfg.KeepVersions = 0
	removed, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	// The sweep deleted through the cached store, so the record is evicted
	// rather than lingering in Redis or L1.
	_, err = cached.GetPublish(ctx, "id-old")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCachedStore_RedisLayerSurvivesL1Eviction(t *testing.T) {
	mr := miniredis.RunT(t)
	inner, err := NewFileSystemStore(t.TempDir())
	require.NoError(t, err)

	cfg := DefaultCacheConfig()
	cfg.RedisURL = "redis://" + mr.Addr()
	cfg.L1Entries = 1 // second insert evicts the first

	cached, err := NewCachedStore(inner, cfg, nil)
	require.NoError(t, err)
	defer cached.Close()

	ctx := context.Background()
	a := newTestRecord("a", "a.abc", "shot_010", 1, time.Now().UTC())
	b := newTestRecord("b", "b.abc", "shot_010", 1, time.Now().UTC())
	require.NoError(t, cached.CreatePublish(ctx, a))
	require.NoError(t, cached.CreatePublish(ctx, b))

	_, err = cached.GetPublish(ctx, "a")
	require.NoError(t, err)
	_, err = cached.GetPublish(ctx, "b") // evicts "a" from L1
	require.NoError(t, err)

	require.NoError(t, inner.DeletePublish(ctx, "a"))

	// "a" is gone from the store and from L1, but Redis still holds it.
	got, err := cached.GetPublish(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
}

func TestCachedStore_LatestVersionInvalidatedOnWrite(t *testing.T) {
	cached, _, _ := newCachedTestStore(t)
	ctx := context.Background()

	require.NoError(t, cached.CreatePublish(ctx,
		newTestRecord("v1", "char.abc", "shot_010", 1, time.Now().UTC())))

	latest, err := cached.LatestVersion(ctx, "char.abc", "shot_010")
	require.NoError(t, err)
	assert.Equal(t, 1, latest)

	// A new version must not be masked by the cached value.
	require.NoError(t, cached.CreatePublish(ctx,
		newTestRecord("v2", "char.abc", "shot_010", 2, time.Now().UTC())))

	latest, err = cached.LatestVersion(ctx, "char.abc", "shot_010")
	require.NoError(t, err)
	assert.Equal(t, 2, latest)
}

func TestCachedStore_DeleteEvicts(t *testing.T) {
	cached, _, mr := newCachedTestStore(t)
	ctx := context.Background()

	pf := newTestRecord("id-1", "char.abc", "shot_010", 1, time.Now().UTC())
	require.NoError(t, cached.CreatePublish(ctx, pf))

	_, err := cached.GetPublish(ctx, "id-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("publish:id-1"))

	require.NoError(t, cached.DeletePublish(ctx, "id-1"))
	assert.False(t, mr.Exists("publish:id-1"))

	_, err = cached.GetPublish(ctx, "id-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCachedStore_CorruptRedisEntry(t *testing.T) {
	cached, _, mr := newCachedTestStore(t)
	ctx := context.Background()

	pf := newTestRecord("id-1", "char.abc", "shot_010", 1, time.Now().UTC())
	require.NoError(t, cached.CreatePublish(ctx, pf))

	// Poison the Redis entry; the store must fall through and repair it.
	require.NoError(t, mr.Set("publish:id-1", "{not json"))

	got, err := cached.GetPublish(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "char.abc", got.Name)
}

func TestNewCachedStore_BadURL(t *testing.T) {
	inner, err := NewFileSystemStore(t.TempDir())
	require.NoError(t, err)

	cfg := DefaultCacheConfig()
	cfg.RedisURL = "not a url"

	_, err = NewCachedStore(inner, cfg, nil)
	assert.Error(t, err)
}

func TestCachedStore_HealthCheck(t *testing.T) {
	cached, _, mr := newCachedTestStore(t)

	assert.NoError(t, cached.HealthCheck(context.Background()))

	mr.Close()
	assert.Error(t, cached.HealthCheck(context.Background()))
}
