package revalidation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type page struct {
	Items []string `json:"items"`
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), srv
}

func countingLoader(calls *int, items ...string) Loader {
	return func(context.Context) (any, error) {
		*calls++
		return page{Items: items}, nil
	}
}

func TestKeyStringSortsParams(t *testing.T) {
	a := NewKey("records:list", "status", "ANGENOMMEN", "page", "0", "owner", "")
	b := NewKey("records:list", "page", "0", "status", "ANGENOMMEN")
	assert.Equal(t, a.String(), b.String())
	assert.Equal(t, "records:list?page=0&status=ANGENOMMEN", a.String())
	assert.Equal(t, "records:get", NewKey("records:get").String())
}

func TestReadCachesValue(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	key := NewKey("records:list", "page", "0")
	calls := 0

	var first, second page
	require.NoError(t, cache.Read(ctx, key, &first, countingLoader(&calls, "a")))
	require.NoError(t, cache.Read(ctx, key, &second, countingLoader(&calls, "b")))

	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"a"}, second.Items)
}

func TestInvalidateEndpointForcesLoader(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	pageZero := NewKey("records:list", "page", "0")
	pageOne := NewKey("records:list", "page", "1")
	calls := 0

	var dest page
	require.NoError(t, cache.Read(ctx, pageZero, &dest, countingLoader(&calls, "a")))
	require.NoError(t, cache.Read(ctx, pageOne, &dest, countingLoader(&calls, "a")))
	require.Equal(t, 2, calls)

	require.NoError(t, cache.InvalidateEndpoint(ctx, "records:list"))

	require.NoError(t, cache.Read(ctx, pageZero, &dest, countingLoader(&calls, "fresh")))
	require.NoError(t, cache.Read(ctx, pageOne, &dest, countingLoader(&calls, "fresh")))
	assert.Equal(t, 4, calls)
	assert.Equal(t, []string{"fresh"}, dest.Items)
}

func TestInvalidateExactKey(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	target := NewKey("records:get", "id", "1")
	other := NewKey("records:get", "id", "2")
	calls := 0

	var dest page
	require.NoError(t, cache.Read(ctx, target, &dest, countingLoader(&calls)))
	require.NoError(t, cache.Read(ctx, other, &dest, countingLoader(&calls)))
	require.NoError(t, cache.Invalidate(ctx, target))

	require.NoError(t, cache.Read(ctx, other, &dest, countingLoader(&calls)))
	assert.Equal(t, 2, calls)
	require.NoError(t, cache.Read(ctx, target, &dest, countingLoader(&calls)))
	assert.Equal(t, 3, calls)
}

func TestInvalidateDuringLoadDropsLateWrite(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	key := NewKey("records:get", "id", "1")

	var dest page
	err := cache.Read(ctx, key, &dest, func(ctx context.Context) (any, error) {
		// a mutation commits while the old row is still in flight
		require.NoError(t, cache.Invalidate(ctx, key))
		return page{Items: []string{"old"}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, dest.Items)

	calls := 0
	require.NoError(t, cache.Read(ctx, key, &dest, countingLoader(&calls, "new")))
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"new"}, dest.Items)
}

func TestInvalidateSetsCounterExpiry(t *testing.T) {
	cache, srv := newTestCache(t)
	ctx := context.Background()
	key := NewKey("records:exists", "owner", "o", "number", "2")

	require.NoError(t, cache.Invalidate(ctx, key))
	assert.Equal(t, 2*time.Minute, srv.TTL(keyVerPrefix+key.String()))
}

func TestLoaderErrorIsNotCached(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	key := NewKey("records:exists", "number", "3")
	boom := errors.New("boom")

	var dest page
	err := cache.Read(ctx, key, &dest, func(context.Context) (any, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	calls := 0
	require.NoError(t, cache.Read(ctx, key, &dest, countingLoader(&calls, "ok")))
	assert.Equal(t, 1, calls)
}

func TestNilCacheFallsBackToLoader(t *testing.T) {
	var cache *Cache
	ctx := context.Background()
	calls := 0

	var dest page
	require.NoError(t, cache.Read(ctx, NewKey("x"), &dest, countingLoader(&calls, "a")))
	require.NoError(t, cache.Read(ctx, NewKey("x"), &dest, countingLoader(&calls, "a")))
	assert.Equal(t, 2, calls)
	assert.NoError(t, cache.Invalidate(ctx, NewKey("x")))
	assert.NoError(t, cache.InvalidateEndpoint(ctx, "x"))
	assert.NoError(t, cache.ListenForInvalidation(ctx))
}

func TestApplyBumpRaisesVersion(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	ver, err := cache.Version(ctx, "records:list")
	require.NoError(t, err)
	require.Equal(t, int64(1), ver)

	cache.applyBump(ctx, "records:list=7")
	ver, err = cache.Version(ctx, "records:list")
	require.NoError(t, err)
	assert.Equal(t, int64(7), ver)

	cache.applyBump(ctx, "records:list=3")
	ver, _ = cache.Version(ctx, "records:list")
	assert.Equal(t, int64(7), ver)

	cache.applyBump(ctx, "garbage")
	ver, _ = cache.Version(ctx, "records:list")
	assert.Equal(t, int64(7), ver)
}
