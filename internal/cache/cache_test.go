package cache

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fakes "agentforge/internal/testutil"
)

var errNotReady = errors.New("resource not initialized")

func newTestCache(t *testing.T, client redis.UniversalClient) (*Cache, *fakes.LogRecorder) {
	t.Helper()
	logger, logs := fakes.NewTestLogger(t)
	provider := ProviderFunc(func() (redis.UniversalClient, error) { return client, nil })
	return New(provider, logger), logs
}

func TestCacheRoundTrip(t *testing.T) {
	store := fakes.NewFakeRedis()
	c, logs := newTestCache(t, store.Client())
	ctx := context.Background()

	hits := testutil.ToFloat64(CacheHits)
	misses := testutil.ToFloat64(CacheMisses)

	_, ok := c.Get(ctx, "greeting")
	assert.False(t, ok)
	assert.False(t, c.Exists(ctx, "greeting"))

	assert.True(t, c.Set(ctx, "greeting", "hello", time.Minute))
	assert.Equal(t, time.Minute, store.TTL("greeting"))

	value, ok := c.Get(ctx, "greeting")
	assert.True(t, ok)
	assert.Equal(t, "hello", value)
	assert.True(t, c.Exists(ctx, "greeting"))

	assert.True(t, c.Delete(ctx, "greeting"))
	assert.False(t, c.Exists(ctx, "greeting"))
	assert.True(t, c.Delete(ctx, "greeting"), "deleting a missing key succeeds")

	assert.Equal(t, hits+1, testutil.ToFloat64(CacheHits))
	assert.Equal(t, misses+1, testutil.ToFloat64(CacheMisses))
	assert.Zero(t, logs.Count(), "misses are not faults")
}

func TestCacheDefaultTTL(t *testing.T) {
	store := fakes.NewFakeRedis()
	c, _ := newTestCache(t, store.Client())

	require.True(t, c.Set(context.Background(), "k", "v", 0))
	assert.Equal(t, DefaultTTL, store.TTL("k"))
}

func TestCacheJSON(t *testing.T) {
	store := fakes.NewFakeRedis()
	c, _ := newTestCache(t, store.Client())
	ctx := context.Background()

	type draft struct {
		Title string `json:"title"`
		Words int    `json:"words"`
	}
	require.True(t, c.SetJSON(ctx, "draft:1", draft{Title: "Launch", Words: 120}, time.Minute))

	var got draft
	require.True(t, c.GetJSON(ctx, "draft:1", &got))
	assert.Equal(t, draft{Title: "Launch", Words: 120}, got)

	require.True(t, c.Set(ctx, "draft:2", "{not json", time.Minute))
	assert.False(t, c.GetJSON(ctx, "draft:2", &got))
}

func TestCacheFaultsDegrade(t *testing.T) {
	store := fakes.NewFakeRedis()
	c, logs := newTestCache(t, store.Client())
	ctx := context.Background()

	store.Fail(errors.New("connection reset by peer"))
	before := testutil.ToFloat64(CacheErrors.WithLabelValues("set"))

	assert.False(t, c.Set(ctx, "session:42", "top-secret-value", time.Minute))
	assert.False(t, c.Delete(ctx, "session:42"))
	assert.False(t, c.Exists(ctx, "session:42"))
	_, ok := c.Get(ctx, "session:42")
	assert.False(t, ok)

	assert.Equal(t, before+1, testutil.ToFloat64(CacheErrors.WithLabelValues("set")))

	records := logs.Records()
	require.Len(t, records, 4, "one record per faulted operation")
	for _, rec := range records {
		assert.Equal(t, slog.LevelError, rec.Level)
		assert.Equal(t, "cache", rec.String("component"))
		assert.Equal(t, "session:42", rec.String("key"))
		assert.Equal(t, "connection reset by peer", rec.String("error"))
	}
	assert.False(t, logs.Contains("top-secret-value"))
}

func TestCacheGetUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	c, logs := newTestCache(t, client)

	var value string
	var ok bool
	assert.NotPanics(t, func() { value, ok = c.Get(context.Background(), "profile:7") })
	assert.False(t, ok)
	assert.Empty(t, value)

	records := logs.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "profile:7", records[0].String("key"))
	assert.Equal(t, "get", records[0].String("operation"))
	assert.NotEmpty(t, records[0].String("error"))
	assert.NotContains(t, records[0].Attrs, "value")
}

func TestCacheNotInitialized(t *testing.T) {
	logger, logs := fakes.NewTestLogger(t)
	c := New(ProviderFunc(func() (redis.UniversalClient, error) { return nil, errNotReady }), logger)

	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
	assert.False(t, c.Set(context.Background(), "k", "v", time.Second))

	records := logs.RecordsAt(slog.LevelError)
	require.Len(t, records, 2)
	assert.Equal(t, "resource not initialized", records[0].String("error"))
}
