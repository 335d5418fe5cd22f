package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/coursereviews/services/review/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, "test", time.Hour, DefaultBreakerConfig(), testLogger()), mr
}

type counter struct {
	calls atomic.Int32
	value string
}

func (c *counter) load(context.Context) ([]byte, error) {
	c.calls.Add(1)
	return []byte(c.value), nil
}

// ─── RedisCache ─────────────────────────────────────────────────────────────

func TestRedisCache_MissThenHit(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()
	scope := Detail(domain.ReviewTypeCourse, "COMP248")
	src := &counter{value: "v1"}

	got, err := c.Load(ctx, scope, "course", src.load)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))

	src.value = "v2"
	got, err = c.Load(ctx, scope, "course", src.load)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))
	assert.Equal(t, int32(1), src.calls.Load())

	ttl := mr.TTL(c.entryKey(scope, 0, "course"))
	assert.Equal(t, time.Hour, ttl)
}

func TestRedisCache_BumpOrphansScope(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()
	scope := EntityReviews(domain.ReviewTypeCourse, "COMP248")
	other := EntityReviews(domain.ReviewTypeCourse, "SOEN287")
	src := &counter{value: "old"}
	otherSrc := &counter{value: "kept"}

	_, err := c.Load(ctx, scope, "page-0", src.load)
	require.NoError(t, err)
	_, err = c.Load(ctx, other, "page-0", otherSrc.load)
	require.NoError(t, err)

	require.NoError(t, c.Bump(ctx, scope))
	gen, err := mr.Get(c.genKey(scope))
	require.NoError(t, err)
	assert.Equal(t, "1", gen)
	assert.Zero(t, mr.TTL(c.genKey(scope)), "generation counters never expire")

	src.value = "new"
	got, err := c.Load(ctx, scope, "page-0", src.load)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
	assert.Equal(t, int32(2), src.calls.Load())

	got, err = c.Load(ctx, other, "page-0", otherSrc.load)
	require.NoError(t, err)
	assert.Equal(t, "kept", string(got))
	assert.Equal(t, int32(1), otherSrc.calls.Load())
}

func TestRedisCache_LoadErrorNotCached(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()
	scope := Global(NamespaceHomeStats)
	boom := errors.New("store down")

	_, err := c.Load(ctx, scope, "home", func(context.Context) ([]byte, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	src := &counter{value: "ok"}
	got, err := c.Load(ctx, scope, "home", src.load)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(got))
}

func TestRedisCache_RedisDownFallsThrough(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()
	mr.Close()

	src := &counter{value: "fresh"}
	for range 8 {
		got, err := c.Load(ctx, Global(NamespaceFilteredListing), "q", src.load)
		require.NoError(t, err)
		assert.Equal(t, "fresh", string(got))
	}
	assert.Equal(t, int32(8), src.calls.Load())

	err := c.Bump(ctx, Global(NamespaceFilteredListing))
	assert.Error(t, err)
}

func TestRedisCache_BreakerOpensAfterFailures(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()
	mr.Close()

	src := &counter{value: "x"}
	for range 6 {
		_, _ = c.Load(ctx, Global(NamespaceHomeStats), "home", src.load)
	}
	_, err := c.breaker.Execute(func() ([]byte, error) { return nil, nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestRedisCache_SingleflightCollapsesMisses(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()
	scope := Global(NamespaceFilteredListing)

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	load := func(context.Context) ([]byte, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return []byte("shared"), nil
	}

	var wg sync.WaitGroup
	results := make([]string, 5)
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, _ := c.Load(ctx, scope, "same", load)
		results[0] = string(v)
	}()
	<-started
	for i := 1; i < len(results); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _ := c.Load(ctx, scope, "same", load)
			results[i] = string(v)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "shared", r)
	}
}

// ─── Fetch / Nop ────────────────────────────────────────────────────────────

func TestFetch_RoundTripsThroughCache(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()
	scope := Global(NamespaceHomeStats)

	calls := 0
	load := func(context.Context) (domain.HomeStats, error) {
		calls++
		return domain.HomeStats{Courses: 3, Instructors: 2, Reviews: 9}, nil
	}

	first, err := Fetch(ctx, c, scope, "home", load)
	require.NoError(t, err)
	second, err := Fetch(ctx, c, scope, "home", load)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(9), second.Reviews)
	assert.Equal(t, 1, calls)
}

func TestNop_AlwaysLoads(t *testing.T) {
	ctx := context.Background()
	src := &counter{value: "x"}
	for range 3 {
		_, err := Nop{}.Load(ctx, Global(NamespaceHomeStats), "k", src.load)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), src.calls.Load())
	assert.NoError(t, Nop{}.Bump(ctx, Global(NamespaceHomeStats)))
}
