package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── MemoryIdempotencyStore ─────────────────────────────────────────────────

func TestMemoryIdempotencyStore_AddAndContains(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "evt-1"))

	ok, err := store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Contains(ctx, "evt-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryIdempotencyStore_Expiry(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "evt-1"))
	now = now.Add(2 * time.Minute)

	ok, err := store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryIdempotencyStore_Concurrent(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i%26))
			_ = store.Add(ctx, id)
			_, _ = store.Contains(ctx, id)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 26, store.Len())
}

// ─── RedisIdempotencyStore ──────────────────────────────────────────────────

func newRedisStore(t *testing.T) (*RedisIdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisIdempotencyStore(client, "coursereviews:stats-repair", time.Hour), mr
}

func TestRedisIdempotencyStore(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	ok, err := store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Add(ctx, "evt-1"))
	assert.True(t, mr.Exists("coursereviews:stats-repair:processed:evt-1"))

	ok, err = store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Hour)
	ok, err = store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisIdempotencyStore_Unavailable(t *testing.T) {
	store, mr := newRedisStore(t)
	mr.Close()

	_, err := store.Contains(context.Background(), "evt-1")
	require.Error(t, err)
}

// ─── IdempotentHandler ──────────────────────────────────────────────────────

type failingStore struct{}

func (failingStore) Contains(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}
func (failingStore) Add(context.Context, string) error { return errors.New("redis down") }

func TestIdempotentHandler(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	calls := 0
	fail := true
	h := IdempotentHandler(store, func(context.Context, *Event) error {
		calls++
		if fail {
			return errors.New("boom")
		}
		return nil
	}, testLogger())

	event := &Event{EventID: "evt-1", EventType: "stats.repair"}

	require.Error(t, h(ctx, event))
	fail = false
	require.NoError(t, h(ctx, event))
	require.NoError(t, h(ctx, event))
	assert.Equal(t, 2, calls)

	require.NoError(t, h(ctx, &Event{}))
	require.NoError(t, h(ctx, &Event{}))
	assert.Equal(t, 4, calls)
}

func TestIdempotentHandler_StoreErrorProcessesAnyway(t *testing.T) {
	calls := 0
	h := IdempotentHandler(failingStore{}, func(context.Context, *Event) error {
		calls++
		return nil
	}, testLogger())

	require.NoError(t, h(context.Background(), &Event{EventID: "evt-1"}))
	require.NoError(t, h(context.Background(), &Event{EventID: "evt-1"}))
	assert.Equal(t, 2, calls)
}
