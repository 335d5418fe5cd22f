// Package cache holds the namespaced read-through cache of derived views and
// the dispatch table that maps writes to the namespaces they make stale.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
)

// LoadFunc produces the encoded value of a cache miss.
type LoadFunc func(ctx context.Context) ([]byte, error)

// Loader serves key within scope, calling load on a miss.
type Loader interface {
	Load(ctx context.Context, scope Scope, key string, load LoadFunc) ([]byte, error)
}

// Cache is both sides of the read cache.
type Cache interface {
	Loader
	Invalidator
}

// Fetch is the typed read-through helper used by services. Values are stored
// as JSON.
func Fetch[T any](ctx context.Context, l Loader, scope Scope, key string, load func(context.Context) (T, error)) (T, error) {
	var out T
	raw, err := l.Load(ctx, scope, key, func(ctx context.Context) ([]byte, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode cached %s entry: %w", scope.Namespace, err)
	}
	return out, nil
}
