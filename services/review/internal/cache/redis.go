package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"
)

// BreakerConfig configures the circuit breaker in front of Redis.
type BreakerConfig struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
}

// DefaultBreakerConfig trips at a 50% failure ratio over at least 5 calls and
// retries after 30s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// RedisCache is a generation-versioned cache. Each scope has a counter at
// prefix:gen:<ns>:<scope>; entries live at prefix:<ns>:<scope>:<gen>:<hash>,
// so bumping the counter orphans every entry of the scope at once.
//
// Redis failures never fail a read: they are logged and the loader runs.
type RedisCache struct {
	client  redis.Cmdable
	prefix  string
	ttl     time.Duration
	breaker *gobreaker.CircuitBreaker[[]byte]
	group   singleflight.Group
	logger  *slog.Logger
}

// NewRedisCache creates a cache over client.
func NewRedisCache(client redis.Cmdable, prefix string, ttl time.Duration, cfg BreakerConfig, logger *slog.Logger) *RedisCache {
	name := prefix + "-cache"
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("cache circuit breaker state change",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			breakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	}
	breakerState.WithLabelValues(name).Set(0)

	return &RedisCache{
		client:  client,
		prefix:  prefix,
		ttl:     ttl,
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
		logger:  logger,
	}
}

func (c *RedisCache) genKey(s Scope) string {
	return fmt.Sprintf("%s:gen:%s:%s", c.prefix, s.Namespace, s.Key)
}

func (c *RedisCache) entryKey(s Scope, gen int64, key string) string {
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%s:%s:%s:%d:%s", c.prefix, s.Namespace, s.Key, gen, hex.EncodeToString(sum[:16]))
}

// generation reads the current counter of s; a scope never bumped is at 0.
func (c *RedisCache) generation(ctx context.Context, s Scope) (int64, error) {
	raw, err := c.breaker.Execute(func() ([]byte, error) {
		return c.client.Get(ctx, c.genKey(s)).Bytes()
	})
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(raw), 10, 64)
}

// Load implements Loader. The generation is read before loading so a value
// computed concurrently with a bump is stored under the orphaned generation.
func (c *RedisCache) Load(ctx context.Context, scope Scope, key string, load LoadFunc) ([]byte, error) {
	ns := string(scope.Namespace)

	gen, err := c.generation(ctx, scope)
	if err != nil {
		c.degraded(ctx, "read generation", scope, err)
		lookupsTotal.WithLabelValues(ns, "error").Inc()
		return load(ctx)
	}
	entry := c.entryKey(scope, gen, key)

	raw, err := c.breaker.Execute(func() ([]byte, error) {
		return c.client.Get(ctx, entry).Bytes()
	})
	switch {
	case err == nil:
		lookupsTotal.WithLabelValues(ns, "hit").Inc()
		return raw, nil
	case errors.Is(err, redis.Nil):
		lookupsTotal.WithLabelValues(ns, "miss").Inc()
	default:
		c.degraded(ctx, "read entry", scope, err)
		lookupsTotal.WithLabelValues(ns, "error").Inc()
		return load(ctx)
	}

	v, err, _ := c.group.Do(entry, func() (any, error) {
		raw, err := load(ctx)
		if err != nil {
			return nil, err
		}
		_, setErr := c.breaker.Execute(func() ([]byte, error) {
			return nil, c.client.Set(ctx, entry, raw, c.ttl).Err()
		})
		if setErr != nil {
			c.degraded(ctx, "write entry", scope, setErr)
		}
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Bump implements Invalidator by incrementing every scope's generation in one
// pipeline. Counters carry no expiry so a generation is never reused.
func (c *RedisCache) Bump(ctx context.Context, scopes ...Scope) error {
	if len(scopes) == 0 {
		return nil
	}
	_, err := c.breaker.Execute(func() ([]byte, error) {
		_, err := c.client.Pipelined(ctx, func(p redis.Pipeliner) error {
			for _, s := range scopes {
				p.Incr(ctx, c.genKey(s))
			}
			return nil
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("bump %d cache scopes: %w", len(scopes), err)
	}
	return nil
}

func (c *RedisCache) degraded(ctx context.Context, op string, s Scope, err error) {
	level := slog.LevelWarn
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		level = slog.LevelDebug
	}
	c.logger.Log(ctx, level, "cache bypassed",
		slog.String("op", op),
		slog.String("scope", s.String()),
		slog.String("error", err.Error()),
	)
}
