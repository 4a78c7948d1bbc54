// Package cache keeps one generation counter per data namespace in Redis.
// Cached responses embed the generation in their key, so bumping the counter
// after a write makes every older entry unreachable; they age out by TTL.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"
)

// Generations reads and bumps namespace generations.  A nil *Generations
// is valid and behaves as if caching were disabled.
type Generations struct {
	rdb    *redis.Client
	prefix string
	log    *log.Logger
}

// NewGenerations returns nil when rdb is nil.
func NewGenerations(rdb *redis.Client, prefix string, logger *log.Logger) *Generations {
	if rdb == nil {
		return nil
	}
	if prefix == "" {
		prefix = "cache"
	}
	if logger == nil {
		logger = log.New("cache")
	}
	return &Generations{rdb: rdb, prefix: prefix, log: logger}
}

// Key is the Redis key holding the generation of namespace.
func (g *Generations) Key(namespace string) string {
	prefix := "cache"
	if g != nil {
		prefix = g.prefix
	}
	return fmt.Sprintf("%s:gen:%s", prefix, namespace)
}

// Current returns the generation of namespace, 0 if it was never bumped.
func (g *Generations) Current(ctx context.Context, namespace string) (int64, error) {
	if g == nil {
		return 0, nil
	}
	s, err := g.rdb.Get(ctx, g.Key(namespace)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(s, 10, 64)
}

// Invalidate bumps the generation of namespace.
func (g *Generations) Invalidate(ctx context.Context, namespace string) error {
	if g == nil {
		return nil
	}
	n, err := g.rdb.Incr(ctx, g.Key(namespace)).Result()
	if err != nil {
		return fmt.Errorf("invalidate %s: %w", namespace, err)
	}
	g.log.Debugj(log.JSON{"msg": "cache namespace invalidated", "namespace": namespace, "generation": n})
	return nil
}
