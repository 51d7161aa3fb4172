// Package geocache backs the geography tables with Redis so group membership
// edits propagate to every instance without a restart.
package geocache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lmoreno87/advmatch/core/geo"
	"github.com/lmoreno87/advmatch/core/model"
	"github.com/lmoreno87/advmatch/infra/logger"
)

const (
	metroKey = "advmatch:geo:metro"
	hubKey   = "advmatch:geo:hub"
)

// RedisGroups implements geo.Groups over two Redis hashes mapping normalized
// location to group name. A Redis failure falls back to the static tables so
// matching degrades instead of stopping.
type RedisGroups struct {
	client   *redis.Client
	fallback geo.Groups
	timeout  time.Duration
	log      logger.Logger
}

// NewRedisGroups wraps a client and a static fallback.
func NewRedisGroups(client *redis.Client, fallback geo.Groups, log logger.Logger) *RedisGroups {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &RedisGroups{client: client, fallback: fallback, timeout: 2 * time.Second, log: log}
}

// Seed loads membership tables into the hashes, replacing existing entries.
func (g *RedisGroups) Seed(ctx context.Context, metroAreas, hubs map[string][]string) error {
	pipe := g.client.TxPipeline()
	pipe.Del(ctx, metroKey, hubKey)
	for name, locations := range metroAreas {
		for _, loc := range locations {
			pipe.HSet(ctx, metroKey, model.NormalizeLocation(loc), name)
		}
	}
	for name, locations := range hubs {
		for _, loc := range locations {
			pipe.HSet(ctx, hubKey, model.NormalizeLocation(loc), name)
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (g *RedisGroups) lookup(key, location string, fallback func(string) (string, bool)) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()
	name, err := g.client.HGet(ctx, key, model.NormalizeLocation(location)).Result()
	switch {
	case err == nil:
		return name, true
	case err == redis.Nil:
		return "", false
	default:
		g.log.Warnf("geo lookup %s: %v, using static tables", location, err)
		if g.fallback != nil {
			return fallback(location)
		}
		return "", false
	}
}

// MetroArea implements geo.Groups.
func (g *RedisGroups) MetroArea(location string) (string, bool) {
	fb := func(string) (string, bool) { return "", false }
	if g.fallback != nil {
		fb = g.fallback.MetroArea
	}
	return g.lookup(metroKey, location, fb)
}

// Hub implements geo.Groups.
func (g *RedisGroups) Hub(location string) (string, bool) {
	fb := func(string) (string, bool) { return "", false }
	if g.fallback != nil {
		fb = g.fallback.Hub
	}
	return g.lookup(hubKey, location, fb)
}
