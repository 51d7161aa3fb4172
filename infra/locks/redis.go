// Package locks provides the Redis-backed evaluation lock for multi-instance
// deployments.
package locks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lmoreno87/advmatch/infra/logger"
)

// Config holds the Redis connection parameters shared by the lock and the
// geography cache.
type Config struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	// LockTTLSeconds bounds lock lifetime so a crashed evaluator cannot
	// wedge a request forever. Must exceed the evaluation budget.
	LockTTLSeconds int `json:"lock_ttl_seconds"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.LockTTLSeconds <= 0 {
		c.LockTTLSeconds = 30
	}
}

// NewClient builds a go-redis client from the config.
func NewClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
}

// RedisLocker implements lock.Locker with SET NX and a safety TTL. Each
// locker instance holds its own owner token so Release only deletes locks it
// acquired itself.
type RedisLocker struct {
	client  *redis.Client
	ttl     time.Duration
	owner   string
	timeout time.Duration
	log     logger.Logger
}

// NewRedisLocker creates a locker over an existing client.
func NewRedisLocker(client *redis.Client, ttl time.Duration, log logger.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &RedisLocker{
		client:  client,
		ttl:     ttl,
		owner:   uuid.NewString(),
		timeout: 2 * time.Second,
		log:     log,
	}
}

func lockKey(requestID string) string { return "advmatch:lock:" + requestID }

// TryAcquire implements lock.Locker. A Redis error is reported as lock
// unavailable so contention failures stay on the safe side.
func (l *RedisLocker) TryAcquire(requestID string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	ok, err := l.client.SetNX(ctx, lockKey(requestID), l.owner, l.ttl).Result()
	if err != nil {
		l.log.Errorf("lock %s: %v", requestID, err)
		return false
	}
	return ok
}

// releaseScript deletes the key only when this locker still owns it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Release implements lock.Locker.
func (l *RedisLocker) Release(requestID string) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	if err := releaseScript.Run(ctx, l.client, []string{lockKey(requestID)}, l.owner).Err(); err != nil && err != redis.Nil {
		l.log.Errorf("unlock %s: %v", requestID, err)
	}
}
