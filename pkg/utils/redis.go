package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig controls redis client behavior.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// Basic timeouts
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Pool tuning
	PoolSize        int
	MinIdleConns    int
	PoolTimeout     time.Duration
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration

	PingTimeout time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	out := c
	if out.DialTimeout <= 0 {
		out.DialTimeout = 3 * time.Second
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = 2 * time.Second
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 2 * time.Second
	}
	if out.PoolSize <= 0 {
		out.PoolSize = 20
	}
	if out.MinIdleConns < 0 {
		out.MinIdleConns = 0
	}
	if out.PoolTimeout <= 0 {
		out.PoolTimeout = 4 * time.Second
	}
	if out.ConnMaxIdleTime <= 0 {
		out.ConnMaxIdleTime = 5 * time.Minute
	}
	if out.ConnMaxLifetime <= 0 {
		out.ConnMaxLifetime = 30 * time.Minute
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = 2 * time.Second
	}
	return out
}

// OpenRedis initializes a Redis client and validates connectivity via PING.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	cfg = cfg.withDefaults()
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		PoolTimeout:     cfg.PoolTimeout,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

var slotLeaseAcquireScript = redis.NewScript(`
-- KEYS[1] = lease set (member -> expiry ms)
-- ARGV[1] = member
-- ARGV[2] = limit (int)
-- ARGV[3] = now_ms
-- ARGV[4] = expires_at_ms
-- ARGV[5] = set_ttl_ms
--
-- Returns:
--  1 if acquired (or already held; the lease is renewed)
--  0 if rejected (limit reached)
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[3])
if not redis.call('ZSCORE', KEYS[1], ARGV[1]) then
  if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[2]) then
    return 0
  end
end
redis.call('ZADD', KEYS[1], ARGV[4], ARGV[1])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

var slotLeaseReleaseScript = redis.NewScript(`
-- KEYS[1] = lease set
-- ARGV[1] = member
redis.call('ZREM', KEYS[1], ARGV[1])
if redis.call('ZCARD', KEYS[1]) == 0 then
  redis.call('DEL', KEYS[1])
end
return 1
`)

// AcquireSlotLease takes one of limit slots at key for member, e.g. one call
// of a campaign. Each lease expires ttl after it was granted, so a slot leaked
// by a crashed process ages out on its own without resetting the others.
// Acquiring a lease member already holds renews it.
func AcquireSlotLease(ctx context.Context, rdb redis.Scripter, key, member string, limit int, ttl time.Duration, now time.Time) (bool, error) {
	if rdb == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	if key == "" || member == "" {
		return false, fmt.Errorf("key and member are required")
	}
	if limit <= 0 {
		return false, fmt.Errorf("limit must be > 0")
	}
	if ttl <= 0 {
		return false, fmt.Errorf("ttl must be > 0")
	}

	nowMS := now.UnixMilli()
	// The set outlives its newest lease, with margin for clock skew between
	// callers, so it never expires under a held slot.
	setTTL := 2 * ttl.Milliseconds()
	res, err := slotLeaseAcquireScript.Run(ctx, rdb, []string{key},
		member, limit, nowMS, nowMS+ttl.Milliseconds(), setTTL).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// ReleaseSlotLease drops member's lease. Releasing twice is a no-op.
func ReleaseSlotLease(ctx context.Context, rdb redis.Scripter, key, member string) error {
	if rdb == nil {
		return fmt.Errorf("redis client is nil")
	}
	if key == "" || member == "" {
		return fmt.Errorf("key and member are required")
	}
	_, err := slotLeaseReleaseScript.Run(ctx, rdb, []string{key}, member).Result()
	return err
}
