package ratelimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// incrScript bumps the counter and starts the window on the first hit.
// Returns the count and the remaining ttl in milliseconds.
var incrScript = goredis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

// Redis shares windows between every instance pointed at the same server.
type Redis struct {
	cfg    Config
	rdb    goredis.Scripter
	prefix string
}

func NewRedis(rdb goredis.Scripter, prefix string, cfg Config) *Redis {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &Redis{cfg: cfg.withDefaults(), rdb: rdb, prefix: prefix}
}

func (r *Redis) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := incrScript.Run(ctx, r.rdb, []string{r.prefix + ":" + key}, r.cfg.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis rate limit: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("redis rate limit: unexpected reply %v", res)
	}
	return decide(r.cfg, res[0], time.Duration(res[1])*time.Millisecond), nil
}
