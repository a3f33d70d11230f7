package security

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Fixed-window counter: first INCR in a window sets the expiry.
const loginAllowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

// LoginLimiter throttles repeated login attempts per key (email + client IP).
type LoginLimiter interface {
	Allow(key string) bool
}

type redisLoginLimiter struct {
	client *redis.Client
	window time.Duration
	max    int
	prefix string
}

// NewRedisLoginLimiter returns nil when no client is configured; callers
// treat a nil limiter as allow-all.
func NewRedisLoginLimiter(client *redis.Client, window time.Duration, max int) LoginLimiter {
	if client == nil {
		return nil
	}

	if window <= 0 {
		window = time.Minute
	}

	if max <= 0 {
		max = 10
	}

	return &redisLoginLimiter{
		client: client,
		window: window,
		max:    max,
		prefix: "login:rl:",
	}
}

func (l *redisLoginLimiter) Allow(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))

	if normalized == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	seconds := int(l.window.Seconds())

	count, err := l.client.Eval(ctx, loginAllowScript, []string{l.prefix + normalized}, seconds).Int()

	if err != nil {
		// fail open: redis being down must not lock everyone out
		return true
	}

	return count <= l.max
}
