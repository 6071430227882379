package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/shinyyama/book-market-backend/internal/reqctx"
	"go.uber.org/zap"
)

// windowCounter counts calls in the current window and reports the window's
// remaining lifetime in milliseconds.
var windowCounter = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

// Quota allows Limit calls of one action per customer per Window.
type Quota struct {
	Scope  string
	Limit  int
	Window time.Duration
}

func (q Quota) enabled() bool {
	return q.Limit > 0 && q.Window > 0 && strings.TrimSpace(q.Scope) != ""
}

type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

var allowAll = Decision{Allowed: true}

type RateLimiter interface {
	Allow(ctx context.Context, q Quota, uid string) (Decision, error)
}

// RedisRateLimiter keeps one counter per (scope, uid) so every API instance shares the quota.
type RedisRateLimiter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisRateLimiter(client redis.UniversalClient, prefix string) *RedisRateLimiter {
	p := strings.TrimSpace(prefix)
	if p == "" {
		p = "bookmarket:rate_limit"
	}
	return &RedisRateLimiter{client: client, prefix: strings.TrimSuffix(p, ":")}
}

func (r *RedisRateLimiter) key(scope, uid string) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, strings.TrimSpace(scope), uid)
}

func (r *RedisRateLimiter) Allow(ctx context.Context, q Quota, uid string) (Decision, error) {
	uid = strings.TrimSpace(uid)
	if r == nil || r.client == nil || !q.enabled() || uid == "" {
		return allowAll, nil
	}
	window := max(q.Window, time.Second)
	res, err := windowCounter.Run(ctx, r.client, []string{r.key(q.Scope, uid)}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("rate limit counter returned %d values", len(res))
	}
	return decide(q, res[0], time.Duration(res[1])*time.Millisecond), nil
}

// decide turns the window count into a verdict. A counter without a TTL is
// treated as a fresh window.
func decide(q Quota, count int64, ttl time.Duration) Decision {
	if count <= int64(q.Limit) {
		return Decision{Allowed: true, Remaining: q.Limit - int(count)}
	}
	if ttl <= 0 {
		ttl = q.Window
	}
	return Decision{RetryAfter: ttl}
}

// retryAfterSeconds rounds up, never below one second.
func retryAfterSeconds(d time.Duration) int {
	return max(int((d+time.Second-1)/time.Second), 1)
}

// RateLimit enforces q for each authenticated uid. It must run after the auth
// middleware. A nil limiter or a Redis failure lets the request through.
func RateLimit(limiter RateLimiter, q Quota, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if limiter == nil || !q.enabled() {
			return next
		}
		return func(c echo.Context) error {
			uid, _ := c.Get("uid").(string)
			if uid == "" {
				return next(c)
			}
			ctx := c.Request().Context()
			d, err := limiter.Allow(ctx, q, uid)
			if err != nil {
				logger.Warn("rate limiter unavailable", zap.String("rid", reqctx.RID(ctx)), zap.String("scope", q.Scope), zap.Error(err))
				return next(c)
			}
			if !d.Allowed {
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(d.RetryAfter)))
				return c.JSON(http.StatusTooManyRequests, map[string]map[string]string{
					"error": {"code": "rate_limited", "message": "too many requests, try again later"},
				})
			}
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			return next(c)
		}
	}
}
