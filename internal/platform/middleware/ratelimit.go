package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
)

// RateLimitConfig holds fixed-window rate limiting configuration.
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
	// Prefix namespaces the counter keys, e.g. "ratelimit:auth:".
	Prefix string
}

// DefaultAuthRateLimit throttles credential endpoints per client IP.
func DefaultAuthRateLimit() RateLimitConfig {
	return RateLimitConfig{Limit: 10, Window: time.Minute, Prefix: "ratelimit:auth:"}
}

// Counter increments a windowed counter and returns the new count together
// with the time left in the window.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RedisCounter shares counters across API replicas.
type RedisCounter struct {
	client *redis.Client
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

func (r *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("rate limit counter: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("rate limit expiry: %w", err)
		}
	}
	left, err := r.client.PTTL(ctx, key).Result()
	if err != nil || left < 0 {
		left = window
	}
	return count, left, nil
}

type memoryWindow struct {
	count   int64
	resetAt time.Time
}

// MemoryCounter is a single-process Counter used when Redis is not configured.
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	now     func() time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{windows: make(map[string]*memoryWindow), now: time.Now}
}

func (m *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &memoryWindow{resetAt: now.Add(window)}
		m.windows[key] = w
	}
	w.count++
	return w.count, w.resetAt.Sub(now), nil
}

// RateLimit rejects requests from a client IP once it exceeds cfg.Limit
// within cfg.Window. Counter failures let the request through.
func RateLimit(counter Counter, cfg RateLimitConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := cfg.Prefix + c.RealIP()
			count, left, err := counter.Incr(c.Request().Context(), key, cfg.Window)
			if err != nil {
				return next(c)
			}

			remaining := int64(cfg.Limit) - count
			if remaining < 0 {
				remaining = 0
			}
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count > int64(cfg.Limit) {
				retryAfter := int(left.Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				h.Set("Retry-After", strconv.Itoa(retryAfter))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
