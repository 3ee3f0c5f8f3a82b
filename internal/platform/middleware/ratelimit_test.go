package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runLimited(t *testing.T, mw echo.MiddlewareFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signin", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	err := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
	return rec, err
}

func TestRateLimit_RedisCounterBlocksAfterLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mw := RateLimit(NewRedisCounter(client), RateLimitConfig{Limit: 2, Window: time.Minute, Prefix: "rl:"})

	for i := 0; i < 2; i++ {
		rec, err := runLimited(t, mw)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec, err := runLimited(t, mw)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	ttl := mr.TTL("rl:10.0.0.1")
	assert.True(t, ttl > 0 && ttl <= time.Minute, "expected window expiry on counter, got %s", ttl)
}

func TestRateLimit_WindowResets(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mw := RateLimit(NewRedisCounter(client), RateLimitConfig{Limit: 1, Window: time.Minute, Prefix: "rl:"})

	_, err := runLimited(t, mw)
	require.NoError(t, err)
	_, err = runLimited(t, mw)
	require.Error(t, err)

	mr.FastForward(time.Minute + time.Second)

	_, err = runLimited(t, mw)
	assert.NoError(t, err)
}

func TestRateLimit_FailsOpenWhenCounterUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()

	mw := RateLimit(NewRedisCounter(client), RateLimitConfig{Limit: 1, Window: time.Minute})
	for i := 0; i < 3; i++ {
		rec, err := runLimited(t, mw)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestMemoryCounter_Window(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	counter := NewMemoryCounter()
	counter.now = func() time.Time { return now }

	n, left, err := counter.Incr(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, time.Minute, left)

	n, _, _ = counter.Incr(context.Background(), "k", time.Minute)
	assert.Equal(t, int64(2), n)

	now = now.Add(time.Minute)
	n, _, _ = counter.Incr(context.Background(), "k", time.Minute)
	assert.Equal(t, int64(1), n, "counter should reset once the window elapses")
}
