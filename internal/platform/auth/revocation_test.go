package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRevocationStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRevocationStore()

	revoked, err := s.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, s.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)))
	revoked, err = s.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestMemoryRevocationStore_ExpiredEntriesDropped(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRevocationStore()
	base := time.Now()
	s.now = func() time.Time { return base }

	require.NoError(t, s.Revoke(ctx, "old", base.Add(time.Minute)))
	s.now = func() time.Time { return base.Add(2 * time.Minute) }

	revoked, err := s.IsRevoked(ctx, "old")
	require.NoError(t, err)
	assert.False(t, revoked, "expired token should no longer be tracked as revoked")

	require.NoError(t, s.Revoke(ctx, "new", base.Add(time.Hour)))
	assert.Equal(t, 1, s.Len())
}

func TestMemoryRevocationStore_EmptyJTI(t *testing.T) {
	s := NewMemoryRevocationStore()
	require.NoError(t, s.Revoke(context.Background(), "", time.Now().Add(time.Hour)))
	assert.Equal(t, 0, s.Len())
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisRevocationStore(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewRedisRevocationStore(client)

	require.NoError(t, s.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)))
	revoked, err := s.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	ttl := mr.TTL(revocationPrefix + "jti-1")
	assert.Greater(t, ttl, 59*time.Minute)

	revoked, err = s.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)

	mr.FastForward(2 * time.Hour)
	revoked, err = s.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisRevocationStore_AlreadyExpiredIsNoop(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := NewRedisRevocationStore(client)

	require.NoError(t, s.Revoke(ctx, "jti-1", time.Now().Add(-time.Minute)))
	assert.False(t, mr.Exists(revocationPrefix+"jti-1"))
}

func TestRedisRevocationStore_Unreachable(t *testing.T) {
	mr, client := newTestRedis(t)
	mr.Close()

	_, err := NewRedisRevocationStore(client).IsRevoked(context.Background(), "jti-1")
	assert.Error(t, err)
}
