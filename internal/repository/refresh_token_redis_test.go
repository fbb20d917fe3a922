package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisRefreshTokenStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewRedisRefreshTokenStore(rdb, "test:", 24*time.Hour), mr
}

func TestRedisStore_CreateAndFind(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	tok := newToken("r1", 7, time.Hour)
	require.NoError(t, s.Create(ctx, tok))
	assert.Error(t, s.Create(ctx, tok), "ids are unique")

	got, err := s.FindByID(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(7), got.UserID)
	assert.Equal(t, "hash-r1", got.TokenHash)
	assert.Equal(t, "go-test", got.UserAgent)
	assert.False(t, got.Revoked)
	assert.WithinDuration(t, tok.ExpiresAt, got.ExpiresAt, time.Millisecond)

	ttl := mr.TTL("test:rt:r1")
	assert.True(t, ttl > 24*time.Hour && ttl <= 25*time.Hour, "key outlives the token by the retention window, got %s", ttl)

	missing, err := s.FindByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRedisStore_Revocation(t *testing.T) {
	s, _ := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newToken("a", 1, time.Hour)))
	require.NoError(t, s.Create(ctx, newToken("b", 1, time.Hour)))
	require.NoError(t, s.Create(ctx, newToken("c", 2, time.Hour)))

	ok, err := s.RevokeIfActive(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.RevokeIfActive(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok, "second flip loses")

	rec, err := s.RevokeByID(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Revoked)

	rec, err = s.RevokeByID(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, rec)

	active, err := s.FindActiveByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "b", active[0].ID)

	require.NoError(t, s.RevokeAllForUser(ctx, 1))
	active, err = s.FindActiveByUser(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, active)

	active, err = s.FindActiveByUser(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestRedisStore_UpdateHash(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newToken("a", 1, time.Hour)))
	require.NoError(t, s.UpdateHash(ctx, "a", "new-hash"))

	got, err := s.FindByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.TokenHash)

	require.NoError(t, s.UpdateHash(ctx, "ghost", "x"))
	assert.False(t, mr.Exists("test:rt:ghost"), "update must not create records")
}

func TestRedisStore_SkipsEvictedMembers(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newToken("a", 1, time.Hour)))
	require.NoError(t, s.Create(ctx, newToken("b", 1, time.Hour)))
	mr.Del("test:rt:a")

	active, err := s.FindActiveByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "b", active[0].ID)

	require.NoError(t, s.RevokeAllForUser(ctx, 1))
	members, err := mr.SMembers("test:rt_user:1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, members)
}
