package refreshtoken

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnhub/internal/domain"
)

func TestMemoryStore_CRUD(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rec := &domain.RefreshToken{ID: "a", UserID: 1, TokenHash: "h1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.Create(ctx, rec))
	assert.Error(t, s.Create(ctx, rec), "duplicate ids are rejected")

	got, err := s.FindByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "h1", got.TokenHash)

	got.TokenHash = "mutated"
	again, _ := s.FindByID(ctx, "a")
	assert.Equal(t, "h1", again.TokenHash, "returned records are copies")

	require.NoError(t, s.UpdateHash(ctx, "a", "h2"))
	again, _ = s.FindByID(ctx, "a")
	assert.Equal(t, "h2", again.TokenHash)

	missing, err := s.FindByID(ctx, "zzz")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryStore_Revocation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		require.NoError(t, s.Create(ctx, &domain.RefreshToken{ID: id, UserID: 1}))
	}
	require.NoError(t, s.Create(ctx, &domain.RefreshToken{ID: "c", UserID: 2}))

	rec, err := s.RevokeByID(ctx, "a")
	require.NoError(t, err)
	assert.True(t, rec.Revoked)

	rec, err = s.RevokeByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, rec)

	active, err := s.FindActiveByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "b", active[0].ID)

	require.NoError(t, s.RevokeAllForUser(ctx, 1))
	active, _ = s.FindActiveByUser(ctx, 1)
	assert.Empty(t, active)

	active, _ = s.FindActiveByUser(ctx, 2)
	assert.Len(t, active, 1)
}

func TestMemoryStore_RevokeIfActiveHasOneWinner(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &domain.RefreshToken{ID: "a", UserID: 1}))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.RevokeIfActive(ctx, "a")
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	ok, err := s.RevokeIfActive(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
