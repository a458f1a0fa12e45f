package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *AppSessionStore {
	t.Helper()
	addr := os.Getenv("LIBRARY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("LIBRARY_TEST_REDIS_ADDR not set, skipping redis tests")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, rdb.Ping(ctx).Err())
	t.Cleanup(func() { _ = rdb.Close() })
	return NewAppSessionStore(rdb, time.Minute)
}

func TestSessionRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	sid := uuid.NewString()
	uid := uuid.NewString()

	require.NoError(t, s.Create(ctx, sid, uid))

	as, err := s.Get(ctx, sid)
	require.NoError(t, err)
	require.Equal(t, uid, as.UserID)
	require.Greater(t, as.ExpiresAt, as.IssuedAt)

	require.NoError(t, s.Delete(ctx, sid))
	_, err = s.Get(ctx, sid)
	require.Error(t, err)
}

func TestRevokeAllForUser(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	uid := uuid.NewString()
	sids := []string{uuid.NewString(), uuid.NewString(), uuid.NewString()}

	for _, sid := range sids {
		require.NoError(t, s.Create(ctx, sid, uid))
	}

	require.NoError(t, s.RevokeAllForUser(ctx, uid))
	for _, sid := range sids {
		_, err := s.Get(ctx, sid)
		require.Error(t, err, "session %s should be gone", sid)
	}
}
