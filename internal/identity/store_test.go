package identity

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStores(t *testing.T) {
	stores := map[string]func(t *testing.T) SessionStore{
		"sqlite": func(t *testing.T) SessionStore {
			sqlDB := setupTestDB(t)
			_, err := sqlDB.Exec(context.Background(),
				`INSERT INTO users (id, email, display_name, password_hash) VALUES ('u1', 'a@x.com', 'A', 'h')`)
			require.NoError(t, err)
			return NewSQLiteSessionStore(sqlDB)
		},
		"redis": func(t *testing.T) SessionStore {
			m := mr.RunT(t)
			return NewRedisSessionStore(redis.NewClient(&redis.Options{Addr: m.Addr()}), "test:session:")
		},
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Second)

			rec := SessionRecord{Token: "tok", UserID: "u1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
			require.NoError(t, store.Create(ctx, rec))

			got, err := store.Get(ctx, "tok")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, rec.UserID, got.UserID)
			assert.True(t, rec.ExpiresAt.Equal(got.ExpiresAt))

			missing, err := store.Get(ctx, "other")
			require.NoError(t, err)
			assert.Nil(t, missing)

			require.NoError(t, store.Delete(ctx, "tok"))
			got, err = store.Get(ctx, "tok")
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestRedisSessionStoreTTL(t *testing.T) {
	m := mr.RunT(t)
	store := NewRedisSessionStore(redis.NewClient(&redis.Options{Addr: m.Addr()}), "")
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.Create(ctx, SessionRecord{Token: "t", UserID: "u1", CreatedAt: now, ExpiresAt: now.Add(30 * time.Second)}))
	assert.True(t, m.Exists("quill:session:t"))

	m.FastForward(time.Minute)
	got, err := store.Get(ctx, "t")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionRecordExpired(t *testing.T) {
	now := time.Now()
	rec := SessionRecord{ExpiresAt: now}
	assert.True(t, rec.Expired(now))
	assert.False(t, rec.Expired(now.Add(-time.Second)))
}
