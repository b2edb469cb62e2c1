package identity

import (
	"context"
	"testing"
	"time"

	"github.com/debemdeboas/quill/internal/apperr"
	"github.com/debemdeboas/quill/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func setupTestDB(t *testing.T) *db.SQLite {
	t.Helper()
	sqlDB := db.NewSQLite(":memory:")
	require.NoError(t, sqlDB.InitDB())
	t.Cleanup(func() { sqlDB.Close() })
	return sqlDB
}

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	sqlDB := setupTestDB(t)
	return NewProvider(sqlDB, NewSQLiteSessionStore(sqlDB), Options{
		SessionTTL: time.Hour,
		BcryptCost: bcrypt.MinCost,
	})
}

func TestCreateAccount(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	identity, err := p.CreateAccount(ctx, " Alice@Example.com ", "secret1", "Alice")
	require.NoError(t, err)
	assert.NotEmpty(t, identity.ID)
	assert.Equal(t, "alice@example.com", identity.Email)
	assert.Equal(t, "Alice", identity.DisplayName)

	var hash []byte
	require.NoError(t, p.db.QueryRow(ctx, `SELECT password_hash FROM users WHERE id = ?`, identity.ID).Scan(&hash))
	assert.NotEqual(t, "secret1", string(hash))
}

func TestCreateAccountValidation(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	_, err := p.CreateAccount(ctx, "", "secret1", "Alice")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = p.CreateAccount(ctx, "a@x.com", "123", "Alice")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCreateAccountDuplicateEmail(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	_, err := p.CreateAccount(ctx, "a@x.com", "secret1", "Alice")
	require.NoError(t, err)

	_, err = p.CreateAccount(ctx, "A@X.com", "secret2", "Other")
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestAuthenticateAndResolve(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	created, err := p.CreateAccount(ctx, "a@x.com", "secret1", "Alice")
	require.NoError(t, err)

	token, err := p.Authenticate(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.Len(t, token, 64)

	identity, err := p.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, created, identity)
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	_, err := p.CreateAccount(ctx, "a@x.com", "secret1", "Alice")
	require.NoError(t, err)

	_, err = p.Authenticate(ctx, "a@x.com", "wrong-password")
	assert.True(t, apperr.Is(err, apperr.KindInvalidCredentials))

	_, err = p.Authenticate(ctx, "nobody@x.com", "secret1")
	assert.True(t, apperr.Is(err, apperr.KindInvalidCredentials))
}

func TestResolveUnknownOrExpired(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	_, err := p.Resolve(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrNoSession)

	_, err = p.Resolve(ctx, "not-a-token")
	assert.ErrorIs(t, err, apperr.ErrNoSession)

	_, err = p.CreateAccount(ctx, "a@x.com", "secret1", "Alice")
	require.NoError(t, err)
	token, err := p.Authenticate(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	p.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = p.Resolve(ctx, token)
	assert.ErrorIs(t, err, apperr.ErrNoSession)

	rec, err := p.sessions.Get(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, rec, "expired sessions are removed on lookup")
}

func TestRevoke(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	_, err := p.CreateAccount(ctx, "a@x.com", "secret1", "Alice")
	require.NoError(t, err)
	token, err := p.Authenticate(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, p.Revoke(ctx, token))
	_, err = p.Resolve(ctx, token)
	assert.ErrorIs(t, err, apperr.ErrNoSession)

	assert.NoError(t, p.Revoke(ctx, ""))
}
