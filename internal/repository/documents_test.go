package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/debemdeboas/quill/internal/apperr"
	"github.com/debemdeboas/quill/internal/db"
	"github.com/debemdeboas/quill/internal/model"
	"github.com/debemdeboas/quill/internal/util/compression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *db.SQLite {
	t.Helper()
	sqlDB := db.NewSQLite(":memory:")
	require.NoError(t, sqlDB.InitDB())
	t.Cleanup(func() { sqlDB.Close() })
	return sqlDB
}

// newTestRepo returns a repository whose clock advances one minute per call.
func newTestRepo(t *testing.T) *DBDocumentRepository {
	t.Helper()
	repo := NewDBDocumentRepository(setupTestDB(t), compression.ZstdCompressor{})
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return repo
}

func payload(title string) model.Payload {
	return model.Payload{
		Title:             title,
		Body:              "<p>" + strings.Repeat(title+" ", 20) + "</p>",
		AuthorID:          "alice",
		AuthorDisplayName: "Alice",
	}
}

func TestCreateAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.Create(ctx, payload("First"))
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.NotEmpty(t, first.BodyHash)

	p := payload("Second")
	p.AssetRef = "https://assets.test/cat.png"
	second, err := repo.Create(ctx, p)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	docs, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, second.ID, docs[0].ID, "newest first")
	assert.Equal(t, first.ID, docs[1].ID)
	assert.Equal(t, p.Body, docs[0].Body)
	assert.Equal(t, p.AssetRef, docs[0].AssetRef)
	assert.Equal(t, model.UserID("alice"), docs[0].AuthorID)
	assert.Equal(t, "Alice", docs[0].AuthorDisplayName)
	assert.True(t, second.CreatedAt.Equal(docs[0].CreatedAt))
}

func TestCreateRejectsInvalidPayload(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, model.Payload{Title: " ", Body: "x", AuthorID: "alice"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = repo.Create(ctx, model.Payload{Title: "T", Body: "x"})
	assert.True(t, apperr.Is(err, apperr.KindPermission))
}

func TestBodyIsStoredCompressed(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	doc, err := repo.Create(ctx, payload("Compressed"))
	require.NoError(t, err)

	var stored []byte
	require.NoError(t, repo.db.QueryRow(ctx, `SELECT body FROM documents WHERE id = ?`, doc.ID).Scan(&stored))
	assert.Less(t, len(stored), len(doc.Body))
	assert.NotContains(t, string(stored), "Compressed")
}

func TestUpdate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	doc, err := repo.Create(ctx, payload("Original"))
	require.NoError(t, err)

	p := payload("Changed")
	p.AssetRef = "https://assets.test/new.png"
	updated, err := repo.Update(ctx, doc.ID, p)
	require.NoError(t, err)

	assert.Equal(t, doc.ID, updated.ID)
	assert.Equal(t, "Changed", updated.Title)
	assert.True(t, doc.CreatedAt.Equal(updated.CreatedAt))
	assert.True(t, updated.ModifiedAt.After(doc.ModifiedAt))
	assert.NotEqual(t, doc.BodyHash, updated.BodyHash)

	docs, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Changed", docs[0].Title)
	assert.Equal(t, p.AssetRef, docs[0].AssetRef)
}

func TestUpdateRejectsAuthorChange(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	doc, err := repo.Create(ctx, payload("Mine"))
	require.NoError(t, err)

	p := payload("Stolen")
	p.AuthorID = "bob"
	_, err = repo.Update(ctx, doc.ID, p)
	assert.True(t, apperr.Is(err, apperr.KindPermission))

	got, err := repo.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mine", got.Title)
}

func TestUpdateMissing(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.Update(context.Background(), "nope", payload("x"))
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	doc, err := repo.Create(ctx, payload("Doomed"))
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, doc.ID))

	_, err = repo.Get(ctx, doc.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	err = repo.Delete(ctx, doc.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestGetUsesCache(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	doc, err := repo.Create(ctx, payload("Cached"))
	require.NoError(t, err)

	// Bypass the repository so only the cache still has the old title.
	_, err = repo.db.Exec(ctx, `UPDATE documents SET title = 'Direct' WHERE id = ?`, doc.ID)
	require.NoError(t, err)

	got, err := repo.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cached", got.Title)

	_, err = repo.List(ctx)
	require.NoError(t, err)
	got, err = repo.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Direct", got.Title)
}
