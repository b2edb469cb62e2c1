package workspace

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/debemdeboas/quill/internal/apperr"
	"github.com/debemdeboas/quill/internal/blob"
	"github.com/debemdeboas/quill/internal/db"
	"github.com/debemdeboas/quill/internal/identity"
	"github.com/debemdeboas/quill/internal/model"
	"github.com/debemdeboas/quill/internal/notify"
	"github.com/debemdeboas/quill/internal/repository"
	"github.com/debemdeboas/quill/internal/session"
	"github.com/debemdeboas/quill/internal/util/compression"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type changes struct {
	mu  sync.Mutex
	ids []model.DocumentID
}

func (c *changes) record(id model.DocumentID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, id)
}

func (c *changes) all() []model.DocumentID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.DocumentID(nil), c.ids...)
}

func newFactory(t *testing.T) (*Factory, *changes) {
	t.Helper()

	sqlDB := db.NewSQLite(":memory:")
	require.NoError(t, sqlDB.InitDB())
	t.Cleanup(func() { sqlDB.Close() })

	blobs, err := blob.NewFSStore(filepath.Join(t.TempDir(), "assets"), "/assets")
	require.NoError(t, err)

	c := &changes{}
	return &Factory{
		Identities: identity.NewProvider(sqlDB, identity.NewSQLiteSessionStore(sqlDB), identity.Options{BcryptCost: bcrypt.MinCost}),
		Documents:  repository.NewDBDocumentRepository(sqlDB, compression.ZstdCompressor{}),
		Blobs:      blobs,
		Logger:     zerolog.Nop(),
		OnChange:   c.record,
	}, c
}

func TestNewAnonymousWorkspace(t *testing.T) {
	f, _ := newFactory(t)

	w, err := f.New(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, session.StatusAnonymous, w.Session.State().Status)
	assert.Empty(t, w.Content.Documents())
	assert.Empty(t, w.Token())

	err = w.BeginCreate()
	assert.True(t, apperr.Is(err, apperr.KindPermission))
}

func TestAuthoringFlow(t *testing.T) {
	f, changed := newFactory(t)
	ctx := context.Background()

	alice, err := f.New(ctx, "")
	require.NoError(t, err)
	require.NoError(t, alice.Register(ctx, "alice@example.com", "secret1", "Alice"))
	alice.Notices.Drain()

	require.NoError(t, alice.BeginCreate())
	image := &model.Asset{Name: "cat.png", MIMEType: "image/png", Data: []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")}
	require.NoError(t, alice.Save(ctx, "Hello", "<p>first post</p>", image))

	docs := alice.Content.Documents()
	require.Len(t, docs, 1)
	doc := docs[0]
	assert.Equal(t, "Hello", doc.Title)
	assert.Equal(t, "Alice", doc.AuthorDisplayName)
	assert.True(t, strings.HasPrefix(doc.AssetRef, "/assets/"), doc.AssetRef)
	assert.False(t, alice.Content.Target().Active())
	assert.Equal(t, []model.DocumentID{doc.ID}, changed.all())

	notices := alice.Notices.Drain()
	require.NotEmpty(t, notices)
	assert.Equal(t, notify.LevelSuccess, notices[0].Level)

	// A second client resuming Alice's token sees the same identity.
	again, err := f.New(ctx, alice.Token())
	require.NoError(t, err)
	require.True(t, again.Session.CanModify(doc))
	require.Len(t, again.Content.Documents(), 1)

	// Editing without a new image keeps the stored one.
	require.NoError(t, again.BeginEdit(doc.ID))
	require.NoError(t, again.Save(ctx, "Hello again", "<p>edited</p>", nil))
	edited, ok := again.Content.Find(doc.ID)
	require.True(t, ok)
	assert.Equal(t, "Hello again", edited.Title)
	assert.Equal(t, doc.AssetRef, edited.AssetRef)

	// Bob can read but not modify.
	bob, err := f.New(ctx, "")
	require.NoError(t, err)
	require.NoError(t, bob.Register(ctx, "bob@example.com", "secret2", ""))
	require.NoError(t, bob.Refresh(ctx))
	require.Len(t, bob.Content.Documents(), 1)

	assert.True(t, apperr.Is(bob.BeginEdit(doc.ID), apperr.KindPermission))
	assert.True(t, apperr.Is(bob.Remove(ctx, doc.ID, true), apperr.KindPermission))
	assert.True(t, apperr.Is(bob.BeginEdit("missing"), apperr.KindNotFound))

	require.NoError(t, bob.BeginCreate())
	require.NoError(t, bob.Save(ctx, "Bob's", "<p>hi</p>", nil))
	bobDocs := bob.Content.Documents()
	require.Len(t, bobDocs, 2)
	assert.Equal(t, model.DefaultDisplayName, bobDocs[0].AuthorDisplayName)

	// Unconfirmed removal is a no-op; confirmed removal deletes.
	require.NoError(t, alice.Refresh(ctx))
	require.NoError(t, alice.Remove(ctx, doc.ID, false))
	assert.Len(t, alice.Content.Documents(), 2)
	require.NoError(t, alice.Remove(ctx, doc.ID, true))
	assert.Len(t, alice.Content.Documents(), 1)

	require.NoError(t, bob.Refresh(ctx))
	assert.Len(t, bob.Content.Documents(), 1)
}

func TestLogoutAbandonsEditing(t *testing.T) {
	f, _ := newFactory(t)
	ctx := context.Background()

	w, err := f.New(ctx, "")
	require.NoError(t, err)
	require.NoError(t, w.Register(ctx, "a@example.com", "secret1", "A"))
	require.NoError(t, w.BeginCreate())

	require.NoError(t, w.Logout(ctx))
	assert.False(t, w.Content.Target().Active())
	assert.Equal(t, session.StatusAnonymous, w.Session.State().Status)

	err = w.Logout(ctx)
	assert.True(t, apperr.Is(err, apperr.KindPermission))
}
