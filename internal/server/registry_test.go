package server

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/debemdeboas/quill/internal/blob"
	"github.com/debemdeboas/quill/internal/content"
	"github.com/debemdeboas/quill/internal/db"
	"github.com/debemdeboas/quill/internal/identity"
	"github.com/debemdeboas/quill/internal/model"
	"github.com/debemdeboas/quill/internal/repository"
	"github.com/debemdeboas/quill/internal/util/compression"
	"github.com/debemdeboas/quill/internal/workspace"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// gatedDocuments holds the first List call until release is closed.
type gatedDocuments struct {
	content.DocumentStore

	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedDocuments) List(ctx context.Context) ([]model.Document, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.DocumentStore.List(ctx)
}

func newGatedFactory(t *testing.T) (*workspace.Factory, *gatedDocuments) {
	t.Helper()

	sqlDB := db.NewSQLite(":memory:")
	require.NoError(t, sqlDB.InitDB())
	t.Cleanup(func() { sqlDB.Close() })

	assets, err := blob.NewFSStore(filepath.Join(t.TempDir(), "assets"), "/assets")
	require.NoError(t, err)

	gate := &gatedDocuments{
		DocumentStore: repository.NewDBDocumentRepository(sqlDB, compression.ZstdCompressor{}),
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	return &workspace.Factory{
		Identities: identity.NewProvider(sqlDB, identity.NewSQLiteSessionStore(sqlDB), identity.Options{BcryptCost: bcrypt.MinCost}),
		Documents:  gate,
		Blobs:      assets,
		Logger:     zerolog.Nop(),
	}, gate
}

func TestRegistryBuildsClientsIndependently(t *testing.T) {
	factory, gate := newGatedFactory(t)
	reg := NewRegistry(factory, time.Minute)
	ctx := context.Background()

	slow := make(chan *workspace.Workspace, 1)
	go func() {
		ws, err := reg.Get(ctx, "slow", "")
		assert.NoError(t, err)
		slow <- ws
	}()
	<-gate.entered

	fast := make(chan error, 1)
	go func() {
		_, err := reg.Get(ctx, "fast", "")
		fast <- err
	}()
	select {
	case err := <-fast:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		close(gate.release)
		t.Fatal("a new client waited on another client's workspace")
	}

	shared := make(chan *workspace.Workspace, 1)
	go func() {
		ws, err := reg.Get(ctx, "slow", "")
		assert.NoError(t, err)
		shared <- ws
	}()

	close(gate.release)
	first := <-slow
	require.NotNil(t, first)
	assert.Same(t, first, <-shared, "callers for one client share its workspace")
	assert.Equal(t, 2, reg.Len())
}

func TestRegistryWaiterHonorsContext(t *testing.T) {
	factory, gate := newGatedFactory(t)
	reg := NewRegistry(factory, time.Minute)

	built := make(chan struct{})
	go func() {
		_, _ = reg.Get(context.Background(), "c1", "")
		close(built)
	}()
	<-gate.entered

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := reg.Get(ctx, "c1", "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(gate.release)
	<-built
	assert.Equal(t, 1, reg.Len())
}
