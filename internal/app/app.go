// Package app opens the backends named by the configuration.
package app

import (
	"context"
	"fmt"

	"github.com/debemdeboas/quill/internal/blob"
	"github.com/debemdeboas/quill/internal/config"
	"github.com/debemdeboas/quill/internal/content"
	"github.com/debemdeboas/quill/internal/db"
	"github.com/debemdeboas/quill/internal/identity"
	"github.com/debemdeboas/quill/internal/repository"
	"github.com/debemdeboas/quill/internal/util/compression"
	"github.com/debemdeboas/quill/internal/workspace"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type Backends struct {
	DB         *db.SQLite
	Documents  *repository.DBDocumentRepository
	Identities *identity.Provider
	Blobs      content.BlobStore
	// FSAssets is set when assets are kept on local disk.
	FSAssets *blob.FSStore

	redis *redis.Client
}

// SetLoggers hands each package a component-tagged child of l.
func SetLoggers(l zerolog.Logger) {
	config.SetLogger(l.With().Str("component", "config").Logger())
	db.SetLogger(l.With().Str("component", "db").Logger())
	repository.SetLogger(l.With().Str("component", "repository").Logger())
	identity.SetLogger(l.With().Str("component", "identity").Logger())
	blob.SetLogger(l.With().Str("component", "blob").Logger())
}

func Open(ctx context.Context, cfg *config.Config) (*Backends, error) {
	b := &Backends{DB: db.NewSQLite(cfg.Database.Path)}
	if err := b.DB.InitDB(); err != nil {
		return nil, fmt.Errorf(config.ErrInitializeDatabaseFmt, err)
	}

	compressor, err := compression.New(cfg.Database.Compression)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.Documents = repository.NewDBDocumentRepository(b.DB, compressor)

	sessions, err := b.openSessions(ctx, cfg.Sessions)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf(config.ErrSessionStoreFmt, err)
	}
	b.Identities = identity.NewProvider(b.DB, sessions, identity.Options{
		SessionTTL:        cfg.Sessions.TTL,
		MinPasswordLength: cfg.Identity.MinPasswordLength,
	})

	if err := b.openBlobs(ctx, cfg.Storage); err != nil {
		b.Close()
		return nil, fmt.Errorf(config.ErrBlobStoreFmt, err)
	}

	return b, nil
}

func (b *Backends) openSessions(ctx context.Context, cfg config.SessionsConfig) (identity.SessionStore, error) {
	switch cfg.Backend {
	case "redis":
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := b.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}
		return identity.NewRedisSessionStore(b.redis, cfg.Redis.Prefix), nil
	case "sqlite", "":
		return identity.NewSQLiteSessionStore(b.DB), nil
	default:
		return nil, fmt.Errorf("unsupported session backend %q", cfg.Backend)
	}
}

func (b *Backends) openBlobs(ctx context.Context, cfg config.StorageConfig) error {
	switch cfg.Backend {
	case "s3":
		store, err := blob.NewS3Store(ctx, blob.S3Options{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PublicURL:       cfg.S3.PublicURL,
		})
		if err != nil {
			return err
		}
		b.Blobs = store
	case "minio":
		store, err := blob.NewMinIOStore(blob.MinIOOptions{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			UseSSL:    cfg.MinIO.UseSSL,
			PublicURL: cfg.MinIO.PublicURL,
		})
		if err != nil {
			return err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return err
		}
		b.Blobs = store
	case "fs", "":
		store, err := blob.NewFSStore(cfg.FS.Dir, cfg.FS.BaseURL)
		if err != nil {
			return err
		}
		b.Blobs = store
		b.FSAssets = store
	default:
		return fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
	return nil
}

// Factory returns a workspace factory over these backends.
func (b *Backends) Factory(l zerolog.Logger) *workspace.Factory {
	return &workspace.Factory{
		Identities: b.Identities,
		Documents:  b.Documents,
		Blobs:      b.Blobs,
		Logger:     l,
	}
}

func (b *Backends) Close() error {
	if b.redis != nil {
		b.redis.Close()
	}
	return b.DB.Close()
}
