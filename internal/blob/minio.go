package blob

import (
	"bytes"
	"context"
	"fmt"

	"github.com/debemdeboas/quill/internal/model"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinIOOptions struct {
	// Endpoint is host:port without a scheme.
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
	PublicURL string
}

type MinIOStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

func NewMinIOStore(opts MinIOOptions) (*MinIOStore, error) {
	if opts.Endpoint == "" || opts.Bucket == "" {
		return nil, fmt.Errorf("minio endpoint and bucket are required")
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}

	publicURL := opts.PublicURL
	if publicURL == "" {
		scheme := "http://"
		if opts.UseSSL {
			scheme = "https://"
		}
		publicURL = scheme + opts.Endpoint + "/" + opts.Bucket
	}

	return &MinIOStore{client: client, bucket: opts.Bucket, publicURL: publicURL}, nil
}

// EnsureBucket creates the bucket unless it already exists.
func (s *MinIOStore) EnsureBucket(ctx context.Context) error {
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		exists, xerr := s.client.BucketExists(ctx, s.bucket)
		if xerr != nil || !exists {
			return fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return nil
}

func (s *MinIOStore) Upload(ctx context.Context, asset model.Asset) (string, error) {
	mediaType, err := inspect(asset)
	if err != nil {
		return "", err
	}

	key := NewKey(mediaType)
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(asset.Data), int64(len(asset.Data)),
		minio.PutObjectOptions{ContentType: mediaType})
	if err != nil {
		return "", fmt.Errorf("minio put %s: %w", key, err)
	}

	blobLogger.Info().Str("bucket", s.bucket).Str("key", key).Msg("Asset uploaded to MinIO")
	return joinURL(s.publicURL, key), nil
}
