package blob

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/debemdeboas/quill/internal/model"
)

// FSStore writes assets into a local directory served under BaseURL.
type FSStore struct {
	dir     string
	baseURL string
}

func NewFSStore(dir, baseURL string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating asset directory: %w", err)
	}
	return &FSStore{dir: dir, baseURL: baseURL}, nil
}

func (s *FSStore) Upload(ctx context.Context, asset model.Asset) (string, error) {
	mediaType, err := inspect(asset)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := NewKey(mediaType)
	path := filepath.Join(s.dir, key)
	if err := os.WriteFile(path, asset.Data, 0o644); err != nil {
		return "", fmt.Errorf("writing asset: %w", err)
	}

	blobLogger.Info().Str("key", key).Int("size", len(asset.Data)).Msg("Asset stored on disk")
	return joinURL(s.baseURL, key), nil
}

// Handler serves stored assets. Mount it under the store's base URL path.
// Responses are sandboxed and never sniffed, so a stored file cannot run
// script on the site's origin.
func (s *FSStore) Handler() http.Handler {
	files := http.FileServer(http.Dir(s.dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'none'; sandbox")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		files.ServeHTTP(w, r)
	})
}
