package blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/debemdeboas/quill/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngHeader is enough of a PNG for content sniffing.
const pngHeader = "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"

var png = model.Asset{Name: "cat.png", MIMEType: "image/png", Data: []byte(pngHeader + "fake")}

func TestNewKey(t *testing.T) {
	tests := []struct {
		mediaType string
		want      string
	}{
		{"image/png", ".png"},
		{"image/jpeg", ".jpg"},
		{"image/gif", ".gif"},
		{"image/webp", ".webp"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			key := NewKey(tt.mediaType)
			assert.True(t, strings.HasSuffix(key, tt.want), key)
		})
	}

	assert.NotEqual(t, NewKey("image/png"), NewKey("image/png"))
}

func TestInspect(t *testing.T) {
	tests := []struct {
		name    string
		asset   model.Asset
		want    string
		wantErr bool
	}{
		{"png", png, "image/png", false},
		{"undeclared type", model.Asset{Name: "cat", Data: png.Data}, "image/png", false},
		{"declared with params", model.Asset{MIMEType: "image/png; q=1", Data: png.Data}, "image/png", false},
		{"jpeg", model.Asset{MIMEType: "image/jpeg", Data: []byte("\xff\xd8\xff\xe0 jfif")}, "image/jpeg", false},
		{"gif", model.Asset{MIMEType: "image/gif", Data: []byte("GIF89a....")}, "image/gif", false},
		{"empty", model.Asset{Name: "x.png", MIMEType: "image/png"}, "", true},
		{"text", model.Asset{Name: "x.txt", MIMEType: "text/plain", Data: []byte("x")}, "", true},
		{"html claiming image", model.Asset{Name: "evil.html", MIMEType: "image/x-evil", Data: []byte("<script>alert(1)</script>")}, "", true},
		{"html claiming png", model.Asset{Name: "evil.png", MIMEType: "image/png", Data: []byte("<html><script>alert(1)</script>")}, "", true},
		{"svg", model.Asset{Name: "evil.svg", MIMEType: "image/svg+xml", Data: []byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`)}, "", true},
		{"mismatched declaration", model.Asset{Name: "cat.gif", MIMEType: "image/gif", Data: png.Data}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := inspect(tt.asset)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFSStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "assets")
	store, err := NewFSStore(dir, "/assets/")
	require.NoError(t, err)

	ref, err := store.Upload(context.Background(), png)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(ref, "/assets/"), ref)

	key := strings.TrimPrefix(ref, "/assets/")
	data, err := os.ReadFile(filepath.Join(dir, key))
	require.NoError(t, err)
	assert.Equal(t, png.Data, data)

	srv := httptest.NewServer(http.StripPrefix("/assets", store.Handler()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + ref)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, png.Data, body)
}

func TestFSStoreRejectsInvalidAsset(t *testing.T) {
	store, err := NewFSStore(t.TempDir(), "/assets")
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), model.Asset{Name: "empty.png", MIMEType: "image/png"})
	assert.Error(t, err)
}

func TestFSStoreNeverServesActiveContent(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir, "/assets")
	require.NoError(t, err)

	for _, asset := range []model.Asset{
		{Name: "evil.html", MIMEType: "image/x-evil", Data: []byte("<script>fetch('/api/documents')</script>")},
		{Name: "evil.svg", MIMEType: "image/svg+xml", Data: []byte(`<svg xmlns="http://www.w3.org/2000/svg" onload="alert(1)"/>`)},
	} {
		_, err := store.Upload(context.Background(), asset)
		assert.Error(t, err, asset.Name)
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected assets are not written")

	// Even a file placed on disk by other means is sandboxed.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "planted.html"), []byte("<script>alert(1)</script>"), 0o644))

	srv := httptest.NewServer(http.StripPrefix("/assets", store.Handler()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/assets/planted.html")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "default-src 'none'; sandbox", resp.Header.Get("Content-Security-Policy"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

// objectServer records PUT requests the way an S3-compatible endpoint
// would receive them.
type objectServer struct {
	mu   sync.Mutex
	puts map[string]string // path -> content type
	fail bool
}

func newObjectServer(t *testing.T) (*objectServer, *httptest.Server) {
	o := &objectServer{puts: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		if o.fail {
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`)
			return
		}
		if r.Method == http.MethodPut {
			o.mu.Lock()
			o.puts[r.URL.Path] = r.Header.Get("Content-Type")
			o.mu.Unlock()
		}
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return o, srv
}

func (o *objectServer) only(t *testing.T) (string, string) {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.Len(t, o.puts, 1)
	for path, ct := range o.puts {
		return path, ct
	}
	return "", ""
}

func TestS3StoreUpload(t *testing.T) {
	objects, srv := newObjectServer(t)

	store, err := NewS3Store(context.Background(), S3Options{
		Endpoint:        srv.URL,
		Region:          "us-east-1",
		Bucket:          "media",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		PublicURL:       "https://cdn.example.com",
	})
	require.NoError(t, err)

	ref, err := store.Upload(context.Background(), png)
	require.NoError(t, err)

	path, contentType := objects.only(t)
	assert.True(t, strings.HasPrefix(path, "/media/"), path)
	assert.Equal(t, "image/png", contentType)
	assert.Equal(t, "https://cdn.example.com/"+strings.TrimPrefix(path, "/media/"), ref)
}

func TestS3StoreUploadFailure(t *testing.T) {
	objects, srv := newObjectServer(t)
	objects.fail = true

	store, err := NewS3Store(context.Background(), S3Options{
		Endpoint: srv.URL, Region: "us-east-1", Bucket: "media",
		AccessKeyID: "key", SecretAccessKey: "secret",
	})
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), png)
	assert.Error(t, err)
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Options{Endpoint: "http://localhost"})
	assert.Error(t, err)
}

func TestMinIOStoreUpload(t *testing.T) {
	objects, srv := newObjectServer(t)
	endpoint := strings.TrimPrefix(srv.URL, "http://")

	store, err := NewMinIOStore(MinIOOptions{
		Endpoint:  endpoint,
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "media",
	})
	require.NoError(t, err)

	ref, err := store.Upload(context.Background(), png)
	require.NoError(t, err)

	path, contentType := objects.only(t)
	assert.True(t, strings.HasPrefix(path, "/media/"), path)
	assert.Equal(t, "image/png", contentType)
	assert.Equal(t, "http://"+endpoint+path, ref)
}

func TestNewMinIOStoreRequiresEndpoint(t *testing.T) {
	_, err := NewMinIOStore(MinIOOptions{Bucket: "media"})
	assert.Error(t, err)
}
