// Package blob stores uploaded assets and hands back a reference that can be
// embedded in a document.
package blob

import (
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/debemdeboas/quill/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var blobLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	blobLogger = l
}

// extensions lists the only media types accepted for upload. Types a
// browser may execute (HTML, SVG) are not listed.
var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// NewKey returns a fresh object key for an asset of the given media type,
// which must be one of the accepted types. Keys are never reused, so a
// reference stays valid for exactly one upload.
func NewKey(mediaType string) string {
	return uuid.NewString() + extensions[mediaType]
}

// inspect sniffs the asset's bytes and returns its media type. The declared
// type, when given, must agree with the content.
func inspect(asset model.Asset) (string, error) {
	if len(asset.Data) == 0 {
		return "", fmt.Errorf("asset %q is empty", asset.Name)
	}

	sniffed, _, err := mime.ParseMediaType(http.DetectContentType(asset.Data))
	if err != nil {
		return "", fmt.Errorf("asset %q: %w", asset.Name, err)
	}
	if _, ok := extensions[sniffed]; !ok {
		return "", fmt.Errorf("asset %q has unsupported type %q", asset.Name, sniffed)
	}

	if asset.MIMEType != "" {
		declared, _, err := mime.ParseMediaType(asset.MIMEType)
		if err != nil || declared != sniffed {
			return "", fmt.Errorf("asset %q declared as %q but contains %q", asset.Name, asset.MIMEType, sniffed)
		}
	}
	return sniffed, nil
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
