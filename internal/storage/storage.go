// Package storage keeps capture photos in object storage.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ImageStore persists an uploaded image and returns a URL the classifier and
// clients can read it from. Delete of a missing key is not an error.
type ImageStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
	"image/gif":  ".gif",
}

// Extension maps an image content type to a file extension. Unknown types
// return ".bin" and false.
func Extension(contentType string) (string, bool) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	ext, ok := extensions[ct]
	if !ok {
		return ".bin", false
	}
	return ext, true
}

// CaptureKey builds the object key for a capture image:
// captures/YYYY/MM/DD/<id><ext>.
func CaptureKey(at time.Time, id int64, contentType string) string {
	ext, _ := Extension(contentType)
	return fmt.Sprintf("captures/%s/%d%s", at.UTC().Format("2006/01/02"), id, ext)
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
