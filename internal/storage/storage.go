// Package storage stores item images in an object store (GCS in
// production, local disk in development and tests).
package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"dhuni-backend/internal/config"

	"github.com/google/uuid"
)

type ObjectStore interface {
	// Upload writes data at objectPath and returns its public URL.
	Upload(ctx context.Context, objectPath string, data []byte, contentType string) (string, error)
	PublicURL(objectPath string) string
	Remove(ctx context.Context, objectPath string) error
}

// New builds the store selected by STORAGE_PROVIDER.
func New(ctx context.Context, cfg *config.Config) (ObjectStore, error) {
	switch strings.ToLower(cfg.StorageProvider) {
	case "gcs":
		return NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSCredentialsJSON, cfg.StorageAccessBaseURL)
	case "local", "":
		return NewLocalStore(cfg.LocalStoragePath, cfg.StorageAccessBaseURL)
	default:
		return nil, fmt.Errorf("unsupported storage provider %q", cfg.StorageProvider)
	}
}

// ItemObjectPath is <vendor>/<item>/<random><ext>; everything a vendor
// uploads lives under its own prefix.
func ItemObjectPath(vendorID, itemID uuid.UUID, fileName, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" {
		ext = extensionFromMimeType(mimeType)
	}
	return path.Join(vendorID.String(), itemID.String(), uuid.New().String()+ext)
}

// ThumbnailPath places the thumbnail next to its original.
func ThumbnailPath(objectPath string) string {
	dir, file := path.Split(objectPath)
	base := strings.TrimSuffix(file, path.Ext(file))
	return dir + "thumb_" + base + ".jpg"
}

func joinURL(base, objectPath string) string {
	if strings.Contains(base, "{objectKey}") {
		return strings.ReplaceAll(base, "{objectKey}", url.PathEscape(objectPath))
	}
	return strings.TrimRight(base, "/") + "/" + objectPath
}

func extensionFromMimeType(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	default:
		return ""
	}
}
