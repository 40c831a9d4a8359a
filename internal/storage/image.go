package storage

import (
	"bytes"
	"fmt"
	"net/http"

	"dhuni-backend/internal/apperr"

	"github.com/disintegration/imaging"
)

const thumbnailSize = 320

var imageMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
}

// ValidateImage sniffs the content type and enforces the size ceiling.
func ValidateImage(fileName string, data []byte, maxBytes int64) (string, error) {
	if len(data) == 0 {
		return "", apperr.Validationf("%s is empty", fileName)
	}
	if int64(len(data)) > maxBytes {
		return "", apperr.Validationf("%s exceeds %dMB", fileName, maxBytes/(1024*1024))
	}
	mimeType := http.DetectContentType(data)
	if !imageMimeTypes[mimeType] {
		return "", apperr.Validationf("%s is not an image", fileName)
	}
	return mimeType, nil
}

// Thumbnail decodes data and returns a JPEG that fits in a 320px box.
// WebP cannot be decoded here; callers skip the thumbnail for it.
func Thumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	thumb := imaging.Fit(img, thumbnailSize, thumbnailSize, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func CanThumbnail(mimeType string) bool {
	return mimeType != "image/webp"
}
