package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dhuni-backend/internal/apperr"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type GCSStore struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

// NewGCSStore prefers explicit credentials JSON and falls back to ADC.
func NewGCSStore(ctx context.Context, bucket, credentialsJSON, baseURL string) (*GCSStore, error) {
	var (
		client *storage.Client
		err    error
	)
	if strings.TrimSpace(credentialsJSON) != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credentialsJSON)))
	} else {
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("gcs bucket %q not found or not accessible: %w", bucket, err)
	}
	if baseURL == "" || strings.HasPrefix(baseURL, "/") {
		baseURL = "https://storage.googleapis.com/" + bucket
	}
	return &GCSStore{client: client, bucket: bucket, baseURL: baseURL}, nil
}

func (s *GCSStore) Upload(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	// DoesNotExist keeps uploads from replacing an existing object.
	obj := s.client.Bucket(s.bucket).Object(objectPath).If(storage.Conditions{DoesNotExist: true})
	wc := obj.NewWriter(ctx)
	wc.ContentType = contentType
	wc.CacheControl = "public, max-age=3600"

	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return "", apperr.Storage("upload", objectPath, err)
	}
	if err := wc.Close(); err != nil {
		return "", apperr.Storage("upload", objectPath, err)
	}
	return s.PublicURL(objectPath), nil
}

func (s *GCSStore) PublicURL(objectPath string) string {
	return joinURL(s.baseURL, objectPath)
}

func (s *GCSStore) Remove(ctx context.Context, objectPath string) error {
	err := s.client.Bucket(s.bucket).Object(objectPath).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return apperr.Storage("remove", objectPath, err)
	}
	return nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
