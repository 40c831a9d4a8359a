package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"dhuni-backend/internal/apperr"
)

// LocalStore keeps objects on disk under Root and serves them from BaseURL.
type LocalStore struct {
	Root    string
	BaseURL string
}

func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStore{Root: root, BaseURL: baseURL}, nil
}

func (s *LocalStore) resolve(objectPath string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(objectPath))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", apperr.Validationf("invalid object path %q", objectPath)
	}
	return filepath.Join(s.Root, clean), nil
}

func (s *LocalStore) Upload(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	full, err := s.resolve(objectPath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", apperr.Storage("upload", objectPath, err)
	}
	// O_EXCL mirrors upsert=false: an existing object is never overwritten.
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", apperr.Storage("upload", objectPath, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", apperr.Storage("upload", objectPath, err)
	}
	if err := f.Close(); err != nil {
		return "", apperr.Storage("upload", objectPath, err)
	}
	return s.PublicURL(objectPath), nil
}

func (s *LocalStore) PublicURL(objectPath string) string {
	return joinURL(s.BaseURL, objectPath)
}

func (s *LocalStore) Remove(ctx context.Context, objectPath string) error {
	full, err := s.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperr.Storage("remove", objectPath, err)
	}
	return nil
}
