package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// BlobStore persists uploaded reference images and hands back a URL the
// vendor payload can carry.
type BlobStore interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
}

var extensionByMIME = map[string]string{
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// FileBlobStore writes blobs under a local directory served at a public base
// URL. Object keys are random; nothing is ever overwritten.
type FileBlobStore struct {
	dir     string
	baseURL string
	prefix  string
}

func NewFileBlobStore(dir, baseURL string) (*FileBlobStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("storage: upload directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure upload directory: %w", err)
	}
	return &FileBlobStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		prefix:  "references",
	}, nil
}

func (s *FileBlobStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New("storage: empty object")
	}
	ext, ok := extensionByMIME[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", fmt.Errorf("storage: unsupported content type %q", contentType)
	}
	key := fmt.Sprintf("%s/%s.%s", s.prefix, uuid.New().String(), ext)
	fullPath := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write object: %w", err)
	}
	if s.baseURL == "" {
		return "/" + key, nil
	}
	return s.baseURL + "/" + key, nil
}
