package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/visioncap/visioncap/imaging"
)

// LocalBlobStore persists raw image bytes to a directory on disk, one file
// per image ID. It is the default BlobStore for single-node deployments
// that don't need S3.
type LocalBlobStore struct {
	dir string
}

// NewLocalBlobStore ensures dir exists and returns a store rooted there.
func NewLocalBlobStore(dir string) (*LocalBlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create blob dir: %w", err)
	}
	return &LocalBlobStore{dir: dir}, nil
}

func (s *LocalBlobStore) path(imageID string) string {
	return filepath.Join(s.dir, imageID)
}

func (s *LocalBlobStore) Put(ctx context.Context, imageID string, imageBytes []byte) (BlobMetadata, error) {
	path := s.path(imageID)
	if _, err := os.Stat(path); err == nil {
		return s.metadata(imageID, imageBytes)
	}

	if err := os.WriteFile(path, imageBytes, 0o644); err != nil {
		return BlobMetadata{}, fmt.Errorf("store: write blob: %w", err)
	}
	return s.metadata(imageID, imageBytes)
}

func (s *LocalBlobStore) metadata(imageID string, imageBytes []byte) (BlobMetadata, error) {
	meta := BlobMetadata{SizeBytes: int64(len(imageBytes)), StorageKey: imageID}
	if inspected, err := imaging.Inspect(imageBytes); err == nil {
		meta.Width, meta.Height, meta.Format = inspected.Width, inspected.Height, inspected.Format
	}
	return meta, nil
}

func (s *LocalBlobStore) Get(ctx context.Context, imageID string) ([]byte, error) {
	data, err := os.ReadFile(s.path(imageID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("store: blob %q not found", imageID)
		}
		return nil, fmt.Errorf("store: read blob: %w", err)
	}
	return data, nil
}

func (s *LocalBlobStore) Delete(ctx context.Context, imageID string) error {
	if err := os.Remove(s.path(imageID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("store: delete blob: %w", err)
	}
	return nil
}
