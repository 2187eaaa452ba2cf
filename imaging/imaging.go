// Package imaging decodes basic image metadata (format, width, height) and
// computes the content fingerprint used as the cache key and the image ID
// derivation across the ingestion pipeline.
package imaging

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"

	// Registered for image.DecodeConfig side effects.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// Metadata is what BlobStore persists alongside the raw bytes, per §4.7
// step 2 ("width, height, format, size").
type Metadata struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int    `json:"size"`
}

// Fingerprint returns the full-length SHA-256 hex digest of imageBytes.
// A 16-character truncated form is available as semcache.Fingerprint
// (semcache's cache keys themselves use the full digest); this is the
// canonical, collision-resistant identifier persisted as an image's ImageID.
func Fingerprint(imageBytes []byte) string {
	sum := sha256.Sum256(imageBytes)
	return hex.EncodeToString(sum[:])
}

// Inspect decodes imageBytes far enough to report format and dimensions
// without allocating the full decoded pixel buffer.
func Inspect(imageBytes []byte) (Metadata, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(imageBytes))
	if err != nil {
		return Metadata{}, fmt.Errorf("imaging: decode config: %w", err)
	}
	return Metadata{
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
		Size:   len(imageBytes),
	}, nil
}
