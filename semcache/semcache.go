// Package semcache is the content-addressed caption memo (C3). The present
// implementation is exact-match hashing; the name anticipates a future
// upgrade to vector-similarity lookup (see DESIGN.md).
package semcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/visioncap/visioncap"
	"github.com/visioncap/visioncap/state"
)

const keyPrefix = "caption:hash:"

// DefaultTTL is the cache entry lifetime, matching CACHE_TTL_SECONDS' default.
const DefaultTTL = 3600 * time.Second

// Cache is the semantic cache. It is fail-open: any backing-store error is
// logged and treated as a miss (lookup) or silently dropped (store); neither
// ever propagates as a request error.
type Cache struct {
	store  state.Manager
	ttl    time.Duration
	logger *zap.SugaredLogger
}

// New constructs a Cache backed by store, with entries expiring after ttl.
func New(store state.Manager, ttl time.Duration, logger *zap.SugaredLogger) *Cache {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Cache{store: store, ttl: ttl, logger: logger}
}

// Fingerprint returns the 16-hex-character image fingerprint: a prefix of
// the SHA-256 digest over the raw image bytes.
func Fingerprint(imageBytes []byte) string {
	sum := sha256.Sum256(imageBytes)
	return hex.EncodeToString(sum[:])[:16]
}

func cacheKey(imageBytes []byte) string {
	sum := sha256.Sum256(imageBytes)
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Lookup computes the SHA-256 of imageBytes, fetches the keyed value, and
// decodes it. A miss (absent key, decode failure, or backing-store error)
// returns a nil record and a nil error.
func (c *Cache) Lookup(ctx context.Context, imageBytes []byte) (*visioncap.CaptionRecord, error) {
	raw, err := c.store.LoadCache(ctx, cacheKey(imageBytes))
	if err != nil {
		c.logger.Warnw("semcache lookup failed, treating as miss", "error", err)
		return nil, nil
	}
	if raw == nil {
		return nil, nil
	}

	var record visioncap.CaptionRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		c.logger.Warnw("semcache decode failed, treating as miss", "error", err)
		return nil, nil
	}
	return &record, nil
}

// Store serialises record and saves it under imageBytes' full SHA-256 key
// with the cache's configured TTL. Write-through is reserved for Cloud-
// origin records by callers; Store itself has no opinion on origin.
func (c *Cache) Store(ctx context.Context, imageBytes []byte, record visioncap.CaptionRecord) {
	raw, err := json.Marshal(record)
	if err != nil {
		c.logger.Warnw("semcache encode failed, dropping write", "error", err)
		return
	}
	if err := c.store.SaveCache(ctx, cacheKey(imageBytes), raw, c.ttl); err != nil {
		c.logger.Warnw("semcache store failed, dropping write", "error", err)
	}
}
