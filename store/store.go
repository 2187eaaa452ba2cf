// Package store defines the EmbedStore and BlobStore boundaries and ships
// concrete adapters for each: a Postgres/pgvector-backed EmbedStore, an
// in-memory EmbedStore double, an S3 BlobStore, and a local-disk BlobStore.
package store

import (
	"context"
	"time"

	"github.com/visioncap/visioncap"
)

// BlobMetadata is what a BlobStore reports back after persisting raw image
// bytes, per §4.7 step 2 and §3's "BlobStore metadata return value".
type BlobMetadata struct {
	Width      int
	Height     int
	Format     string
	SizeBytes  int64
	StorageKey string
}

// BlobStore persists raw image bytes, keyed by content fingerprint so
// repeated uploads of the same image are idempotent no-ops.
type BlobStore interface {
	// Put writes imageBytes under imageID if not already present, and
	// returns the metadata a worker persists alongside the caption.
	Put(ctx context.Context, imageID string, imageBytes []byte) (BlobMetadata, error)
	Get(ctx context.Context, imageID string) ([]byte, error)
	Delete(ctx context.Context, imageID string) error
}

// SearchQuery carries the compound query SearchPlanner issues against an
// EmbedStore: cosine distance against Vector, plus an optional keyword
// containment boost when QueryText appears in a stored caption.
type SearchQuery struct {
	Vector        []float32
	QueryText     string
	KeywordWeight float64
	K             int
	Scope         visioncap.Scope
	CallerID      string
	HasCaller     bool
}

// EmbedStore is the durable row store searched by SearchPlanner and
// written by the worker pool and the synchronous ingestion path.
type EmbedStore interface {
	Upsert(ctx context.Context, record visioncap.ImageRecord) error
	Get(ctx context.Context, imageID string) (*visioncap.ImageRecord, error)
	List(ctx context.Context, scope visioncap.Scope, callerID string, hasCaller bool, limit, offset int) ([]visioncap.ImageRecord, error)
	SoftDelete(ctx context.Context, imageID string, deletedAt time.Time) error
	Search(ctx context.Context, query SearchQuery) ([]visioncap.SearchResult, error)
}
