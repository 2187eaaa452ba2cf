package store

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/visioncap/visioncap"
	"github.com/visioncap/visioncap/utils/copy"
)

// MemoryEmbedStore is an in-process EmbedStore double used by tests and by
// the mock deployment profile. A linear scan satisfies the same Search
// contract as the Postgres adapter's single SQL statement.
type MemoryEmbedStore struct {
	mu      sync.RWMutex
	records map[string]visioncap.ImageRecord
}

// NewMemoryEmbedStore returns an empty store.
func NewMemoryEmbedStore() *MemoryEmbedStore {
	return &MemoryEmbedStore{records: make(map[string]visioncap.ImageRecord)}
}

func (m *MemoryEmbedStore) Upsert(ctx context.Context, record visioncap.ImageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.ImageID] = record
	return nil
}

func (m *MemoryEmbedStore) Get(ctx context.Context, imageID string) (*visioncap.ImageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[imageID]
	if !ok || record.DeletedAt != nil {
		return nil, nil
	}
	// Deep copy: record.Vector aliases the slice backing the stored value,
	// so callers mutating it in place would corrupt the store.
	cloned, err := copy.Deep(record)
	if err != nil {
		return nil, err
	}
	return &cloned, nil
}

func (m *MemoryEmbedStore) List(ctx context.Context, scope visioncap.Scope, callerID string, hasCaller bool, limit, offset int) ([]visioncap.ImageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []visioncap.ImageRecord
	for _, record := range m.records {
		if record.DeletedAt != nil {
			continue
		}
		if !matchesScope(record, scope, callerID, hasCaller) {
			continue
		}
		matched = append(matched, record)
	}

	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (m *MemoryEmbedStore) SoftDelete(ctx context.Context, imageID string, deletedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[imageID]
	if !ok {
		return fmt.Errorf("store: image %q not found", imageID)
	}
	record.DeletedAt = &deletedAt
	m.records[imageID] = record
	return nil
}

func (m *MemoryEmbedStore) Search(ctx context.Context, query SearchQuery) ([]visioncap.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var candidates []scoredRecord
	lowerQuery := strings.ToLower(query.QueryText)
	for _, record := range m.records {
		if record.DeletedAt != nil {
			continue
		}
		if !matchesScope(record, query.Scope, query.CallerID, query.HasCaller) {
			continue
		}

		score := 1 - cosineDistance(query.Vector, record.Vector)
		if lowerQuery != "" && strings.Contains(strings.ToLower(record.Caption), lowerQuery) {
			score += query.KeywordWeight
		}
		candidates = append(candidates, scoredRecord{record: record, score: score})
	}

	sortByScoreDesc(candidates)

	k := query.K
	if k <= 0 || k > len(candidates) {
		k = len(candidates)
	}

	results := make([]visioncap.SearchResult, 0, k)
	for _, c := range candidates[:k] {
		results = append(results, visioncap.SearchResult{ImageID: c.record.ImageID, Score: c.score, Caption: c.record.Caption})
	}
	return results, nil
}

func matchesScope(record visioncap.ImageRecord, scope visioncap.Scope, callerID string, hasCaller bool) bool {
	isPublic := record.Visibility == visioncap.VisibilityPublic || record.Visibility == visioncap.VisibilityPublicAdmin
	isOwner := hasCaller && record.OwnerID == callerID

	switch scope {
	case visioncap.ScopePublic:
		return isPublic
	case visioncap.ScopeMine:
		return isOwner
	case visioncap.ScopeAll:
		return isOwner || isPublic
	default:
		return false
	}
}

func cosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return 1 - similarity
}

// scoredRecord pairs a record with its search score for sorting.
type scoredRecord struct {
	record visioncap.ImageRecord
	score  float64
}

func sortByScoreDesc(candidates []scoredRecord) {
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].score > candidates[j-1].score; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}
}

// MemoryBlobStore is an in-process BlobStore double.
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryBlobStore returns an empty blob store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

func (m *MemoryBlobStore) Put(ctx context.Context, imageID string, imageBytes []byte) (BlobMetadata, error) {
	m.mu.Lock()
	if _, exists := m.blobs[imageID]; !exists {
		m.blobs[imageID] = imageBytes
	}
	m.mu.Unlock()
	return BlobMetadata{SizeBytes: int64(len(imageBytes)), StorageKey: imageID}, nil
}

func (m *MemoryBlobStore) Get(ctx context.Context, imageID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[imageID]
	if !ok {
		return nil, fmt.Errorf("store: blob %q not found", imageID)
	}
	return data, nil
}

func (m *MemoryBlobStore) Delete(ctx context.Context, imageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, imageID)
	return nil
}
