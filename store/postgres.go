package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/visioncap/visioncap"
)

// PostgresEmbedStore is the pgvector-backed EmbedStore, expressing the
// compound cosine-distance-plus-keyword-boost query of §4.10 as a single
// SQL statement. The image table is expected to carry a `vector` column
// created by the pgvector extension.
type PostgresEmbedStore struct {
	pool *pgxpool.Pool
}

// NewPostgresEmbedStore connects to dsn and returns a ready store. Callers
// are expected to have already created the `images` table and the
// pgvector extension.
func NewPostgresEmbedStore(ctx context.Context, dsn string) (*PostgresEmbedStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect to postgres: %w", err)
	}
	return &PostgresEmbedStore{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *PostgresEmbedStore) Close() {
	s.pool.Close()
}

func (s *PostgresEmbedStore) Upsert(ctx context.Context, record visioncap.ImageRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO images (image_id, caption, confidence, origin, vector, owner_id, visibility, width, height, size_bytes, format, created_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (image_id) DO UPDATE SET
			caption = EXCLUDED.caption,
			confidence = EXCLUDED.confidence,
			origin = EXCLUDED.origin,
			vector = EXCLUDED.vector,
			owner_id = EXCLUDED.owner_id,
			visibility = EXCLUDED.visibility,
			width = EXCLUDED.width,
			height = EXCLUDED.height,
			size_bytes = EXCLUDED.size_bytes,
			format = EXCLUDED.format
	`, record.ImageID, record.Caption, record.Confidence, string(record.Origin), vectorLiteral(record.Vector),
		record.OwnerID, string(record.Visibility), record.Width, record.Height, record.SizeBytes, record.Format,
		createdAtOrNow(record.CreatedAt), record.DeletedAt)
	if err != nil {
		return fmt.Errorf("store: upsert image: %w", err)
	}
	return nil
}

func (s *PostgresEmbedStore) Get(ctx context.Context, imageID string) (*visioncap.ImageRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT image_id, caption, confidence, origin, owner_id, visibility, width, height, size_bytes, format, created_at, deleted_at
		FROM images WHERE image_id = $1 AND deleted_at IS NULL
	`, imageID)

	record, err := scanImageRecord(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get image: %w", err)
	}
	return record, nil
}

func (s *PostgresEmbedStore) List(ctx context.Context, scope visioncap.Scope, callerID string, hasCaller bool, limit, offset int) ([]visioncap.ImageRecord, error) {
	clause, args := scopeClause(scope, callerID, hasCaller, 1)
	query := fmt.Sprintf(`
		SELECT image_id, caption, confidence, origin, owner_id, visibility, width, height, size_bytes, format, created_at, deleted_at
		FROM images WHERE deleted_at IS NULL AND %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d
	`, clause, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list images: %w", err)
	}
	defer rows.Close()

	var records []visioncap.ImageRecord
	for rows.Next() {
		record, err := scanImageRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan image row: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

func (s *PostgresEmbedStore) SoftDelete(ctx context.Context, imageID string, deletedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE images SET deleted_at = $1 WHERE image_id = $2`, deletedAt, imageID)
	if err != nil {
		return fmt.Errorf("store: soft delete image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: image %q not found", imageID)
	}
	return nil
}

func (s *PostgresEmbedStore) Search(ctx context.Context, query SearchQuery) ([]visioncap.SearchResult, error) {
	clause, args := scopeClause(query.Scope, query.CallerID, query.HasCaller, 4)
	args = append([]interface{}{vectorLiteral(query.Vector), query.QueryText, query.KeywordWeight}, args...)

	sql := fmt.Sprintf(`
		SELECT image_id, caption,
			(1 - (vector <=> $1::vector)) + ($3 * (CASE WHEN caption ILIKE '%%' || $2 || '%%' THEN 1 ELSE 0 END)) AS score
		FROM images
		WHERE deleted_at IS NULL AND %s
		ORDER BY score DESC
		LIMIT $%d
	`, clause, len(args)+1)
	args = append(args, query.K)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("store: search images: %w", err)
	}
	defer rows.Close()

	var results []visioncap.SearchResult
	for rows.Next() {
		var r visioncap.SearchResult
		if err := rows.Scan(&r.ImageID, &r.Caption, &r.Score); err != nil {
			return nil, fmt.Errorf("store: scan search row: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// scopeClause builds the §4.10 tenancy filter as a SQL fragment, with
// placeholders starting at startIdx.
func scopeClause(scope visioncap.Scope, callerID string, hasCaller bool, startIdx int) (string, []interface{}) {
	publicClause := "visibility IN ('public', 'public_admin')"

	switch scope {
	case visioncap.ScopeMine:
		if !hasCaller {
			return "FALSE", nil
		}
		return fmt.Sprintf("owner_id = $%d", startIdx), []interface{}{callerID}
	case visioncap.ScopeAll:
		if !hasCaller {
			return "FALSE", nil
		}
		return fmt.Sprintf("(owner_id = $%d OR %s)", startIdx, publicClause), []interface{}{callerID}
	default: // ScopePublic
		return publicClause, nil
	}
}

// row is satisfied by both pgx.Row (QueryRow) and pgx.Rows (Query).
type row interface {
	Scan(dest ...interface{}) error
}

func scanImageRecord(r row) (*visioncap.ImageRecord, error) {
	var record visioncap.ImageRecord
	var origin, visibility string
	if err := r.Scan(&record.ImageID, &record.Caption, &record.Confidence, &origin, &record.OwnerID,
		&visibility, &record.Width, &record.Height, &record.SizeBytes, &record.Format, &record.CreatedAt, &record.DeletedAt); err != nil {
		return nil, err
	}
	record.Origin = visioncap.Tier(origin)
	record.Visibility = visioncap.Visibility(visibility)
	return &record, nil
}

func vectorLiteral(vec []float32) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func createdAtOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
