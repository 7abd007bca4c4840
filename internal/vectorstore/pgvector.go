package vectorstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"docqa/internal/contextutil"
)

// PgVectorTable is the collection name used with the pgvector backend.
const PgVectorTable = "chunk_embeddings"

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// pgFilterColumns are the metadata columns a filter may reference.
var pgFilterColumns = map[string]bool{
	KeyDocID:      true,
	KeySectionID:  true,
	KeySource:     true,
	KeySourceType: true,
}

// PgVectorStore implements VectorStore on PostgreSQL with the pgvector extension.
// Each collection is a table; scores are cosine similarity (1 - cosine distance).
type PgVectorStore struct {
	db *sql.DB
}

// NewPgVectorStore wraps an open PostgreSQL connection pool.
func NewPgVectorStore(db *sql.DB) *PgVectorStore {
	return &PgVectorStore{db: db}
}

func tableIdent(collection string) (string, error) {
	if !identifierPattern.MatchString(collection) {
		return "", fmt.Errorf("%w: invalid collection name %q", ErrInvalidQuery, collection)
	}
	return pq.QuoteIdentifier(collection), nil
}

// EnsureSchema creates the vector extension and collection table when missing,
// and verifies the embedding column has the expected dimension.
func (s *PgVectorStore) EnsureSchema(ctx context.Context, collection string, dimension int) error {
	logger := contextutil.LoggerFromContext(ctx)

	table, err := tableIdent(collection)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			chunk_id TEXT PRIMARY KEY,
			doc_id TEXT NOT NULL DEFAULT '',
			section_id TEXT NOT NULL DEFAULT '',
			section_title TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			source_type TEXT NOT NULL DEFAULT 'document',
			start_seconds DOUBLE PRECISION,
			end_seconds DOUBLE PRECISION,
			video_url TEXT NOT NULL DEFAULT '',
			embedding vector(%d) NOT NULL
		)`, table, dimension)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create %s: %w", collection, err)
	}

	var actual int
	err = s.db.QueryRowContext(ctx, `
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = $1::regclass AND attname = 'embedding'`, collection).Scan(&actual)
	if err != nil {
		return fmt.Errorf("failed to read embedding dimension: %w", err)
	}
	if actual != dimension {
		return fmt.Errorf("collection vector size mismatch: expected %d, got %d", dimension, actual)
	}

	logger.InfoContext(ctx, "pgvector collection validated", "collection", collection, "vector_size", dimension)
	return nil
}

// Upsert inserts or updates points in one transaction.
func (s *PgVectorStore) Upsert(ctx context.Context, collection string, points []Point) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(points) == 0 {
		return nil
	}
	table, err := tableIdent(collection)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (chunk_id, doc_id, section_id, section_title, source, source_type, start_seconds, end_seconds, video_url, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (chunk_id) DO UPDATE SET
			doc_id = EXCLUDED.doc_id,
			section_id = EXCLUDED.section_id,
			section_title = EXCLUDED.section_title,
			source = EXCLUDED.source,
			source_type = EXCLUDED.source_type,
			start_seconds = EXCLUDED.start_seconds,
			end_seconds = EXCLUDED.end_seconds,
			video_url = EXCLUDED.video_url,
			embedding = EXCLUDED.embedding`, table))
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, p := range points {
		_, err := stmt.ExecContext(ctx,
			p.ID,
			metaString(p.Meta, KeyDocID),
			metaString(p.Meta, KeySectionID),
			metaString(p.Meta, KeySectionTitle),
			metaString(p.Meta, KeySource),
			defaultString(metaString(p.Meta, KeySourceType), "document"),
			metaFloat(p.Meta, KeyStartSeconds),
			metaFloat(p.Meta, KeyEndSeconds),
			metaString(p.Meta, KeyVideoURL),
			pgvector.NewVector(p.Vec),
		)
		if err != nil {
			logger.ErrorContext(ctx, "failed to upsert embedding", "collection", collection, "chunk_id", p.ID, "error", err)
			return fmt.Errorf("failed to upsert embedding %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}
	logger.InfoContext(ctx, "upserted points", "collection", collection, "count", len(points))
	return nil
}

// buildWhere renders filters as a parameterized WHERE clause. Parameters start at $start.
func buildWhere(filters map[string]any, start int) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, key := range keys {
		if !pgFilterColumns[key] {
			return "", nil, fmt.Errorf("%w: unsupported filter field %q", ErrInvalidQuery, key)
		}
		v, err := filterValue(key, filters[key])
		if err != nil {
			return "", nil, err
		}
		s, ok := v.(string)
		if !ok {
			return "", nil, fmt.Errorf("%w: filter field %q expects a string, got %T", ErrInvalidQuery, key, filters[key])
		}
		clauses = append(clauses, fmt.Sprintf("%s = $%d", key, start+len(args)))
		args = append(args, s)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

// Search orders by cosine distance and reports 1 - distance as the score.
func (s *PgVectorStore) Search(ctx context.Context, collection string, query []float32, k int, filters map[string]any) ([]SearchResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be greater than 0", ErrInvalidQuery)
	}
	table, err := tableIdent(collection)
	if err != nil {
		return nil, err
	}
	where, filterArgs, err := buildWhere(filters, 3)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`
		SELECT chunk_id, doc_id, section_id, section_title, source, source_type,
			start_seconds, end_seconds, video_url, 1 - (embedding <=> $1) AS score
		FROM %s%s
		ORDER BY embedding <=> $1
		LIMIT $2`, table, where)

	args := append([]any{pgvector.NewVector(query), k}, filterArgs...)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		logger.ErrorContext(ctx, "failed to search points", "collection", collection, "k", k, "error", err)
		return nil, fmt.Errorf("failed to search points: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var results []SearchResult
	for rows.Next() {
		var (
			id, docID, sectionID, sectionTitle, source, sourceType, videoURL string
			start, end                                                       sql.NullFloat64
			score                                                            float64
		)
		if err := rows.Scan(&id, &docID, &sectionID, &sectionTitle, &source, &sourceType, &start, &end, &videoURL, &score); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}

		meta := map[string]any{
			KeyChunkID:    id,
			KeyDocID:      docID,
			KeySource:     source,
			KeySourceType: sourceType,
		}
		if sectionID != "" {
			meta[KeySectionID] = sectionID
		}
		if sectionTitle != "" {
			meta[KeySectionTitle] = sectionTitle
		}
		if start.Valid {
			meta[KeyStartSeconds] = start.Float64
		}
		if end.Valid {
			meta[KeyEndSeconds] = end.Float64
		}
		if videoURL != "" {
			meta[KeyVideoURL] = videoURL
		}
		results = append(results, SearchResult{ID: id, Score: float32(score), Meta: meta})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate search results: %w", err)
	}

	logger.DebugContext(ctx, "search completed", "collection", collection, "k", k, "results", len(results))
	return results, nil
}

// Delete removes points by their chunk ids.
func (s *PgVectorStore) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	table, err := tableIdent(collection)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE chunk_id = ANY($1)`, table), pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	return nil
}

// CollectionExists reports whether the collection table exists.
func (s *PgVectorStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	var name sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT to_regclass($1)::text`, collection).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check collection existence: %w", err)
	}
	return name.Valid, nil
}

func metaString(meta map[string]any, key string) string {
	s, _ := meta[key].(string)
	return s
}

func metaFloat(meta map[string]any, key string) sql.NullFloat64 {
	switch v := meta[key].(type) {
	case float64:
		return sql.NullFloat64{Float64: v, Valid: true}
	case float32:
		return sql.NullFloat64{Float64: float64(v), Valid: true}
	case int:
		return sql.NullFloat64{Float64: float64(v), Valid: true}
	case int64:
		return sql.NullFloat64{Float64: float64(v), Valid: true}
	}
	return sql.NullFloat64{}
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
