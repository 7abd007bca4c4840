package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"docqa/internal/contextutil"
)

// OpenPostgres opens a PostgreSQL pool through lib/pq and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, nil
}

// MigratePostgres creates the document_chunks table. Seconds are kept as text
// so foreign producers' values survive and are coerced on read.
func MigratePostgres(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS document_chunks (
			chunk_id TEXT PRIMARY KEY,
			doc_id TEXT,
			section_id TEXT,
			section_title TEXT,
			section_path TEXT,
			text TEXT,
			source TEXT,
			source_type TEXT,
			start_seconds TEXT,
			end_seconds TEXT,
			video_url TEXT,
			txt_url TEXT,
			srt_url TEXT,
			vtt_url TEXT,
			image_paths TEXT[],
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("failed to migrate document_chunks: %w", err)
	}
	return nil
}

// PostgresChunkRepo implements ChunkStore on PostgreSQL.
type PostgresChunkRepo struct {
	db *sql.DB
}

// NewPostgresChunkRepo creates a new PostgresChunkRepo.
func NewPostgresChunkRepo(db *sql.DB) *PostgresChunkRepo {
	return &PostgresChunkRepo{db: db}
}

// FetchMany loads rows for ids with a single = ANY($1) query.
func (r *PostgresChunkRepo) FetchMany(ctx context.Context, ids []string) (map[string]ChunkRow, error) {
	result := make(map[string]ChunkRow, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+chunkColumns+" FROM document_chunks WHERE chunk_id = ANY($1)",
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var (
			row                                                  ChunkRow
			docID, sectionID, sectionTitle, sectionPath, text    sql.NullString
			source, sourceType, videoURL, txtURL, srtURL, vttURL sql.NullString
			start, end                                           sql.NullString
		)
		if err := rows.Scan(&row.ChunkID, &docID, &sectionID, &sectionTitle, &sectionPath, &text,
			&source, &sourceType, &start, &end,
			&videoURL, &txtURL, &srtURL, &vttURL, pq.Array(&row.ImagePaths)); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		row.DocID = docID.String
		row.SectionID = sectionID.String
		row.SectionTitle = sectionTitle.String
		row.SectionPath = sectionPath.String
		row.Text = text.String
		row.Source = source.String
		row.SourceType = sourceType.String
		row.VideoURL = videoURL.String
		row.TxtURL = txtURL.String
		row.SrtURL = srtURL.String
		row.VttURL = vttURL.String
		if start.Valid {
			row.StartSeconds = start.String
		}
		if end.Valid {
			row.EndSeconds = end.String
		}
		result[row.ChunkID] = row
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return result, nil
}

// UpsertMany writes all rows in one transaction using INSERT ... ON CONFLICT.
func (r *PostgresChunkRepo) UpsertMany(ctx context.Context, rows []ChunkRow) error {
	if len(rows) == 0 {
		return nil
	}
	logger := contextutil.LoggerFromContext(ctx)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO document_chunks (`+chunkColumns+`, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now())
		ON CONFLICT (chunk_id) DO UPDATE SET
			doc_id = EXCLUDED.doc_id,
			section_id = EXCLUDED.section_id,
			section_title = EXCLUDED.section_title,
			section_path = EXCLUDED.section_path,
			text = EXCLUDED.text,
			source = EXCLUDED.source,
			source_type = EXCLUDED.source_type,
			start_seconds = EXCLUDED.start_seconds,
			end_seconds = EXCLUDED.end_seconds,
			video_url = EXCLUDED.video_url,
			txt_url = EXCLUDED.txt_url,
			srt_url = EXCLUDED.srt_url,
			vtt_url = EXCLUDED.vtt_url,
			image_paths = EXCLUDED.image_paths,
			updated_at = now()`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx,
			row.ChunkID, nullString(row.DocID), nullString(row.SectionID), nullString(row.SectionTitle),
			nullString(row.SectionPath), nullString(row.Text), nullString(row.Source), nullString(row.SourceType),
			secondsText(row.StartSeconds), secondsText(row.EndSeconds),
			nullString(row.VideoURL), nullString(row.TxtURL), nullString(row.SrtURL), nullString(row.VttURL),
			pq.Array(row.ImagePaths),
		); err != nil {
			logger.ErrorContext(ctx, "failed to upsert chunk row", "chunk_id", row.ChunkID, "error", err)
			return fmt.Errorf("failed to upsert chunk %s: %w", row.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}
	return nil
}

func secondsText(v any) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: fmt.Sprint(v), Valid: true}
}
