package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chunk_store.go -package=mocks docqa/internal/storage ChunkStore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"docqa/internal/contextutil"
)

// ChunkStore defines the interface for chunk row storage.
type ChunkStore interface {
	// FetchMany returns the rows for the given chunk ids keyed by chunk_id.
	// Ids with no row are absent from the map; that is not an error.
	FetchMany(ctx context.Context, ids []string) (map[string]ChunkRow, error)
	// UpsertMany inserts or replaces rows by chunk_id. Each row is written atomically.
	UpsertMany(ctx context.Context, rows []ChunkRow) error
}

// ChunkRepo implements ChunkStore on SQLite.
type ChunkRepo struct {
	db *sql.DB
}

// NewChunkRepo creates a new ChunkRepo.
func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

const chunkColumns = `chunk_id, doc_id, section_id, section_title, section_path, text, source, source_type,
	start_seconds, end_seconds, video_url, txt_url, srt_url, vtt_url, image_paths`

// FetchMany loads rows for ids in a single query.
func (r *ChunkRepo) FetchMany(ctx context.Context, ids []string) (map[string]ChunkRow, error) {
	result := make(map[string]ChunkRow, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM document_chunks WHERE chunk_id IN (%s)", chunkColumns, placeholders),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	logger := contextutil.LoggerFromContext(ctx)
	for rows.Next() {
		var (
			row                                                  ChunkRow
			docID, sectionID, sectionTitle, sectionPath, text    sql.NullString
			source, sourceType, videoURL, txtURL, srtURL, vttURL sql.NullString
			imagePaths                                           sql.NullString
		)
		if err := rows.Scan(&row.ChunkID, &docID, &sectionID, &sectionTitle, &sectionPath, &text,
			&source, &sourceType, &row.StartSeconds, &row.EndSeconds,
			&videoURL, &txtURL, &srtURL, &vttURL, &imagePaths); err != nil {
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
		if imagePaths.Valid && imagePaths.String != "" {
			if err := json.Unmarshal([]byte(imagePaths.String), &row.ImagePaths); err != nil {
				logger.WarnContext(ctx, "ignoring malformed image_paths", "chunk_id", row.ChunkID, "error", err)
			}
		}
		result[row.ChunkID] = row
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return result, nil
}

// UpsertMany writes all rows in one transaction using INSERT ... ON CONFLICT.
func (r *ChunkRepo) UpsertMany(ctx context.Context, rows []ChunkRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO document_chunks (`+chunkColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (chunk_id) DO UPDATE SET
			doc_id = excluded.doc_id,
			section_id = excluded.section_id,
			section_title = excluded.section_title,
			section_path = excluded.section_path,
			text = excluded.text,
			source = excluded.source,
			source_type = excluded.source_type,
			start_seconds = excluded.start_seconds,
			end_seconds = excluded.end_seconds,
			video_url = excluded.video_url,
			txt_url = excluded.txt_url,
			srt_url = excluded.srt_url,
			vtt_url = excluded.vtt_url,
			image_paths = excluded.image_paths,
			updated_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, row := range rows {
		images, err := encodeImagePaths(row.ImagePaths)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			row.ChunkID, nullString(row.DocID), nullString(row.SectionID), nullString(row.SectionTitle),
			nullString(row.SectionPath), nullString(row.Text), nullString(row.Source), nullString(row.SourceType),
			row.StartSeconds, row.EndSeconds,
			nullString(row.VideoURL), nullString(row.TxtURL), nullString(row.SrtURL), nullString(row.VttURL),
			images,
		); err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", row.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}
	return nil
}

func encodeImagePaths(paths []string) (sql.NullString, error) {
	if len(paths) == 0 {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(paths)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode image paths: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
