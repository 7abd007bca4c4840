// Package ingest embeds pre-chunked content and writes it to the row store and the vector index.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docqa/internal/chunk"
	"docqa/internal/contextutil"
	"docqa/internal/embedding"
	"docqa/internal/storage"
	"docqa/internal/vectorstore"
)

// DefaultBatchSize is the number of texts sent to the encoder per call.
const DefaultBatchSize = 32

// ErrInvalidChunk is returned when a batch fails validation. Nothing is written.
var ErrInvalidChunk = errors.New("invalid chunk")

// Result reports the two-phase outcome. Indexed means every point reached the vector index;
// Persisted means the row store accepted every row as well.
type Result struct {
	Indexed      bool
	Persisted    bool
	ChunkCount   int
	PersistError string
	Stats        TextStats
}

// Config configures a Pipeline.
type Config struct {
	Collection  string
	ImagePrefix string
	BatchSize   int
}

// Pipeline writes chunks to the row store (best effort) and the vector index (required).
type Pipeline struct {
	encoder embedding.Encoder
	index   vectorstore.VectorStore
	rows    storage.ChunkStore
	cfg     Config
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(encoder embedding.Encoder, index vectorstore.VectorStore, rows storage.ChunkStore, cfg Config) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.ImagePrefix == "" {
		cfg.ImagePrefix = chunk.DefaultImagePrefix
	}
	return &Pipeline{
		encoder: encoder,
		index:   index,
		rows:    rows,
		cfg:     cfg,
	}
}

// IndexChunks validates, embeds and stores chunks. A row store failure is reported in the
// Result and logged for reconciliation; a vector index failure fails the call.
func (p *Pipeline) IndexChunks(ctx context.Context, chunks []chunk.Chunk) (Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if err := p.validate(chunks); err != nil {
		logger.WarnContext(ctx, "rejected ingest batch", "chunks", len(chunks), "error", err)
		return Result{}, err
	}
	result := Result{ChunkCount: len(chunks), Stats: computeTextStats(chunks)}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.encode(ctx, texts)
	if err != nil {
		return result, err
	}

	rows := make([]storage.ChunkRow, len(chunks))
	for i, c := range chunks {
		rows[i] = storage.RowFromChunk(c)
	}
	if err := p.rows.UpsertMany(ctx, rows); err != nil {
		result.PersistError = err.Error()
		logger.ErrorContext(ctx, "row store upsert failed, chunks need reconciliation",
			"chunks", len(chunks),
			"first_chunk_id", chunks[0].ID,
			"error", err,
		)
	} else {
		result.Persisted = true
	}

	points := make([]vectorstore.Point, len(chunks))
	for i, c := range chunks {
		points[i] = vectorstore.Point{
			ID:   c.ID,
			Vec:  vectors[i],
			Meta: vectorstore.ChunkMetadata(c),
		}
	}
	if err := p.index.Upsert(ctx, p.cfg.Collection, points); err != nil {
		logger.ErrorContext(ctx, "vector index upsert failed", "chunks", len(chunks), "persisted", result.Persisted, "error", err)
		return result, fmt.Errorf("failed to upsert vectors: %w", err)
	}
	result.Indexed = true

	logger.InfoContext(ctx, "ingested chunks",
		"chunks", len(chunks),
		"persisted", result.Persisted,
		"mean_runes", result.Stats.Mean,
	)
	return result, nil
}

// encode embeds texts in batches, preserving order.
func (p *Pipeline) encode(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += p.cfg.BatchSize {
		end := min(start+p.cfg.BatchSize, len(texts))
		batch, err := p.encoder.Encode(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings for chunks %d-%d: %w", start, end-1, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", end-start, len(batch))
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (p *Pipeline) validate(chunks []chunk.Chunk) error {
	if len(chunks) == 0 {
		return fmt.Errorf("%w: no chunks given", ErrInvalidChunk)
	}
	seen := make(map[string]bool, len(chunks))
	for i, c := range chunks {
		if strings.TrimSpace(c.ID) == "" {
			return fmt.Errorf("%w: chunk %d has no id", ErrInvalidChunk, i)
		}
		if seen[c.ID] {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidChunk, c.ID)
		}
		seen[c.ID] = true
		if strings.TrimSpace(c.Text) == "" {
			return fmt.Errorf("%w: chunk %q has no text", ErrInvalidChunk, c.ID)
		}
		if d, ok := c.Document(); ok {
			for _, img := range d.ImagePaths {
				docID, _, err := chunk.ParseImagePath(p.cfg.ImagePrefix, img)
				if err != nil {
					return fmt.Errorf("%w: chunk %q: %w", ErrInvalidChunk, c.ID, err)
				}
				if c.DocID != "" && docID != c.DocID {
					return fmt.Errorf("%w: chunk %q references image of document %q", ErrInvalidChunk, c.ID, docID)
				}
			}
		}
	}
	return nil
}
