package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"docqa/internal/contextutil"
	"docqa/internal/embedding"
	"docqa/internal/storage"
	"docqa/internal/vectorstore"
)

var tracer = otel.Tracer("docqa/rag")

// RetrieverConfig holds the retriever's collection and per-stage limits.
type RetrieverConfig struct {
	Collection       string
	EmbeddingTimeout time.Duration
	IndexTimeout     time.Duration
	IndexRetries     int
	RowFetchTimeout  time.Duration
	// RetryInterval is the first backoff delay between index attempts.
	RetryInterval time.Duration
	// OnRowStoreDegraded is called when rows could not be fetched and index metadata is used alone.
	OnRowStoreDegraded func(ctx context.Context)
}

// Retriever turns a query into ranked context chunks using the encoder,
// the vector index and the row store.
type Retriever struct {
	encoder embedding.Encoder
	index   vectorstore.VectorStore
	rows    storage.ChunkStore
	cfg     RetrieverConfig
}

// NewRetriever creates a Retriever. rows may be nil, in which case chunks are
// built from index metadata only.
func NewRetriever(encoder embedding.Encoder, index vectorstore.VectorStore, rows storage.ChunkStore, cfg RetrieverConfig) *Retriever {
	if cfg.EmbeddingTimeout <= 0 {
		cfg.EmbeddingTimeout = 10 * time.Second
	}
	if cfg.IndexTimeout <= 0 {
		cfg.IndexTimeout = 5 * time.Second
	}
	if cfg.RowFetchTimeout <= 0 {
		cfg.RowFetchTimeout = 3 * time.Second
	}
	if cfg.IndexRetries < 0 {
		cfg.IndexRetries = 0
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 100 * time.Millisecond
	}
	return &Retriever{encoder: encoder, index: index, rows: rows, cfg: cfg}
}

// Retrieve returns at most topK chunks in index order. Index failures are ErrRetrieval,
// never an empty result; row store failures only degrade the chunks' fields.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, filter map[string]any) ([]ContextChunk, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if topK < 0 {
		return nil, fmt.Errorf("%w: top_k must not be negative", ErrInvalidInput)
	}
	if topK == 0 {
		return []ContextChunk{}, nil
	}

	ctx, span := tracer.Start(ctx, "rag.retrieve")
	defer span.End()
	span.SetAttributes(attribute.Int("rag.top_k", topK), attribute.Int("rag.filter_fields", len(filter)))

	vec, err := r.encode(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode failed")
		logger.ErrorContext(ctx, "failed to encode query", "error", err)
		return nil, fmt.Errorf("%w: failed to encode query: %w", ErrRetrieval, err)
	}

	matches, err := r.search(ctx, vec, topK, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "index query failed")
		logger.ErrorContext(ctx, "vector index query failed", "collection", r.cfg.Collection, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}

	rows := r.fetchRows(ctx, matches)

	seen := make(map[string]bool, len(matches))
	results := make([]ContextChunk, 0, len(matches))
	for _, m := range matches {
		if m.ID == "" || seen[m.ID] {
			continue
		}
		seen[m.ID] = true

		var row *storage.ChunkRow
		if found, ok := rows[m.ID]; ok {
			row = &found
		}
		results = append(results, ContextChunk{
			Rank:  len(results) + 1,
			Score: m.Score,
			Chunk: Enrich(m.ID, row, m.Meta),
		})
		if len(results) == topK {
			break
		}
	}

	span.SetAttributes(attribute.Int("rag.results", len(results)))
	logger.InfoContext(ctx, "retrieval completed", "top_k", topK, "matches", len(matches), "results", len(results))
	return results, nil
}

func (r *Retriever) encode(ctx context.Context, query string) ([]float32, error) {
	ctx, span := tracer.Start(ctx, "rag.encode")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.cfg.EmbeddingTimeout)
	defer cancel()
	return r.encoder.EncodeQuery(ctx, query)
}

// search queries the index with a per-attempt timeout and exponential backoff between attempts.
// Rejected arguments (ErrInvalidQuery) fail on the first attempt.
func (r *Retriever) search(ctx context.Context, vec []float32, topK int, filter map[string]any) ([]vectorstore.SearchResult, error) {
	logger := contextutil.LoggerFromContext(ctx)
	ctx, span := tracer.Start(ctx, "rag.index_search")
	defer span.End()

	attempt := 0
	operation := func() ([]vectorstore.SearchResult, error) {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.IndexTimeout)
		defer cancel()

		results, err := r.index.Search(attemptCtx, r.cfg.Collection, vec, topK, filter)
		if err != nil && ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		if errors.Is(err, vectorstore.ErrInvalidQuery) {
			return nil, backoff.Permanent(err)
		}
		return results, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.RetryInterval

	results, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(r.cfg.IndexRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.WarnContext(ctx, "retrying vector index query", "attempt", attempt, "backoff", next, "error", err)
		}),
	)
	span.SetAttributes(attribute.Int("rag.index_attempts", attempt))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("index query interrupted after %d attempt(s): %w", attempt, err)
		}
		return nil, fmt.Errorf("index query failed after %d attempt(s): %w", attempt, err)
	}
	return results, nil
}

// fetchRows loads rows for the matches in one call. Failures degrade to an empty map.
func (r *Retriever) fetchRows(ctx context.Context, matches []vectorstore.SearchResult) map[string]storage.ChunkRow {
	if r.rows == nil || len(matches) == 0 {
		return nil
	}
	logger := contextutil.LoggerFromContext(ctx)
	ctx, span := tracer.Start(ctx, "rag.fetch_rows")
	defer span.End()

	ids := make([]string, 0, len(matches))
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		if m.ID != "" && !seen[m.ID] {
			seen[m.ID] = true
			ids = append(ids, m.ID)
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.cfg.RowFetchTimeout)
	defer cancel()

	rows, err := r.rows.FetchMany(fetchCtx, ids)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("rag.degraded", true))
		logger.WarnContext(ctx, "row store unavailable, using index metadata only", "ids", len(ids), "error", err)
		if r.cfg.OnRowStoreDegraded != nil {
			r.cfg.OnRowStoreDegraded(ctx)
		}
		return nil
	}
	span.SetAttributes(attribute.Int("rag.rows_found", len(rows)))
	return rows
}
