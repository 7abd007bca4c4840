package handlers

import (
	"context"
	"errors"
	"net/http"

	"docqa/internal/chunk"
	"docqa/internal/contextutil"
	"docqa/internal/ingest"
)

// Indexer writes pre-chunked content; *ingest.Pipeline implements it.
type Indexer interface {
	IndexChunks(ctx context.Context, chunks []chunk.Chunk) (ingest.Result, error)
}

// IngestHandler handles HTTP requests for chunk ingestion.
type IngestHandler struct {
	indexer Indexer
}

// NewIngestHandler creates a new IngestHandler.
func NewIngestHandler(indexer Indexer) *IngestHandler {
	return &IngestHandler{indexer: indexer}
}

// ServeHTTP handles POST /api/ingest/chunks.
//
// swagger:route POST /api/ingest/chunks ingest ingestChunks
//
// # Ingest pre-chunked content
//
// Embeds the chunks and writes them to the row store and the vector index.
// Returns 200 when both succeeded and 207 when the chunks are searchable but
// their rows could not be persisted.
//
// ---
// consumes:
// - application/json
// produces:
// - application/json
// responses:
//
//	'200':
//	  schema:
//	    "$ref": "#/definitions/IngestResponse"
//	'207':
//	  schema:
//	    "$ref": "#/definitions/IngestResponse"
//	'400':
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req IngestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Chunks) == 0 {
		writeError(w, http.StatusBadRequest, "chunks: cannot be empty")
		return
	}

	chunks := make([]chunk.Chunk, 0, len(req.Chunks))
	for _, in := range req.Chunks {
		chunks = append(chunks, in.toChunk())
	}

	result, err := h.indexer.IndexChunks(ctx, chunks)
	if err != nil {
		if errors.Is(err, ingest.ErrInvalidChunk) {
			handleServiceError(ctx, w, err, "")
			return
		}
		logger.ErrorContext(ctx, "ingestion failed", "chunks", len(chunks), "error", err)
		writeError(w, http.StatusServiceUnavailable, "Failed to index chunks")
		return
	}

	status := http.StatusOK
	if !result.Persisted {
		status = http.StatusMultiStatus
	}
	writeJSON(ctx, w, status, IngestResponse{
		Indexed:      result.Indexed,
		Persisted:    result.Persisted,
		ChunkCount:   result.ChunkCount,
		PersistError: result.PersistError,
		Stats: TextStatsResponse{
			Min:  result.Stats.Min,
			Max:  result.Stats.Max,
			Mean: result.Stats.Mean,
			P95:  result.Stats.P95,
		},
	})
}
