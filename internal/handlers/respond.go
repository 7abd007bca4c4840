package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"docqa/internal/contextutil"
	"docqa/internal/ingest"
	"docqa/internal/rag"
	"docqa/internal/service"
)

// maxBodyBytes bounds request bodies; ingest batches are the largest legitimate payload.
const maxBodyBytes = 8 << 20

// ErrorResponse represents an error response.
//
// swagger:model ErrorResponse
type ErrorResponse struct {
	Error string `json:"error"`
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is empty")
		}
		return err
	}
	return nil
}

// writeJSON writes v with the given status code.
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}

// statusFor maps an error class to an HTTP status code.
func statusFor(err error) int {
	var validationErr *service.ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validationErr),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, rag.ErrInvalidInput),
		errors.Is(err, ingest.ErrInvalidChunk):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrForbidden):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, rag.ErrRetrieval):
		return http.StatusServiceUnavailable
	case errors.Is(err, rag.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleServiceError logs err and writes a plain error response with the mapped status.
func handleServiceError(ctx context.Context, w http.ResponseWriter, err error, defaultMsg string) {
	status := statusFor(err)
	logger := contextutil.LoggerFromContext(ctx)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "service error", "status", status, "error", err)
	} else {
		logger.WarnContext(ctx, "request rejected", "status", status, "error", err)
	}

	msg := defaultMsg
	switch status {
	case http.StatusBadRequest:
		msg = err.Error()
	case http.StatusUnauthorized:
		msg = "Authentication required"
	case http.StatusNotFound:
		msg = "Resource not found"
	}
	writeError(w, status, msg)
}
