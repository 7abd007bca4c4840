package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"docqa/internal/ingest"
	"docqa/internal/rag"
	"docqa/internal/service"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", &service.ValidationError{Field: "query", Message: "cannot be empty"}, http.StatusBadRequest},
		{"rag invalid input", fmt.Errorf("%w: top_k", rag.ErrInvalidInput), http.StatusBadRequest},
		{"invalid chunk", fmt.Errorf("%w: duplicate id", ingest.ErrInvalidChunk), http.StatusBadRequest},
		{"forbidden", service.ErrForbidden, http.StatusUnauthorized},
		{"not found", service.ErrNotFound, http.StatusNotFound},
		{"retrieval", fmt.Errorf("%w: qdrant down", rag.ErrRetrieval), http.StatusServiceUnavailable},
		{"generation", fmt.Errorf("%w: empty answer", rag.ErrGeneration), http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}
