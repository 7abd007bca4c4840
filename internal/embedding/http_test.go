package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewHTTPEncoder(t *testing.T) {
	enc := NewHTTPEncoder("http://localhost:8081", "test-key", "test-model", 384)
	if enc.BaseURL != "http://localhost:8081" {
		t.Errorf("BaseURL = %v, want http://localhost:8081", enc.BaseURL)
	}
	if enc.Dimension() != 384 {
		t.Errorf("Dimension() = %d, want 384", enc.Dimension())
	}
}

func TestHTTPEncoder_Encode(t *testing.T) {
	tests := []struct {
		name       string
		texts      []string
		serverResp func(w http.ResponseWriter, r *http.Request)
		wantErr    bool
		wantDimErr bool
		check      func(t *testing.T, got [][]float32)
	}{
		{
			name:  "successful embedding",
			texts: []string{"hello", "world"},
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				if r.URL.Path != "/v1/embeddings" {
					t.Errorf("expected /v1/embeddings, got %s", r.URL.Path)
				}
				if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
					t.Errorf("Authorization = %q", got)
				}
				var req EmbeddingsRequest
				_ = json.NewDecoder(r.Body).Decode(&req)
				if req.Model != "test-model" || len(req.Input) != 2 {
					t.Errorf("unexpected request %+v", req)
				}
				writeEmbeddings(w, EmbeddingData{Index: 0, Embedding: []float64{1, 0, 0}}, EmbeddingData{Index: 1, Embedding: []float64{0, 1, 0}})
			},
			check: func(t *testing.T, got [][]float32) {
				if len(got) != 2 || got[0][0] != 1 || got[1][1] != 1 {
					t.Errorf("unexpected vectors %v", got)
				}
			},
		},
		{
			name:  "out of order response uses index",
			texts: []string{"a", "b"},
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				writeEmbeddings(w, EmbeddingData{Index: 1, Embedding: []float64{0, 1, 0}}, EmbeddingData{Index: 0, Embedding: []float64{1, 0, 0}})
			},
			check: func(t *testing.T, got [][]float32) {
				if got[0][0] != 1 || got[1][1] != 1 {
					t.Errorf("vectors not reordered: %v", got)
				}
			},
		},
		{
			name:       "empty input",
			texts:      []string{},
			serverResp: func(w http.ResponseWriter, r *http.Request) {},
			wantErr:    true,
		},
		{
			name:  "wrong embedding count",
			texts: []string{"a", "b"},
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				writeEmbeddings(w, EmbeddingData{Embedding: []float64{1, 0, 0}})
			},
			wantErr: true,
		},
		{
			name:  "wrong embedding size",
			texts: []string{"a"},
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				writeEmbeddings(w, EmbeddingData{Embedding: []float64{1, 0}})
			},
			wantErr:    true,
			wantDimErr: true,
		},
		{
			name:  "server error",
			texts: []string{"a"},
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte("boom"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(tt.serverResp))
			defer server.Close()

			enc := NewHTTPEncoder(server.URL, "test-key", "test-model", 3)
			got, err := enc.Encode(context.Background(), tt.texts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Encode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantDimErr && !errors.Is(err, ErrDimensionMismatch) {
				t.Errorf("Encode() error = %v, want ErrDimensionMismatch", err)
			}
			if tt.check != nil && err == nil {
				tt.check(t, got)
			}
		})
	}
}

func TestHTTPEncoder_EncodeQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEmbeddings(w, EmbeddingData{Embedding: []float64{0.5, 0.25, 0}})
	}))
	defer server.Close()

	enc := NewHTTPEncoder(server.URL, "k", "m", 3)
	vec, err := enc.EncodeQuery(context.Background(), "what is a tensor?")
	if err != nil {
		t.Fatalf("EncodeQuery() error = %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.5 {
		t.Errorf("EncodeQuery() = %v", vec)
	}
}

func writeEmbeddings(w http.ResponseWriter, data ...EmbeddingData) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(EmbeddingsResponse{Data: data})
}
