// Package embedding maps text to fixed-dimension vectors.
package embedding

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_encoder.go -package=mocks docqa/internal/embedding Encoder

import (
	"context"
	"errors"
	"fmt"
)

// ErrDimensionMismatch is returned when an encoder's vectors do not match the configured index dimension.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Encoder turns text into vectors. Output for a given text is deterministic for a model version.
type Encoder interface {
	// Encode returns one vector per input text, in input order.
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	// EncodeQuery encodes a single search query.
	EncodeQuery(ctx context.Context, text string) ([]float32, error)
	// Dimension is the fixed length of every vector this encoder returns.
	Dimension() int
}

// CheckDimension probes the encoder once and verifies its vectors have length want.
// A mismatch is a configuration error and should stop the process.
func CheckDimension(ctx context.Context, enc Encoder, want int) error {
	if enc.Dimension() != want {
		return fmt.Errorf("%w: encoder reports %d, index expects %d", ErrDimensionMismatch, enc.Dimension(), want)
	}
	vec, err := enc.EncodeQuery(ctx, "dimension probe")
	if err != nil {
		return fmt.Errorf("failed to probe encoder: %w", err)
	}
	if len(vec) != want {
		return fmt.Errorf("%w: encoder produced %d, index expects %d", ErrDimensionMismatch, len(vec), want)
	}
	return nil
}

// encodeOne adapts a batch encoder to a single query.
func encodeOne(ctx context.Context, enc Encoder, text string) ([]float32, error) {
	vecs, err := enc.Encode(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vecs))
	}
	return vecs[0], nil
}
