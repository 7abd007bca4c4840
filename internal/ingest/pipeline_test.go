package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"docqa/internal/chunk"
	embedding_mocks "docqa/internal/embedding/mocks"
	"docqa/internal/storage"
	storage_mocks "docqa/internal/storage/mocks"
	"docqa/internal/vectorstore"
	vectorstore_mocks "docqa/internal/vectorstore/mocks"

	"go.uber.org/mock/gomock"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

const testCollection = "document_chunks"

type pipelineMocks struct {
	encoder *embedding_mocks.MockEncoder
	index   *vectorstore_mocks.MockVectorStore
	rows    *storage_mocks.MockChunkStore
}

func newTestPipeline(t *testing.T) (*Pipeline, pipelineMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := pipelineMocks{
		encoder: embedding_mocks.NewMockEncoder(ctrl),
		index:   vectorstore_mocks.NewMockVectorStore(ctrl),
		rows:    storage_mocks.NewMockChunkStore(ctrl),
	}
	return NewPipeline(m.encoder, m.index, m.rows, Config{Collection: testCollection}), m
}

func fakeVectors(texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 1, 0}
	}
	return out
}

func docChunks(n int) []chunk.Chunk {
	chunks := make([]chunk.Chunk, n)
	for i := range chunks {
		chunks[i] = chunk.Chunk{
			ID:     fmt.Sprintf("guide-%03d", i),
			DocID:  "guide",
			Text:   fmt.Sprintf("paragraph %d", i),
			Source: "guide.pdf",
			Media:  chunk.DocumentMedia{},
		}
	}
	return chunks
}

func TestNewPipeline_Defaults(t *testing.T) {
	p, _ := newTestPipeline(t)
	if p.cfg.BatchSize != DefaultBatchSize {
		t.Errorf("BatchSize = %d, want %d", p.cfg.BatchSize, DefaultBatchSize)
	}
	if p.cfg.ImagePrefix != chunk.DefaultImagePrefix {
		t.Errorf("ImagePrefix = %q, want %q", p.cfg.ImagePrefix, chunk.DefaultImagePrefix)
	}
}

func TestPipeline_IndexChunks_Success(t *testing.T) {
	p, m := newTestPipeline(t)
	chunks := docChunks(40)
	start := 12.0
	chunks[39] = chunk.Chunk{
		ID:     "lecture-001",
		DocID:  "lecture",
		Text:   "today we cover embeddings",
		Source: "lecture.mp4",
		Media:  chunk.VideoMedia{StartSeconds: &start, VideoURL: "https://cdn.example/lecture.mp4"},
	}

	gomock.InOrder(
		m.encoder.EXPECT().Encode(gomock.Any(), gomock.Len(32)).
			DoAndReturn(func(_ context.Context, texts []string) ([][]float32, error) { return fakeVectors(texts), nil }),
		m.encoder.EXPECT().Encode(gomock.Any(), gomock.Len(8)).
			DoAndReturn(func(_ context.Context, texts []string) ([][]float32, error) { return fakeVectors(texts), nil }),
		m.rows.EXPECT().UpsertMany(gomock.Any(), gomock.Len(40)).
			DoAndReturn(func(_ context.Context, rows []storage.ChunkRow) error {
				if rows[39].SourceType != "video" || rows[39].VideoURL == "" {
					t.Errorf("video row = %+v", rows[39])
				}
				return nil
			}),
		m.index.EXPECT().Upsert(gomock.Any(), testCollection, gomock.Len(40)).
			DoAndReturn(func(_ context.Context, _ string, points []vectorstore.Point) error {
				for i, pt := range points {
					if pt.ID != chunks[i].ID {
						t.Errorf("point %d id = %s, want %s", i, pt.ID, chunks[i].ID)
					}
					if pt.Meta[vectorstore.KeyChunkID] != chunks[i].ID {
						t.Errorf("point %d chunk_id = %v", i, pt.Meta[vectorstore.KeyChunkID])
					}
				}
				if got := points[39].Meta[vectorstore.KeyStartSeconds]; got != 12.0 {
					t.Errorf("video start_seconds = %v, want 12", got)
				}
				if got := points[39].Vec[0]; got != float32(len(chunks[39].Text)) {
					t.Errorf("vector order broken, got %v", got)
				}
				return nil
			}),
	)

	result, err := p.IndexChunks(context.Background(), chunks)
	if err != nil {
		t.Fatalf("IndexChunks() error = %v", err)
	}
	if !result.Indexed || !result.Persisted || result.ChunkCount != 40 || result.PersistError != "" {
		t.Errorf("IndexChunks() result = %+v", result)
	}
}

func TestPipeline_IndexChunks_PersistFailureStillIndexes(t *testing.T) {
	p, m := newTestPipeline(t)
	chunks := docChunks(3)

	m.encoder.EXPECT().Encode(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, texts []string) ([][]float32, error) { return fakeVectors(texts), nil })
	m.rows.EXPECT().UpsertMany(gomock.Any(), gomock.Any()).Return(errors.New("database is locked"))
	m.index.EXPECT().Upsert(gomock.Any(), testCollection, gomock.Len(3)).Return(nil)

	result, err := p.IndexChunks(context.Background(), chunks)
	if err != nil {
		t.Fatalf("IndexChunks() error = %v", err)
	}
	if !result.Indexed || result.Persisted {
		t.Errorf("IndexChunks() indexed=%v persisted=%v, want true/false", result.Indexed, result.Persisted)
	}
	if !strings.Contains(result.PersistError, "database is locked") {
		t.Errorf("PersistError = %q", result.PersistError)
	}
}

func TestPipeline_IndexChunks_IndexFailure(t *testing.T) {
	p, m := newTestPipeline(t)

	m.encoder.EXPECT().Encode(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, texts []string) ([][]float32, error) { return fakeVectors(texts), nil })
	m.rows.EXPECT().UpsertMany(gomock.Any(), gomock.Any()).Return(nil)
	m.index.EXPECT().Upsert(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("qdrant unavailable"))

	result, err := p.IndexChunks(context.Background(), docChunks(2))
	if err == nil {
		t.Fatal("IndexChunks() expected error, got nil")
	}
	if result.Indexed {
		t.Error("IndexChunks() Indexed = true after index failure")
	}
	if !result.Persisted {
		t.Error("IndexChunks() should still report the row store outcome")
	}
}

func TestPipeline_IndexChunks_EncoderFailure(t *testing.T) {
	p, m := newTestPipeline(t)
	m.encoder.EXPECT().Encode(gomock.Any(), gomock.Any()).Return(nil, errors.New("model not loaded"))

	if _, err := p.IndexChunks(context.Background(), docChunks(2)); err == nil {
		t.Fatal("IndexChunks() expected error, got nil")
	}
}

func TestPipeline_IndexChunks_Validation(t *testing.T) {
	withImages := func(paths ...string) []chunk.Chunk {
		c := docChunks(1)
		c[0].Media = chunk.DocumentMedia{ImagePaths: paths}
		return c
	}
	duplicate := docChunks(2)
	duplicate[1].ID = duplicate[0].ID
	noID := docChunks(1)
	noID[0].ID = " "
	noText := docChunks(1)
	noText[0].Text = "\n"

	tests := []struct {
		name   string
		chunks []chunk.Chunk
	}{
		{"empty batch", nil},
		{"missing id", noID},
		{"duplicate id", duplicate},
		{"missing text", noText},
		{"image outside prefix", withImages("uploads/guide/images/a.png")},
		{"image path traversal", withImages("docs/guide/images/../../etc/passwd")},
		{"image of another document", withImages("docs/other/images/a.png")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestPipeline(t)
			_, err := p.IndexChunks(context.Background(), tt.chunks)
			if !errors.Is(err, ErrInvalidChunk) {
				t.Errorf("IndexChunks() error = %v, want ErrInvalidChunk", err)
			}
		})
	}
}

func TestComputeTextStats(t *testing.T) {
	if got := computeTextStats(nil); got != (TextStats{}) {
		t.Errorf("computeTextStats(nil) = %+v", got)
	}

	chunks := []chunk.Chunk{{Text: "abc"}, {Text: "日本語です"}, {Text: "a"}}
	got := computeTextStats(chunks)
	want := TextStats{Min: 1, Max: 5, Mean: 3, P95: 5}
	if got != want {
		t.Errorf("computeTextStats() = %+v, want %+v", got, want)
	}
}
