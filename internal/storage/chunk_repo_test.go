package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/chunk"
)

func TestChunkRepo_UpsertAndFetch(t *testing.T) {
	repo := NewChunkRepo(newTestDB(t))
	ctx := context.Background()

	start := 62.0
	rows := []ChunkRow{
		RowFromChunk(chunk.Chunk{
			ID:      "d1",
			DocID:   "guide",
			Section: chunk.NewSection("s1", "Install", "guide/install"),
			Text:    "run the installer",
			Source:  "guide.pdf",
			Media:   chunk.DocumentMedia{ImagePaths: []string{"docs/guide/images/a.png"}},
		}),
		RowFromChunk(chunk.Chunk{
			ID:     "v1",
			DocID:  "lecture",
			Text:   "welcome to the lecture",
			Source: "lecture.mp4",
			Media:  chunk.VideoMedia{StartSeconds: &start, VideoURL: "https://cdn/l.mp4"},
		}),
	}
	require.NoError(t, repo.UpsertMany(ctx, rows))

	got, err := repo.FetchMany(ctx, []string{"d1", "v1", "missing"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.NotContains(t, got, "missing")

	doc := got["d1"]
	assert.Equal(t, "guide", doc.DocID)
	assert.Equal(t, "Install", doc.SectionTitle)
	assert.Equal(t, "document", doc.SourceType)
	assert.Equal(t, []string{"docs/guide/images/a.png"}, doc.ImagePaths)
	assert.Nil(t, doc.StartSeconds)

	video := got["v1"]
	assert.Equal(t, "video", video.SourceType)
	assert.Equal(t, 62.0, *chunk.ToSeconds(video.StartSeconds))
	assert.Nil(t, video.EndSeconds)
	assert.Empty(t, video.SectionID)
}

func TestChunkRepo_UpsertReplacesByID(t *testing.T) {
	repo := NewChunkRepo(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.UpsertMany(ctx, []ChunkRow{{ChunkID: "c1", Text: "old", SourceType: "document"}}))
	require.NoError(t, repo.UpsertMany(ctx, []ChunkRow{{ChunkID: "c1", Text: "new", SourceType: "document"}}))

	got, err := repo.FetchMany(ctx, []string{"c1"})
	require.NoError(t, err)
	assert.Equal(t, "new", got["c1"].Text)

	var count int
	require.NoError(t, repo.db.QueryRow("SELECT COUNT(*) FROM document_chunks").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestChunkRepo_MalformedSecondsSurvive(t *testing.T) {
	db := newTestDB(t)
	repo := NewChunkRepo(db)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO document_chunks (chunk_id, source_type, start_seconds, end_seconds, image_paths)
		VALUES ('v9', 'video', 'about a minute', '75', 'not json')`)
	require.NoError(t, err)

	got, err := repo.FetchMany(ctx, []string{"v9"})
	require.NoError(t, err)
	row := got["v9"]
	assert.Nil(t, chunk.ToSeconds(row.StartSeconds))
	require.NotNil(t, chunk.ToSeconds(row.EndSeconds))
	assert.Equal(t, 75.0, *chunk.ToSeconds(row.EndSeconds))
	assert.Empty(t, row.ImagePaths)
}

func TestChunkRepo_EmptyInputs(t *testing.T) {
	repo := NewChunkRepo(newTestDB(t))
	ctx := context.Background()

	got, err := repo.FetchMany(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, repo.UpsertMany(ctx, nil))
}

func TestSecondsText(t *testing.T) {
	assert.False(t, secondsText(nil).Valid)
	assert.Equal(t, "62.5", secondsText(62.5).String)
	assert.Equal(t, "1:05", secondsText("1:05").String)
}
