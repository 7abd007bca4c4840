package vectorstore

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/chunk"
)

func TestBuildWhere(t *testing.T) {
	where, args, err := buildWhere(nil, 3)
	require.NoError(t, err)
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args, err = buildWhere(map[string]any{
		KeySourceType: chunk.SourceVideo,
		KeyDocID:      "doc-1",
	}, 3)
	require.NoError(t, err)
	assert.Equal(t, " WHERE doc_id = $3 AND source_type = $4", where)
	assert.Equal(t, []any{"doc-1", "video"}, args)
}

func TestBuildWhere_Rejects(t *testing.T) {
	_, _, err := buildWhere(map[string]any{"embedding": "x"}, 3)
	assert.ErrorIs(t, err, ErrInvalidQuery, "unknown column")

	_, _, err = buildWhere(map[string]any{KeyDocID: 7}, 3)
	assert.ErrorIs(t, err, ErrInvalidQuery, "non-string value on text column")

	_, _, err = buildWhere(map[string]any{KeyDocID: []string{"a"}}, 3)
	assert.ErrorIs(t, err, ErrInvalidQuery, "unsupported type")
}

func TestPgVectorStore_SearchRejectsBadArguments(t *testing.T) {
	store := NewPgVectorStore(nil)
	ctx := context.Background()

	_, err := store.Search(ctx, PgVectorTable, []float32{1}, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = store.Search(ctx, "Bad Name", []float32{1}, 3, nil)
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = store.Search(ctx, PgVectorTable, []float32{1}, 3, map[string]any{"embedding": "x"})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestTableIdent(t *testing.T) {
	got, err := tableIdent(PgVectorTable)
	require.NoError(t, err)
	assert.Equal(t, `"chunk_embeddings"`, got)

	for _, bad := range []string{"", "Chunks", "chunks; drop table x", "1chunks"} {
		_, err := tableIdent(bad)
		assert.ErrorIs(t, err, ErrInvalidQuery, bad)
	}
}

func TestMetaFloat(t *testing.T) {
	assert.Equal(t, sql.NullFloat64{Float64: 1.5, Valid: true}, metaFloat(map[string]any{"s": 1.5}, "s"))
	assert.Equal(t, sql.NullFloat64{Float64: 3, Valid: true}, metaFloat(map[string]any{"s": 3}, "s"))
	assert.False(t, metaFloat(map[string]any{"s": "3"}, "s").Valid)
	assert.False(t, metaFloat(nil, "s").Valid)
}
