package rag_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/chunk"
	"docqa/internal/rag"
	"docqa/internal/storage"
)

func imageChunk(id string, rank int, score float32, paths ...string) rag.ContextChunk {
	c := docChunk(id, rank, score, id+".pdf", "", "text for "+id)
	c.Media = chunk.DocumentMedia{ImagePaths: paths}
	return c
}

func TestRelevantImages_DedupesAndCaps(t *testing.T) {
	used := []rag.ContextChunk{
		imageChunk("a", 1, 0.9, "docs/a/images/one.png", "docs/a/images/two.png"),
		videoChunk("v", 2, 0.8, 0, 10, "clip"),
		imageChunk("b", 3, 0.7, "docs/a/images/one.png", "docs/b/images/three.png"),
	}
	for i := 0; i < 5; i++ {
		used = append(used, imageChunk(fmt.Sprintf("x%d", i), 4+i, 0.5, fmt.Sprintf("docs/x/images/%d.png", i)))
	}

	images := rag.RelevantImages(used)
	require.Len(t, images, 6)
	assert.Equal(t, "docs/a/images/one.png", images[0].Path)
	assert.Equal(t, "one.png", images[0].AltText)
	assert.Equal(t, float32(0.9), images[0].RelevanceScore)
	assert.Equal(t, "docs/b/images/three.png", images[2].Path)
	assert.Equal(t, float32(0.7), images[2].RelevanceScore)
	for i, img := range images {
		assert.Equal(t, i, img.Position)
	}
}

func TestVideoClips_PreviewAndMissingTimes(t *testing.T) {
	c := videoChunk("v", 1, 0.5, 0, 0, strings.Repeat("word ", 100))
	v, _ := c.Video()
	v.StartSeconds = nil
	v.EndSeconds = nil
	c.Media = v

	clips := rag.VideoClips([]rag.ContextChunk{c})
	require.Len(t, clips, 1)
	assert.Empty(t, clips[0].Timestamp)
	assert.Equal(t, v.VideoURL, clips[0].DeepLinkURL, "no start means no fragment")
	assert.LessOrEqual(t, len([]rune(clips[0].Preview)), 200)
}

func TestAnchor_OnlyForTopVideo(t *testing.T) {
	assert.Nil(t, rag.Anchor(nil))
	assert.Nil(t, rag.Anchor([]rag.ContextChunk{
		docChunk("d", 1, 0.9, "d.md", "", "doc"),
		videoChunk("v", 2, 0.8, 5, 10, "clip"),
	}))
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name   string
		scores []float32
		want   float64
	}{
		{"empty", nil, 0},
		{"single", []float32{0.8}, 0.8},
		{"close runner-up", []float32{0.91, 0.78}, 0.793},
		{"above one clamps", []float32{1.4}, 1},
		{"negative clamps", []float32{-0.3}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			used := make([]rag.ContextChunk, len(tt.scores))
			for i, s := range tt.scores {
				used[i] = docChunk(fmt.Sprint(i), i+1, s, "s", "", "t")
			}
			assert.InDelta(t, tt.want, rag.Confidence(used), 1e-9)
		})
	}
}

func TestConfidence_MonotonicInTopScore(t *testing.T) {
	prev := -1.0
	for s := float32(0); s <= 1; s += 0.05 {
		got := rag.Confidence([]rag.ContextChunk{docChunk("a", 1, s, "s", "", "t"), docChunk("b", 2, 0.3, "s", "", "t")})
		assert.GreaterOrEqual(t, got, prev)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
		prev = got
	}
}

func TestEnrich(t *testing.T) {
	t.Run("nil row uses metadata", func(t *testing.T) {
		c := rag.Enrich("a", nil, map[string]any{
			"doc_id": "guide", "section_id": "s1", "section_title": "Intro", "source": "guide.md",
			"text": "body", "image_paths": []any{"docs/guide/images/a.png", 3},
		})
		assert.Equal(t, "guide", c.DocID)
		assert.Equal(t, "Intro", c.SectionTitle())
		assert.Equal(t, "body", c.Text)
		d, ok := c.Document()
		require.True(t, ok)
		assert.Equal(t, []string{"docs/guide/images/a.png"}, d.ImagePaths)
	})

	t.Run("content preferred over text", func(t *testing.T) {
		c := rag.Enrich("a", nil, map[string]any{"content": "from content", "text": "from text"})
		assert.Equal(t, "from content", c.Text)
	})

	t.Run("flat source has no section", func(t *testing.T) {
		c := rag.Enrich("a", &storage.ChunkRow{Text: "t", Source: "s"}, nil)
		assert.Nil(t, c.Section)
		assert.Equal(t, chunk.SourceDocument, c.SourceType())
	})

	t.Run("row images win", func(t *testing.T) {
		c := rag.Enrich("a", &storage.ChunkRow{ImagePaths: []string{"docs/x/images/row.png"}},
			map[string]any{"image_paths": []string{"docs/x/images/meta.png"}})
		d, _ := c.Document()
		assert.Equal(t, []string{"docs/x/images/row.png"}, d.ImagePaths)
	})

	t.Run("video seconds from strings", func(t *testing.T) {
		c := rag.Enrich("v", &storage.ChunkRow{SourceType: "VIDEO", StartSeconds: " 12.5 "}, map[string]any{"end_seconds": "bad"})
		v, ok := c.Video()
		require.True(t, ok)
		assert.Equal(t, 12.5, *v.StartSeconds)
		assert.Nil(t, v.EndSeconds)
	})
}
