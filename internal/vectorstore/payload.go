package vectorstore

import (
	"fmt"

	"docqa/internal/chunk"
)

// Payload keys written alongside every embedding.
const (
	KeyChunkID      = "chunk_id"
	KeyDocID        = "doc_id"
	KeySectionID    = "section_id"
	KeySectionTitle = "section_title"
	KeySource       = "source"
	KeySourceType   = "source_type"
	KeyStartSeconds = "start_seconds"
	KeyEndSeconds   = "end_seconds"
	KeyVideoURL     = "video_url"
)

// ChunkMetadata builds the minimal payload stored with a chunk's embedding.
// It is enough for retrieval to degrade to index-only data when the row store is unavailable.
func ChunkMetadata(c chunk.Chunk) map[string]any {
	meta := map[string]any{
		KeyChunkID:    c.ID,
		KeyDocID:      c.DocID,
		KeySource:     c.Source,
		KeySourceType: string(c.SourceType()),
	}
	if id := c.SectionID(); id != "" {
		meta[KeySectionID] = id
	}
	if title := c.SectionTitle(); title != "" {
		meta[KeySectionTitle] = title
	}
	if v, ok := c.Video(); ok {
		if v.StartSeconds != nil {
			meta[KeyStartSeconds] = *v.StartSeconds
		}
		if v.EndSeconds != nil {
			meta[KeyEndSeconds] = *v.EndSeconds
		}
		if v.VideoURL != "" {
			meta[KeyVideoURL] = v.VideoURL
		}
	}
	return meta
}

// filterValue normalizes an exact-match filter value to string, int64 or bool.
func filterValue(key string, v any) (any, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case chunk.SourceType:
		return string(val), nil
	case bool:
		return val, nil
	case int:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case int64:
		return val, nil
	default:
		return nil, fmt.Errorf("%w: unsupported filter value for %q: %T", ErrInvalidQuery, key, v)
	}
}
