package rag

import (
	"docqa/internal/chunk"
	"docqa/internal/storage"
	"docqa/internal/vectorstore"
)

// Enrich builds a chunk from its row-store row and index metadata, field by field:
// the row value wins, then the metadata value, then the default. row may be nil.
func Enrich(id string, row *storage.ChunkRow, meta map[string]any) chunk.Chunk {
	if row == nil {
		row = &storage.ChunkRow{}
	}
	str := func(key string) string { return chunk.StringValue(meta[key]) }

	c := chunk.Chunk{
		ID:    id,
		DocID: chunk.FirstString(row.DocID, str(vectorstore.KeyDocID)),
		Section: chunk.NewSection(
			chunk.FirstString(row.SectionID, str(vectorstore.KeySectionID)),
			chunk.FirstString(row.SectionTitle, str(vectorstore.KeySectionTitle)),
			chunk.FirstString(row.SectionPath, str("section_path")),
		),
		Text:   chunk.FirstString(row.Text, str("content"), str("text")),
		Source: chunk.FirstString(row.Source, str(vectorstore.KeySource)),
	}

	sourceType := chunk.ParseSourceType(chunk.FirstString(row.SourceType, str(vectorstore.KeySourceType)))
	if sourceType == chunk.SourceVideo {
		c.Media = chunk.VideoMedia{
			StartSeconds: chunk.FirstSeconds(row.StartSeconds, meta[vectorstore.KeyStartSeconds]),
			EndSeconds:   chunk.FirstSeconds(row.EndSeconds, meta[vectorstore.KeyEndSeconds]),
			VideoURL:     chunk.FirstString(row.VideoURL, str(vectorstore.KeyVideoURL)),
			TxtURL:       chunk.FirstString(row.TxtURL, str("txt_url")),
			SrtURL:       chunk.FirstString(row.SrtURL, str("srt_url")),
			VttURL:       chunk.FirstString(row.VttURL, str("vtt_url")),
		}
		return c
	}

	images := row.ImagePaths
	if len(images) == 0 {
		images = chunk.StringSlice(meta["image_paths"])
	}
	c.Media = chunk.DocumentMedia{ImagePaths: images}
	return c
}
