package rag

import (
	"path"

	"docqa/internal/chunk"
)

const (
	previewRunes    = 200
	maxRelevantImgs = 6
)

// VideoClips lists every video chunk in rank order.
func VideoClips(used []ContextChunk) []VideoClip {
	clips := []VideoClip{}
	for _, c := range used {
		v, ok := c.Video()
		if !ok {
			continue
		}
		clip := VideoClip{
			ChunkID:      c.ID,
			VideoURL:     v.VideoURL,
			StartSeconds: v.StartSeconds,
			EndSeconds:   v.EndSeconds,
			DeepLinkURL:  chunk.DeepLink(v.VideoURL, v.StartSeconds),
			Preview:      chunk.Preview(c.Text, previewRunes),
			TxtURL:       v.TxtURL,
			SrtURL:       v.SrtURL,
			VttURL:       v.VttURL,
			Rank:         c.Rank,
			Score:        c.Score,
		}
		if v.StartSeconds != nil {
			clip.Timestamp = chunk.FormatTimestamp(*v.StartSeconds)
		}
		if v.EndSeconds != nil {
			clip.EndTimestamp = chunk.FormatTimestamp(*v.EndSeconds)
		}
		clips = append(clips, clip)
	}
	return clips
}

// Anchor points at the top-ranked chunk when it is a video chunk.
func Anchor(used []ContextChunk) *VideoAnchor {
	if len(used) == 0 {
		return nil
	}
	v, ok := used[0].Video()
	if !ok {
		return nil
	}
	a := &VideoAnchor{
		VideoURL:     v.VideoURL,
		StartSeconds: v.StartSeconds,
		EndSeconds:   v.EndSeconds,
	}
	if v.StartSeconds != nil {
		a.Timestamp = chunk.FormatTimestamp(*v.StartSeconds)
	}
	if v.EndSeconds != nil {
		a.EndTimestamp = chunk.FormatTimestamp(*v.EndSeconds)
	}
	return a
}

// RelevantImages collects document images in rank order, deduplicated and capped at six.
func RelevantImages(used []ContextChunk) []ImageReference {
	images := []ImageReference{}
	seen := make(map[string]bool)
	for _, c := range used {
		d, ok := c.Document()
		if !ok {
			continue
		}
		for _, p := range d.ImagePaths {
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			images = append(images, ImageReference{
				Path:           p,
				Position:       len(images),
				AltText:        path.Base(p),
				RelevanceScore: c.Score,
				ContextText:    chunk.Preview(c.Text, previewRunes),
			})
			if len(images) == maxRelevantImgs {
				return images
			}
		}
	}
	return images
}
