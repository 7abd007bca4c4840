package rag

import "docqa/internal/chunk"

// ContextChunk is a retrieved chunk with its position in the result list.
// Rank is 1-based and contiguous; Score is exactly what the index returned.
type ContextChunk struct {
	Rank  int
	Score float32
	chunk.Chunk
}

// Turn is one prior message of a conversation, oldest first.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// VideoClip is a playable excerpt backing an answer.
type VideoClip struct {
	ChunkID      string   `json:"chunk_id"`
	VideoURL     string   `json:"video_url"`
	StartSeconds *float64 `json:"start_seconds"`
	EndSeconds   *float64 `json:"end_seconds"`
	Timestamp    string   `json:"timestamp,omitempty"`
	EndTimestamp string   `json:"end_timestamp,omitempty"`
	DeepLinkURL  string   `json:"deep_link_url,omitempty"`
	Preview      string   `json:"preview"`
	TxtURL       string   `json:"txt_url,omitempty"`
	SrtURL       string   `json:"srt_url,omitempty"`
	VttURL       string   `json:"vtt_url,omitempty"`
	Rank         int      `json:"rank"`
	Score        float32  `json:"score"`
}

// ImageReference is a document image relevant to an answer.
type ImageReference struct {
	Path           string  `json:"path"`
	Position       int     `json:"position"`
	AltText        string  `json:"alt_text"`
	RelevanceScore float32 `json:"relevance_score"`
	ContextText    string  `json:"context_text"`
}

// VideoAnchor points the player at the best-ranked video chunk.
type VideoAnchor struct {
	VideoURL     string   `json:"answer_video_url"`
	StartSeconds *float64 `json:"answer_start_seconds"`
	EndSeconds   *float64 `json:"answer_end_seconds"`
	Timestamp    string   `json:"answer_timestamp,omitempty"`
	EndTimestamp string   `json:"answer_end_timestamp,omitempty"`
}

// Answer is the generator's output. ContextUsed is always a prefix of the retrieved list.
type Answer struct {
	Text           string
	HTML           string
	Confidence     float64
	ContextUsed    []ContextChunk
	VideoContext   []VideoClip
	RelevantImages []ImageReference
	Anchor         *VideoAnchor
}
