package handlers

import (
	"time"

	"docqa/internal/chunk"
	"docqa/internal/rag"
	"docqa/internal/service"
	"docqa/internal/storage"
)

// HTTP DTOs are defined here so the service types carry no wire tags of their own.

// SearchRequest represents the request payload for search.
//
// swagger:model SearchRequest
type SearchRequest struct {
	// Search query
	// required: true
	Query string `json:"query"`

	// Number of chunks to return; omitted means the server default
	TopK *int `json:"top_k,omitempty"`
}

// SearchResult is one retrieved chunk.
//
// swagger:model SearchResult
type SearchResult struct {
	Rank         int      `json:"rank"`
	Score        float32  `json:"score"`
	Text         string   `json:"text"`
	Source       string   `json:"source"`
	SourceType   string   `json:"source_type"`
	ChunkID      string   `json:"chunk_id"`
	DocID        string   `json:"doc_id,omitempty"`
	SectionID    string   `json:"section_id,omitempty"`
	SectionPath  string   `json:"section_path,omitempty"`
	SectionTitle string   `json:"section_title,omitempty"`
	ImagePaths   []string `json:"image_paths,omitempty"`
	StartSeconds *float64 `json:"start_seconds,omitempty"`
	EndSeconds   *float64 `json:"end_seconds,omitempty"`
	VideoURL     string   `json:"video_url,omitempty"`
	TxtURL       string   `json:"txt_url,omitempty"`
	SrtURL       string   `json:"srt_url,omitempty"`
	VttURL       string   `json:"vtt_url,omitempty"`
}

// SearchResponse represents the response payload for search.
//
// swagger:model SearchResponse
type SearchResponse struct {
	Success      bool           `json:"success"`
	Error        string         `json:"error,omitempty"`
	Query        string         `json:"query"`
	Results      []SearchResult `json:"results"`
	TotalResults int            `json:"total_results"`
}

// AskRequest represents the request payload for ask and ask/video.
//
// swagger:model AskRequest
type AskRequest struct {
	// Question to answer
	// required: true
	Question string `json:"question"`

	// Number of chunks to retrieve; omitted means the server default
	TopK *int `json:"top_k,omitempty"`

	// Prior turns, oldest first
	ConversationHistory []rag.Turn `json:"conversation_history,omitempty"`
}

// AskResponse represents the response payload for ask and ask/video.
//
// swagger:model AskResponse
type AskResponse struct {
	Success        bool                 `json:"success"`
	Error          string               `json:"error,omitempty"`
	Question       string               `json:"question"`
	Answer         string               `json:"answer"`
	AnswerHTML     string               `json:"answer_html"`
	Confidence     float64              `json:"confidence"`
	ContextUsed    []SearchResult       `json:"context_used"`
	VideoContext   []rag.VideoClip      `json:"video_context"`
	RelevantImages []rag.ImageReference `json:"relevant_images"`
	*rag.VideoAnchor
}

// RecommendationRequest represents the request payload for recommendations.
//
// swagger:model RecommendationRequest
type RecommendationRequest struct {
	// Topic to recommend content for
	// required: true
	Query string `json:"query"`

	// "all" (default), "document" or "video"
	ContentType string `json:"content_type,omitempty"`
}

// RecommendationItem is one recommended document or video.
type RecommendationItem struct {
	DocID        string   `json:"doc_id,omitempty"`
	Title        string   `json:"title"`
	Source       string   `json:"source"`
	SourceType   string   `json:"source_type"`
	Score        float32  `json:"score"`
	Snippet      string   `json:"snippet"`
	ChunkID      string   `json:"chunk_id"`
	VideoURL     string   `json:"video_url,omitempty"`
	StartSeconds *float64 `json:"start_seconds,omitempty"`
	Timestamp    string   `json:"timestamp,omitempty"`
	ImagePath    string   `json:"image_path,omitempty"`
}

// RecommendationResponse represents the response payload for recommendations.
//
// swagger:model RecommendationResponse
type RecommendationResponse struct {
	Success         bool                 `json:"success"`
	Error           string               `json:"error,omitempty"`
	Query           string               `json:"query"`
	Recommendations []RecommendationItem `json:"recommendations"`
	TotalItems      int                  `json:"total_items"`
}

// SessionResponse is a chat session.
type SessionResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageResponse is one message of a session.
type MessageResponse struct {
	ID         string             `json:"id"`
	Role       string             `json:"role"`
	Content    string             `json:"content"`
	Citations  []service.Citation `json:"citations"`
	Confidence *float64           `json:"confidence,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

// SessionHistoryResponse is a session with its messages, oldest first.
type SessionHistoryResponse struct {
	Session  SessionResponse   `json:"session"`
	Messages []MessageResponse `json:"messages"`
}

// CreateSessionRequest represents the request payload for creating or renaming a session.
type CreateSessionRequest struct {
	Title string `json:"title"`
}

// SendMessageRequest represents the request payload for a conversational message.
type SendMessageRequest struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

// SendMessageResponse is the assistant turn with its answer details.
type SendMessageResponse struct {
	Message MessageResponse `json:"message"`
	AskResponse
}

// FeedbackRequest rates an assistant message with +1 or -1.
type FeedbackRequest struct {
	MessageID string `json:"message_id"`
	SessionID string `json:"session_id,omitempty"`
	Rating    int    `json:"rating"`
}

// SuccessResponse acknowledges a write without a body.
type SuccessResponse struct {
	Success bool `json:"success"`
}

func toSearchResult(c rag.ContextChunk) SearchResult {
	out := SearchResult{
		Rank:         c.Rank,
		Score:        c.Score,
		Text:         c.Text,
		Source:       c.Source,
		SourceType:   string(c.SourceType()),
		ChunkID:      c.ID,
		DocID:        c.DocID,
		SectionID:    c.SectionID(),
		SectionPath:  c.SectionPath(),
		SectionTitle: c.SectionTitle(),
	}
	if v, ok := c.Video(); ok {
		out.StartSeconds = v.StartSeconds
		out.EndSeconds = v.EndSeconds
		out.VideoURL = v.VideoURL
		out.TxtURL = v.TxtURL
		out.SrtURL = v.SrtURL
		out.VttURL = v.VttURL
	}
	if d, ok := c.Document(); ok {
		out.ImagePaths = d.ImagePaths
	}
	return out
}

func toSearchResults(chunks []rag.ContextChunk) []SearchResult {
	out := make([]SearchResult, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, toSearchResult(c))
	}
	return out
}

func toSearchResponse(resp service.SearchResponse) SearchResponse {
	return SearchResponse{
		Success:      resp.Success,
		Error:        resp.Error,
		Query:        resp.Query,
		Results:      toSearchResults(resp.Results),
		TotalResults: resp.TotalResults,
	}
}

func toAskResponse(question string, success bool, errMsg string, answer rag.Answer) AskResponse {
	out := AskResponse{
		Success:        success,
		Error:          errMsg,
		Question:       question,
		Answer:         answer.Text,
		AnswerHTML:     answer.HTML,
		Confidence:     answer.Confidence,
		ContextUsed:    toSearchResults(answer.ContextUsed),
		VideoContext:   answer.VideoContext,
		RelevantImages: answer.RelevantImages,
		VideoAnchor:    answer.Anchor,
	}
	if out.VideoContext == nil {
		out.VideoContext = []rag.VideoClip{}
	}
	if out.RelevantImages == nil {
		out.RelevantImages = []rag.ImageReference{}
	}
	return out
}

func toRecommendationResponse(resp service.RecommendationResponse) RecommendationResponse {
	items := make([]RecommendationItem, 0, len(resp.Recommendations))
	for _, r := range resp.Recommendations {
		items = append(items, RecommendationItem{
			DocID:        r.DocID,
			Title:        r.Title,
			Source:       r.Source,
			SourceType:   string(r.SourceType),
			Score:        r.Score,
			Snippet:      r.Snippet,
			ChunkID:      r.ChunkID,
			VideoURL:     r.VideoURL,
			StartSeconds: r.StartSeconds,
			Timestamp:    r.Timestamp,
			ImagePath:    r.ImagePath,
		})
	}
	return RecommendationResponse{
		Success:         resp.Success,
		Error:           resp.Error,
		Query:           resp.Query,
		Recommendations: items,
		TotalItems:      resp.TotalItems,
	}
}

func toSessionResponse(s storage.Session) SessionResponse {
	return SessionResponse{ID: s.ID, Title: s.Title, CreatedAt: s.CreatedAt}
}

// toMessageResponse decodes the stored metadata. Unreadable metadata yields no citations.
func toMessageResponse(m storage.Message) MessageResponse {
	out := MessageResponse{
		ID:        m.ID,
		Role:      m.Role,
		Content:   m.Content,
		Citations: []service.Citation{},
		CreatedAt: m.CreatedAt,
	}
	if meta, ok := service.DecodeMetadata(m.Metadata); ok {
		if meta.Citations != nil {
			out.Citations = meta.Citations
		}
		confidence := meta.Confidence
		out.Confidence = &confidence
	}
	return out
}

// ChunkInput is one pre-chunked item to ingest. Time fields accept seconds, "SS", "MM:SS" or "HH:MM:SS".
//
// swagger:model ChunkInput
type ChunkInput struct {
	ChunkID      string   `json:"chunk_id"`
	DocID        string   `json:"doc_id"`
	SectionID    string   `json:"section_id,omitempty"`
	SectionTitle string   `json:"section_title,omitempty"`
	SectionPath  string   `json:"section_path,omitempty"`
	Text         string   `json:"text"`
	Source       string   `json:"source"`
	SourceType   string   `json:"source_type,omitempty"`
	ImagePaths   []string `json:"image_paths,omitempty"`
	StartSeconds any      `json:"start_seconds,omitempty"`
	EndSeconds   any      `json:"end_seconds,omitempty"`
	VideoURL     string   `json:"video_url,omitempty"`
	TxtURL       string   `json:"txt_url,omitempty"`
	SrtURL       string   `json:"srt_url,omitempty"`
	VttURL       string   `json:"vtt_url,omitempty"`
}

// IngestRequest represents the request payload for chunk ingestion.
//
// swagger:model IngestRequest
type IngestRequest struct {
	Chunks []ChunkInput `json:"chunks"`
}

// TextStatsResponse summarizes chunk text lengths in runes.
type TextStatsResponse struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
	P95  int     `json:"p95"`
}

// IngestResponse reports the two-phase ingestion outcome.
//
// swagger:model IngestResponse
type IngestResponse struct {
	Indexed      bool              `json:"indexed"`
	Persisted    bool              `json:"persisted"`
	ChunkCount   int               `json:"chunk_count"`
	PersistError string            `json:"persist_error,omitempty"`
	Stats        TextStatsResponse `json:"stats"`
}

func (in ChunkInput) toChunk() chunk.Chunk {
	c := chunk.Chunk{
		ID:      in.ChunkID,
		DocID:   in.DocID,
		Section: chunk.NewSection(in.SectionID, in.SectionTitle, in.SectionPath),
		Text:    in.Text,
		Source:  in.Source,
	}
	if chunk.ParseSourceType(in.SourceType) == chunk.SourceVideo {
		c.Media = chunk.VideoMedia{
			StartSeconds: chunk.ToSeconds(in.StartSeconds),
			EndSeconds:   chunk.ToSeconds(in.EndSeconds),
			VideoURL:     in.VideoURL,
			TxtURL:       in.TxtURL,
			SrtURL:       in.SrtURL,
			VttURL:       in.VttURL,
		}
	} else {
		c.Media = chunk.DocumentMedia{ImagePaths: in.ImagePaths}
	}
	return c
}
