package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_rag.go -package=mocks docqa/internal/service Retriever,Generator
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chat_service.go -package=mocks -mock_names=ChatService=MockChatService docqa/internal/service ChatService

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"docqa/internal/chunk"
	"docqa/internal/contextutil"
	"docqa/internal/rag"
	"docqa/internal/vectorstore"
)

// NoVideoAnswer is returned by AskVideo when no video chunk matches.
const NoVideoAnswer = "No relevant video content was found for this question."

const snippetRunes = 200

var tracer = otel.Tracer("docqa/service")

// Retriever is the retrieval stage as the service sees it.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int, filter map[string]any) ([]rag.ContextChunk, error)
}

// Generator is the generation stage as the service sees it.
type Generator interface {
	Generate(ctx context.Context, question string, retrieved []rag.ContextChunk, history []rag.Turn) (rag.Answer, error)
}

// Recorder receives one observation per service operation. Outcome is "ok" or an error class.
type Recorder interface {
	RecordRequest(ctx context.Context, operation, outcome string, elapsed time.Duration)
}

// Envelope reports whether an operation succeeded. Error carries the cause when it did not.
type Envelope struct {
	Success bool
	Error   string
}

// SearchRequest asks for ranked chunks without generation. A nil TopK means the default.
type SearchRequest struct {
	Query string
	TopK  *int
}

// SearchResponse lists retrieved chunks in rank order.
type SearchResponse struct {
	Envelope
	Query        string
	Results      []rag.ContextChunk
	TotalResults int
}

// AskRequest is a question with optional prior turns, oldest first.
type AskRequest struct {
	Question            string
	TopK                *int
	ConversationHistory []rag.Turn
}

// AskResponse carries the generated answer. On generation failure Answer.ContextUsed is still set.
type AskResponse struct {
	Envelope
	Question string
	Answer   rag.Answer
}

// RecommendationRequest asks for content about a topic. ContentType is "", "all", "document" or "video".
type RecommendationRequest struct {
	Query       string
	ContentType string
}

// Recommendation is the best-ranked chunk of one document.
type Recommendation struct {
	DocID        string
	Title        string
	Source       string
	SourceType   chunk.SourceType
	Score        float32
	Snippet      string
	ChunkID      string
	VideoURL     string
	StartSeconds *float64
	Timestamp    string
	ImagePath    string
}

// RecommendationResponse lists recommended items in rank order.
type RecommendationResponse struct {
	Envelope
	Query           string
	Recommendations []Recommendation
	TotalItems      int
}

// ChatService answers questions over the indexed documents and videos.
type ChatService interface {
	// Search retrieves ranked chunks without calling the LLM.
	Search(ctx context.Context, req SearchRequest) (SearchResponse, error)
	// Ask answers a question from chunks of any source type.
	Ask(ctx context.Context, req AskRequest) (AskResponse, error)
	// AskVideo answers a question from video transcript chunks only.
	AskVideo(ctx context.Context, req AskRequest) (AskResponse, error)
	// Recommend returns one item per matching document.
	Recommend(ctx context.Context, req RecommendationRequest) (RecommendationResponse, error)
}

// ChatConfig holds the search limits.
type ChatConfig struct {
	DefaultTopK         int
	MaxTopK             int
	RecommendationLimit int
}

// chatService implements ChatService.
type chatService struct {
	retriever Retriever
	generator Generator
	recorder  Recorder
	cfg       ChatConfig
}

// NewChatService creates a new ChatService. recorder may be nil.
func NewChatService(retriever Retriever, generator Generator, recorder Recorder, cfg ChatConfig) ChatService {
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = 20
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}
	if cfg.DefaultTopK > cfg.MaxTopK {
		cfg.DefaultTopK = cfg.MaxTopK
	}
	if cfg.RecommendationLimit <= 0 {
		cfg.RecommendationLimit = 5
	}
	return &chatService{
		retriever: retriever,
		generator: generator,
		recorder:  recorder,
		cfg:       cfg,
	}
}

// Search retrieves chunks for a query.
func (s *chatService) Search(ctx context.Context, req SearchRequest) (resp SearchResponse, err error) {
	ctx, done := s.begin(ctx, "search")
	defer func() { done(err) }()
	logger := contextutil.LoggerFromContext(ctx)

	resp.Query = req.Query
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return s.failSearch(resp, &ValidationError{Field: "query", Message: "cannot be empty"})
	}
	topK, err := s.resolveTopK(req.TopK)
	if err != nil {
		return s.failSearch(resp, err)
	}

	results, err := s.retriever.Retrieve(ctx, query, topK, nil)
	if err != nil {
		logger.ErrorContext(ctx, "search failed", "query", query, "error", err)
		return s.failSearch(resp, err)
	}

	resp.Success = true
	resp.Results = results
	resp.TotalResults = len(results)
	logger.InfoContext(ctx, "search completed", "top_k", topK, "results", len(results))
	return resp, nil
}

func (s *chatService) failSearch(resp SearchResponse, err error) (SearchResponse, error) {
	resp.Success = false
	resp.Error = err.Error()
	resp.Results = []rag.ContextChunk{}
	return resp, err
}

// Ask answers a question using chunks of any source type.
func (s *chatService) Ask(ctx context.Context, req AskRequest) (resp AskResponse, err error) {
	ctx, done := s.begin(ctx, "ask")
	defer func() { done(err) }()

	return s.answer(ctx, req, nil)
}

// AskVideo answers a question using video transcript chunks only.
func (s *chatService) AskVideo(ctx context.Context, req AskRequest) (resp AskResponse, err error) {
	ctx, done := s.begin(ctx, "ask_video")
	defer func() { done(err) }()

	filter := map[string]any{vectorstore.KeySourceType: string(chunk.SourceVideo)}
	return s.answer(ctx, req, filter)
}

// answer runs retrieve then generate. A non-nil filter means video-only.
func (s *chatService) answer(ctx context.Context, req AskRequest, filter map[string]any) (AskResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)
	resp := AskResponse{Question: req.Question}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return failAsk(resp, &ValidationError{Field: "question", Message: "cannot be empty"})
	}
	topK, err := s.resolveTopK(req.TopK)
	if err != nil {
		return failAsk(resp, err)
	}

	retrieved, err := s.retriever.Retrieve(ctx, question, topK, filter)
	if err != nil {
		logger.ErrorContext(ctx, "retrieval failed", "question", question, "error", err)
		return failAsk(resp, err)
	}

	if filter != nil {
		retrieved = videoOnly(ctx, retrieved)
		if len(retrieved) == 0 {
			logger.InfoContext(ctx, "no video content matched", "question", question)
			resp.Success = true
			resp.Answer = emptyAnswer(NoVideoAnswer)
			return resp, nil
		}
	}

	answer, err := s.generator.Generate(ctx, question, retrieved, req.ConversationHistory)
	resp.Answer = answer
	if resp.Answer.ContextUsed == nil {
		resp.Answer.ContextUsed = []rag.ContextChunk{}
	}
	if err != nil {
		logger.ErrorContext(ctx, "generation failed", "question", question, "context_used", len(answer.ContextUsed), "error", err)
		return failAsk(resp, err)
	}

	resp.Success = true
	logger.InfoContext(ctx, "question answered",
		"retrieved", len(retrieved),
		"context_used", len(answer.ContextUsed),
		"confidence", answer.Confidence,
	)
	return resp, nil
}

func failAsk(resp AskResponse, err error) (AskResponse, error) {
	resp.Success = false
	resp.Error = err.Error()
	if resp.Answer.ContextUsed == nil {
		resp.Answer.ContextUsed = []rag.ContextChunk{}
	}
	return resp, err
}

func emptyAnswer(text string) rag.Answer {
	html, _ := rag.RenderHTML(text)
	return rag.Answer{
		Text:           text,
		HTML:           html,
		ContextUsed:    []rag.ContextChunk{},
		VideoContext:   []rag.VideoClip{},
		RelevantImages: []rag.ImageReference{},
	}
}

// videoOnly drops chunks whose coalesced source type is not video and renumbers ranks.
func videoOnly(ctx context.Context, retrieved []rag.ContextChunk) []rag.ContextChunk {
	out := make([]rag.ContextChunk, 0, len(retrieved))
	for _, c := range retrieved {
		if c.SourceType() != chunk.SourceVideo {
			continue
		}
		c.Rank = len(out) + 1
		out = append(out, c)
	}
	if dropped := len(retrieved) - len(out); dropped > 0 {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "dropped non-video chunks from video query", "dropped", dropped)
	}
	return out
}

// Recommend returns the best chunk of each matching document.
func (s *chatService) Recommend(ctx context.Context, req RecommendationRequest) (resp RecommendationResponse, err error) {
	ctx, done := s.begin(ctx, "recommend")
	defer func() { done(err) }()
	logger := contextutil.LoggerFromContext(ctx)

	resp.Query = req.Query
	topic := strings.TrimSpace(req.Query)
	if topic == "" {
		return failRecommend(resp, &ValidationError{Field: "query", Message: "cannot be empty"})
	}

	var filter map[string]any
	query := topic
	switch contentType := strings.ToLower(strings.TrimSpace(req.ContentType)); contentType {
	case "", "all":
	case string(chunk.SourceDocument), string(chunk.SourceVideo):
		filter = map[string]any{vectorstore.KeySourceType: contentType}
		query = contentType + " " + topic
	default:
		return failRecommend(resp, &ValidationError{Field: "content_type", Message: fmt.Sprintf("unsupported value %q", req.ContentType)})
	}

	fetch := min(3*s.cfg.RecommendationLimit, s.cfg.MaxTopK)
	retrieved, err := s.retriever.Retrieve(ctx, query, fetch, filter)
	if err != nil {
		logger.ErrorContext(ctx, "recommendation retrieval failed", "query", query, "error", err)
		return failRecommend(resp, err)
	}

	items := groupByDocument(retrieved, s.cfg.RecommendationLimit)
	resp.Success = true
	resp.Recommendations = items
	resp.TotalItems = len(items)
	logger.InfoContext(ctx, "recommendations built", "retrieved", len(retrieved), "items", len(items))
	return resp, nil
}

func failRecommend(resp RecommendationResponse, err error) (RecommendationResponse, error) {
	resp.Success = false
	resp.Error = err.Error()
	resp.Recommendations = []Recommendation{}
	return resp, err
}

// groupByDocument keeps the first (best-ranked) chunk per document, in rank order, up to limit.
// Chunks without a doc id are grouped by source, then by chunk id.
func groupByDocument(retrieved []rag.ContextChunk, limit int) []Recommendation {
	items := []Recommendation{}
	seen := make(map[string]bool)
	for _, c := range retrieved {
		key := chunk.FirstString(c.DocID, c.Source, c.ID)
		if seen[key] {
			continue
		}
		seen[key] = true
		items = append(items, recommendationFrom(c))
		if len(items) == limit {
			break
		}
	}
	return items
}

func recommendationFrom(c rag.ContextChunk) Recommendation {
	item := Recommendation{
		DocID:      c.DocID,
		Title:      chunk.FirstString(c.SectionTitle(), c.Source),
		Source:     c.Source,
		SourceType: c.SourceType(),
		Score:      c.Score,
		Snippet:    chunk.Preview(c.Text, snippetRunes),
		ChunkID:    c.ID,
	}
	if v, ok := c.Video(); ok {
		item.VideoURL = v.VideoURL
		item.StartSeconds = v.StartSeconds
		if v.StartSeconds != nil {
			item.Timestamp = chunk.FormatTimestamp(*v.StartSeconds)
		}
	}
	if d, ok := c.Document(); ok && len(d.ImagePaths) > 0 {
		item.ImagePath = d.ImagePaths[0]
	}
	return item
}

// resolveTopK applies the default and clamps to the maximum. Negative values are invalid.
func (s *chatService) resolveTopK(topK *int) (int, error) {
	if topK == nil {
		return s.cfg.DefaultTopK, nil
	}
	if *topK < 0 {
		return 0, &ValidationError{Field: "top_k", Message: "must not be negative"}
	}
	return min(*topK, s.cfg.MaxTopK), nil
}

// begin opens the operation span and returns a func that ends it and records the outcome.
func (s *chatService) begin(ctx context.Context, operation string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "service."+operation, trace.WithAttributes(attribute.String("operation", operation)))
	return ctx, func(err error) {
		outcome := Outcome(err)
		span.SetAttributes(attribute.String("outcome", outcome))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
		if s.recorder != nil {
			s.recorder.RecordRequest(ctx, operation, outcome, time.Since(start))
		}
	}
}

// Outcome names the class of err for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidInput), errors.Is(err, rag.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, rag.ErrRetrieval):
		return "retrieval_error"
	case errors.Is(err, rag.ErrGeneration):
		return "generation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	default:
		return "error"
	}
}
