package handlers

import (
	"context"
	"net/http"

	"docqa/internal/contextutil"
	"docqa/internal/rag"
	"docqa/internal/service"
)

// ChatHandler serves the stateless retrieval and question-answering endpoints.
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Search handles POST /api/chat/search.
//
// swagger:route POST /api/chat/search chat search
//
// # Semantic search
//
// Returns ranked chunks for a query without calling the LLM.
//
// ---
// consumes:
// - application/json
// produces:
// - application/json
// responses:
//
//	'200':
//	  schema:
//	    "$ref": "#/definitions/SearchResponse"
//	'400':
//	  schema:
//	    "$ref": "#/definitions/SearchResponse"
//	'503':
//	  schema:
//	    "$ref": "#/definitions/SearchResponse"
func (h *ChatHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SearchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "invalid request body", "error", err)
		writeJSON(ctx, w, http.StatusBadRequest, SearchResponse{Error: "Invalid request body", Results: []SearchResult{}})
		return
	}

	resp, err := h.chatService.Search(ctx, service.SearchRequest{Query: req.Query, TopK: req.TopK})
	writeJSON(ctx, w, statusFor(err), toSearchResponse(resp))
}

// Ask handles POST /api/chat/ask.
//
// swagger:route POST /api/chat/ask chat ask
//
// # Ask a question
//
// Answers a question from the indexed documents and videos.
// On generation failure context_used still lists the chunks that were sent.
//
// ---
// consumes:
// - application/json
// produces:
// - application/json
// responses:
//
//	'200':
//	  schema:
//	    "$ref": "#/definitions/AskResponse"
//	'400':
//	  schema:
//	    "$ref": "#/definitions/AskResponse"
//	'502':
//	  schema:
//	    "$ref": "#/definitions/AskResponse"
//	'503':
//	  schema:
//	    "$ref": "#/definitions/AskResponse"
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, h.chatService.Ask)
}

// AskVideo handles POST /api/chat/ask/video. Only video transcript chunks are used.
//
// swagger:route POST /api/chat/ask/video chat askVideo
//
// # Ask a question about videos
//
// ---
// consumes:
// - application/json
// produces:
// - application/json
// responses:
//
//	'200':
//	  schema:
//	    "$ref": "#/definitions/AskResponse"
func (h *ChatHandler) AskVideo(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, h.chatService.AskVideo)
}

type askFunc func(ctx context.Context, req service.AskRequest) (service.AskResponse, error)

func (h *ChatHandler) ask(w http.ResponseWriter, r *http.Request, fn askFunc) {
	ctx := r.Context()

	var req AskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "invalid request body", "error", err)
		resp := toAskResponse(req.Question, false, "Invalid request body", rag.Answer{})
		writeJSON(ctx, w, http.StatusBadRequest, resp)
		return
	}

	resp, err := fn(ctx, service.AskRequest{
		Question:            req.Question,
		TopK:                req.TopK,
		ConversationHistory: req.ConversationHistory,
	})
	writeJSON(ctx, w, statusFor(err), toAskResponse(resp.Question, resp.Success, resp.Error, resp.Answer))
}

// Recommend handles POST /api/chat/recommendations.
//
// swagger:route POST /api/chat/recommendations chat recommendations
//
// # Recommend content
//
// Returns one item per matching document or video, best first.
//
// ---
// consumes:
// - application/json
// produces:
// - application/json
// responses:
//
//	'200':
//	  schema:
//	    "$ref": "#/definitions/RecommendationResponse"
func (h *ChatHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RecommendationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "invalid request body", "error", err)
		writeJSON(ctx, w, http.StatusBadRequest, RecommendationResponse{Error: "Invalid request body", Recommendations: []RecommendationItem{}})
		return
	}

	resp, err := h.chatService.Recommend(ctx, service.RecommendationRequest{Query: req.Query, ContentType: req.ContentType})
	writeJSON(ctx, w, statusFor(err), toRecommendationResponse(resp))
}
