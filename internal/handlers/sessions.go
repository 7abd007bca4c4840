package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"docqa/internal/contextutil"
	"docqa/internal/service"
)

// SessionHandler serves the authenticated conversation endpoints.
type SessionHandler struct {
	conversations service.ConversationService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(conversations service.ConversationService) *SessionHandler {
	return &SessionHandler{conversations: conversations}
}

// List handles GET /api/chat/sessions.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessions, err := h.conversations.ListSessions(ctx, userID(r))
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to list sessions")
		return
	}
	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionResponse(s))
	}
	writeJSON(ctx, w, http.StatusOK, out)
}

// Create handles POST /api/chat/sessions. The body is optional.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateSessionRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			contextutil.LoggerFromContext(ctx).WarnContext(ctx, "invalid request body", "error", err)
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	session, err := h.conversations.CreateSession(ctx, userID(r), req.Title)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to create session")
		return
	}
	writeJSON(ctx, w, http.StatusCreated, toSessionResponse(*session))
}

// Get handles GET /api/chat/sessions/{id}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, messages, err := h.conversations.GetHistory(ctx, userID(r), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to load session")
		return
	}
	out := SessionHistoryResponse{
		Session:  toSessionResponse(*session),
		Messages: make([]MessageResponse, 0, len(messages)),
	}
	for _, m := range messages {
		out.Messages = append(out.Messages, toMessageResponse(m))
	}
	writeJSON(ctx, w, http.StatusOK, out)
}

// Rename handles PATCH /api/chat/sessions/{id}.
func (h *SessionHandler) Rename(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.conversations.RenameSession(ctx, userID(r), chi.URLParam(r, "id"), req.Title)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to rename session")
		return
	}
	writeJSON(ctx, w, http.StatusOK, toSessionResponse(*session))
}

// SendMessage handles POST /api/chat/message.
//
// swagger:route POST /api/chat/message conversations sendMessage
//
// # Send a conversational message
//
// Answers the message using the session's recent history and stores both turns.
//
// ---
// consumes:
// - application/json
// produces:
// - application/json
// security:
// - bearer: []
// responses:
//
//	'200':
//	  schema:
//	    "$ref": "#/definitions/SendMessageResponse"
//	'401':
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'404':
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *SessionHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	reply, err := h.conversations.SendMessage(ctx, userID(r), req.SessionID, req.Content)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusBadGateway || status == http.StatusServiceUnavailable {
			// The pipeline failed after the user turn was stored; report it in the envelope.
			writeJSON(ctx, w, status, toAskResponse(req.Content, false, err.Error(), reply.Answer))
			return
		}
		handleServiceError(ctx, w, err, "Failed to send message")
		return
	}

	writeJSON(ctx, w, http.StatusOK, SendMessageResponse{
		Message:     toMessageResponse(reply.Message),
		AskResponse: toAskResponse(req.Content, true, "", reply.Answer),
	})
}

// Feedback handles POST /api/chat/feedback.
func (h *SessionHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req FeedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.conversations.SubmitFeedback(ctx, userID(r), req.MessageID, req.Rating); err != nil {
		handleServiceError(ctx, w, err, "Failed to save feedback")
		return
	}
	writeJSON(ctx, w, http.StatusOK, SuccessResponse{Success: true})
}

// userID returns the authenticated user or "" when the request carries none;
// the service rejects "" with ErrForbidden.
func userID(r *http.Request) string {
	id, _ := contextutil.UserIDFromContext(r.Context())
	return id
}
