package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/mock/gomock"

	"docqa/internal/contextutil"
	"docqa/internal/rag"
	"docqa/internal/service"
	"docqa/internal/service/mocks"
	"docqa/internal/storage"
)

// withUser attaches a user id and, when id is set, the chi {id} route parameter.
func withUser(req *http.Request, userID, id string) *http.Request {
	ctx := req.Context()
	if userID != "" {
		ctx = contextutil.WithUserID(ctx, userID)
	}
	if id != "" {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", id)
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

func TestSessionHandler_Sessions(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("create without body", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockConversationService(ctrl)
		svc.EXPECT().CreateSession(gomock.Any(), "u1", "").
			Return(&storage.Session{ID: "s1", UserID: "u1", Title: service.DefaultSessionTitle, CreatedAt: created}, nil)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/chat/sessions", http.NoBody)
		NewSessionHandler(svc).Create(rec, withUser(req, "u1", ""))

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		if got := decodeBody[SessionResponse](t, rec); got.ID != "s1" || got.Title != "New Chat" {
			t.Errorf("session = %+v", got)
		}
	})

	t.Run("list without user", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockConversationService(ctrl)
		svc.EXPECT().ListSessions(gomock.Any(), "").Return(nil, service.ErrForbidden)

		rec := httptest.NewRecorder()
		NewSessionHandler(svc).List(rec, httptest.NewRequest(http.MethodGet, "/api/chat/sessions", nil))

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("list returns empty array", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockConversationService(ctrl)
		svc.EXPECT().ListSessions(gomock.Any(), "u1").Return(nil, nil)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/chat/sessions", nil)
		NewSessionHandler(svc).List(rec, withUser(req, "u1", ""))

		if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
			t.Errorf("body = %s, want []", body)
		}
	})

	t.Run("history with citations", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockConversationService(ctrl)
		meta, _ := json.Marshal(service.MessageMetadata{
			Citations:  []service.Citation{{ChunkID: "c1", Source: "guide.md", SourceType: "document", Rank: 1, Score: 0.9}},
			Confidence: 0.8,
		})
		svc.EXPECT().GetHistory(gomock.Any(), "u1", "s1").Return(
			&storage.Session{ID: "s1", UserID: "u1", Title: "Setup", CreatedAt: created},
			[]storage.Message{
				{ID: "m1", SessionID: "s1", Role: "user", Content: "how?", CreatedAt: created},
				{ID: "m2", SessionID: "s1", Role: "assistant", Content: "Like this.", Metadata: meta, CreatedAt: created},
			}, nil)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/chat/sessions/s1", nil)
		NewSessionHandler(svc).Get(rec, withUser(req, "u1", "s1"))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		got := decodeBody[SessionHistoryResponse](t, rec)
		if len(got.Messages) != 2 {
			t.Fatalf("messages = %d, want 2", len(got.Messages))
		}
		if len(got.Messages[0].Citations) != 0 || got.Messages[0].Confidence != nil {
			t.Errorf("user message should carry no citations: %+v", got.Messages[0])
		}
		if len(got.Messages[1].Citations) != 1 || got.Messages[1].Confidence == nil || *got.Messages[1].Confidence != 0.8 {
			t.Errorf("assistant message = %+v", got.Messages[1])
		}
	})

	t.Run("other user's session", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockConversationService(ctrl)
		svc.EXPECT().RenameSession(gomock.Any(), "u2", "s1", "Mine").Return(nil, service.ErrNotFound)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPatch, "/api/chat/sessions/s1", strings.NewReader(`{"title":"Mine"}`))
		NewSessionHandler(svc).Rename(rec, withUser(req, "u2", "s1"))

		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})
}

func TestSessionHandler_SendMessage(t *testing.T) {
	tests := []struct {
		name           string
		reply          service.Reply
		err            error
		expectedStatus int
		check          func(t *testing.T, raw map[string]any)
	}{
		{
			name: "answered",
			reply: service.Reply{
				Message: storage.Message{ID: "m2", Role: "assistant", Content: "Use retries."},
				Answer:  rag.Answer{Text: "Use retries.", HTML: "<p>Use retries.</p>\n", Confidence: 0.7, ContextUsed: []rag.ContextChunk{}},
			},
			expectedStatus: http.StatusOK,
			check: func(t *testing.T, raw map[string]any) {
				if raw["success"] != true || raw["answer"] != "Use retries." {
					t.Errorf("unexpected body %v", raw)
				}
				msg, _ := raw["message"].(map[string]any)
				if msg["id"] != "m2" {
					t.Errorf("message = %v", raw["message"])
				}
			},
		},
		{
			name:           "generation failed",
			reply:          service.Reply{Answer: rag.Answer{ContextUsed: []rag.ContextChunk{}}},
			err:            fmt.Errorf("%w: rate limited", rag.ErrGeneration),
			expectedStatus: http.StatusBadGateway,
			check: func(t *testing.T, raw map[string]any) {
				if raw["success"] != false || raw["error"] == "" {
					t.Errorf("unexpected body %v", raw)
				}
			},
		},
		{
			name:           "empty content",
			err:            &service.ValidationError{Field: "content", Message: "cannot be empty"},
			expectedStatus: http.StatusBadRequest,
			check: func(t *testing.T, raw map[string]any) {
				want := (&service.ValidationError{Field: "content", Message: "cannot be empty"}).Error()
				if raw["error"] != want {
					t.Errorf("error = %v", raw["error"])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			svc := mocks.NewMockConversationService(ctrl)
			svc.EXPECT().SendMessage(gomock.Any(), "u1", "s1", "how do I retry?").Return(tt.reply, tt.err)

			rec := httptest.NewRecorder()
			req := postJSON(t, "/api/chat/message", SendMessageRequest{SessionID: "s1", Content: "how do I retry?"})
			NewSessionHandler(svc).SendMessage(rec, withUser(req, "u1", ""))

			if rec.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.expectedStatus, rec.Body.String())
			}
			tt.check(t, decodeBody[map[string]any](t, rec))
		})
	}
}

func TestSessionHandler_Feedback(t *testing.T) {
	tests := []struct {
		name           string
		rating         int
		err            error
		expectedStatus int
	}{
		{"thumbs up", 1, nil, http.StatusOK},
		{"bad rating", 3, &service.ValidationError{Field: "rating", Message: "must be 1 or -1"}, http.StatusBadRequest},
		{"unknown message", -1, service.ErrNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			svc := mocks.NewMockConversationService(ctrl)
			svc.EXPECT().SubmitFeedback(gomock.Any(), "u1", "m2", tt.rating).Return(tt.err)

			rec := httptest.NewRecorder()
			req := postJSON(t, "/api/chat/feedback", FeedbackRequest{MessageID: "m2", SessionID: "s1", Rating: tt.rating})
			NewSessionHandler(svc).Feedback(rec, withUser(req, "u1", ""))

			if rec.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.expectedStatus)
			}
			if tt.err == nil {
				if got := decodeBody[SuccessResponse](t, rec); !got.Success {
					t.Error("expected success=true")
				}
			}
		})
	}
}
