package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"docqa/internal/rag"
	"docqa/internal/service"
	"docqa/internal/service/mocks"
	"docqa/internal/storage"

	"go.uber.org/mock/gomock"
)

type conversationFixture struct {
	chat     *mocks.MockChatService
	sessions *storage.SessionRepo
	messages *storage.MessageRepo
	svc      service.ConversationService
}

func newConversationFixture(t *testing.T, historyLimit int) conversationFixture {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("storage.Migrate() error = %v", err)
	}

	ctrl := gomock.NewController(t)
	f := conversationFixture{
		chat:     mocks.NewMockChatService(ctrl),
		sessions: storage.NewSessionRepo(db),
		messages: storage.NewMessageRepo(db),
	}
	f.svc = service.NewConversationService(f.sessions, f.messages, f.chat, historyLimit)
	return f
}

func TestConversationService_Sessions(t *testing.T) {
	f := newConversationFixture(t, 10)
	ctx := testContext()

	first, err := f.svc.CreateSession(ctx, "alice", "  ")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if first.Title != service.DefaultSessionTitle {
		t.Errorf("CreateSession() title = %q, want %q", first.Title, service.DefaultSessionTitle)
	}
	second, err := f.svc.CreateSession(ctx, "alice", "Embeddings")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := f.svc.CreateSession(ctx, "bob", "Other"); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	sessions, err := f.svc.ListSessions(ctx, "alice")
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != second.ID {
		t.Errorf("ListSessions() = %+v, want newest first", sessions)
	}

	renamed, err := f.svc.RenameSession(ctx, "alice", first.ID, "Chunking")
	if err != nil {
		t.Fatalf("RenameSession() error = %v", err)
	}
	if renamed.Title != "Chunking" {
		t.Errorf("RenameSession() title = %q", renamed.Title)
	}

	if _, err := f.svc.RenameSession(ctx, "alice", first.ID, ""); !errors.Is(err, service.ErrInvalidInput) {
		t.Errorf("RenameSession(empty) error = %v, want ErrInvalidInput", err)
	}
	if _, err := f.svc.RenameSession(ctx, "bob", first.ID, "Mine"); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("RenameSession(other user) error = %v, want ErrNotFound", err)
	}
	if _, _, err := f.svc.GetHistory(ctx, "bob", first.ID); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("GetHistory(other user) error = %v, want ErrNotFound", err)
	}
	if _, _, err := f.svc.GetHistory(ctx, "alice", "missing"); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("GetHistory(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.ListSessions(ctx, ""); !errors.Is(err, service.ErrForbidden) {
		t.Errorf("ListSessions(no user) error = %v, want ErrForbidden", err)
	}
}

func TestConversationService_SendMessage(t *testing.T) {
	f := newConversationFixture(t, 2)
	ctx := testContext()

	session, err := f.svc.CreateSession(ctx, "alice", "Lecture")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	for _, m := range []storage.Message{
		{SessionID: session.ID, Role: "user", Content: "old question"},
		{SessionID: session.ID, Role: "assistant", Content: "old answer"},
		{SessionID: session.ID, Role: "user", Content: "what is a gradient?"},
		{SessionID: session.ID, Role: "assistant", Content: "a vector of partials"},
	} {
		if err := f.messages.Create(ctx, &m); err != nil {
			t.Fatalf("seed message: %v", err)
		}
	}

	used := []rag.ContextChunk{videoResult("v1", "lecture", 1, 0.9, 61)}
	start := 61.0
	answer := rag.Answer{
		Text:        "Follow the negative gradient.",
		Confidence:  0.9,
		ContextUsed: used,
		Anchor:      &rag.VideoAnchor{VideoURL: "https://cdn.example/lecture.mp4", StartSeconds: &start, Timestamp: "1:01"},
	}

	f.chat.EXPECT().Ask(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req service.AskRequest) (service.AskResponse, error) {
			want := []rag.Turn{
				{Role: "user", Content: "what is a gradient?"},
				{Role: "assistant", Content: "a vector of partials"},
			}
			if req.Question != "how do I descend?" {
				t.Errorf("Ask() question = %q", req.Question)
			}
			if len(req.ConversationHistory) != 2 || req.ConversationHistory[0] != want[0] || req.ConversationHistory[1] != want[1] {
				t.Errorf("Ask() history = %+v, want %+v", req.ConversationHistory, want)
			}
			return service.AskResponse{Envelope: service.Envelope{Success: true}, Answer: answer}, nil
		})

	reply, err := f.svc.SendMessage(ctx, "alice", session.ID, " how do I descend? ")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if reply.Message.Role != "assistant" || reply.Message.Content != answer.Text {
		t.Errorf("SendMessage() message = %+v", reply.Message)
	}

	var meta struct {
		Citations []struct {
			ChunkID    string `json:"chunk_id"`
			SourceType string `json:"source_type"`
		} `json:"citations"`
		Confidence     float64 `json:"confidence"`
		AnswerVideoURL string  `json:"answer_video_url"`
	}
	if err := json.Unmarshal(reply.Message.Metadata, &meta); err != nil {
		t.Fatalf("metadata is not JSON: %v", err)
	}
	if len(meta.Citations) != 1 || meta.Citations[0].ChunkID != "v1" || meta.Citations[0].SourceType != "video" {
		t.Errorf("metadata citations = %+v", meta.Citations)
	}
	if meta.AnswerVideoURL != "https://cdn.example/lecture.mp4" || meta.Confidence != 0.9 {
		t.Errorf("metadata = %+v", meta)
	}

	_, history, err := f.svc.GetHistory(ctx, "alice", session.ID)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(history) != 6 {
		t.Fatalf("GetHistory() = %d messages, want 6", len(history))
	}
	if history[4].Content != "how do I descend?" || history[5].ID != reply.Message.ID {
		t.Errorf("GetHistory() tail = %+v", history[4:])
	}
}

func TestConversationService_SendMessageFailure(t *testing.T) {
	f := newConversationFixture(t, 10)
	ctx := testContext()

	session, err := f.svc.CreateSession(ctx, "alice", "")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	f.chat.EXPECT().Ask(gomock.Any(), gomock.Any()).
		Return(service.AskResponse{Envelope: service.Envelope{Error: "down"}}, rag.ErrRetrieval)

	if _, err := f.svc.SendMessage(ctx, "alice", session.ID, "hello"); !errors.Is(err, rag.ErrRetrieval) {
		t.Fatalf("SendMessage() error = %v, want ErrRetrieval", err)
	}

	messages, err := f.messages.ListBySession(ctx, session.ID)
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(messages) != 1 || messages[0].Role != "user" {
		t.Errorf("messages after failure = %+v, want only the user turn", messages)
	}

	if _, err := f.svc.SendMessage(ctx, "bob", session.ID, "hello"); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("SendMessage(other user) error = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.SendMessage(ctx, "alice", session.ID, "  "); !errors.Is(err, service.ErrInvalidInput) {
		t.Errorf("SendMessage(empty) error = %v, want ErrInvalidInput", err)
	}
}

func TestConversationService_SubmitFeedback(t *testing.T) {
	f := newConversationFixture(t, 10)
	ctx := testContext()

	session, err := f.svc.CreateSession(ctx, "alice", "")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	msg := &storage.Message{SessionID: session.ID, Role: "assistant", Content: "answer"}
	if err := f.messages.Create(ctx, msg); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tests := []struct {
		name    string
		userID  string
		msgID   string
		rating  int
		wantErr error
	}{
		{name: "upvote", userID: "alice", msgID: msg.ID, rating: 1},
		{name: "change vote", userID: "alice", msgID: msg.ID, rating: -1},
		{name: "invalid rating", userID: "alice", msgID: msg.ID, rating: 5, wantErr: service.ErrInvalidInput},
		{name: "other user", userID: "bob", msgID: msg.ID, rating: 1, wantErr: service.ErrNotFound},
		{name: "unknown message", userID: "alice", msgID: "nope", rating: 1, wantErr: service.ErrNotFound},
		{name: "anonymous", userID: "", msgID: msg.ID, rating: 1, wantErr: service.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.SubmitFeedback(ctx, tt.userID, tt.msgID, tt.rating)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("SubmitFeedback() unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("SubmitFeedback() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	fb, err := f.messages.GetFeedback(ctx, msg.ID, "alice")
	if err != nil {
		t.Fatalf("GetFeedback() error = %v", err)
	}
	if fb.Score != -1 {
		t.Errorf("feedback score = %d, want -1", fb.Score)
	}
}

func TestDecodeMetadata(t *testing.T) {
	tests := []struct {
		name           string
		raw            string
		wantOK         bool
		wantCitations  int
		wantAnchorLink string
	}{
		{name: "empty", raw: "", wantOK: false},
		{name: "corrupt", raw: "{not json", wantOK: false},
		{name: "document answer", raw: `{"citations":[{"chunk_id":"c1","source":"a.md","source_type":"document","rank":1,"score":0.9}],"confidence":0.8}`, wantOK: true, wantCitations: 1},
		{name: "video answer", raw: `{"citations":[],"confidence":0.5,"answer_video_url":"https://v.example/x.mp4","answer_start_seconds":12}`, wantOK: true, wantAnchorLink: "https://v.example/x.mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, ok := service.DecodeMetadata(json.RawMessage(tt.raw))
			if ok != tt.wantOK {
				t.Fatalf("DecodeMetadata() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if len(meta.Citations) != tt.wantCitations {
				t.Errorf("citations = %d, want %d", len(meta.Citations), tt.wantCitations)
			}
			gotLink := ""
			if meta.VideoAnchor != nil {
				gotLink = meta.VideoURL
			}
			if gotLink != tt.wantAnchorLink {
				t.Errorf("anchor video url = %q, want %q", gotLink, tt.wantAnchorLink)
			}
		})
	}
}
