package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_conversation_service.go -package=mocks -mock_names=ConversationService=MockConversationService docqa/internal/service ConversationService

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"docqa/internal/contextutil"
	"docqa/internal/llm"
	"docqa/internal/rag"
	"docqa/internal/storage"
)

// DefaultSessionTitle names sessions created without a title.
const DefaultSessionTitle = "New Chat"

// SessionStore persists chat sessions.
type SessionStore interface {
	Create(ctx context.Context, userID, title string) (*storage.Session, error)
	Get(ctx context.Context, id string) (*storage.Session, error)
	ListByUser(ctx context.Context, userID string) ([]storage.Session, error)
	Rename(ctx context.Context, id, title string) error
}

// MessageStore persists chat messages and feedback.
type MessageStore interface {
	Create(ctx context.Context, msg *storage.Message) error
	Get(ctx context.Context, id string) (*storage.Message, error)
	ListBySession(ctx context.Context, sessionID string) ([]storage.Message, error)
	ListRecent(ctx context.Context, sessionID string, limit int) ([]storage.Message, error)
	UpsertFeedback(ctx context.Context, fb storage.Feedback) error
}

// Citation is the persisted summary of one chunk behind an assistant message.
type Citation struct {
	ChunkID      string   `json:"chunk_id"`
	DocID        string   `json:"doc_id,omitempty"`
	Source       string   `json:"source"`
	SourceType   string   `json:"source_type"`
	SectionTitle string   `json:"section_title,omitempty"`
	Rank         int      `json:"rank"`
	Score        float32  `json:"score"`
	VideoURL     string   `json:"video_url,omitempty"`
	StartSeconds *float64 `json:"start_seconds,omitempty"`
	EndSeconds   *float64 `json:"end_seconds,omitempty"`
}

// MessageMetadata is stored with assistant messages.
type MessageMetadata struct {
	Citations  []Citation `json:"citations"`
	Confidence float64    `json:"confidence"`
	*rag.VideoAnchor
}

// Reply is the assistant turn produced by SendMessage.
type Reply struct {
	Message storage.Message
	Answer  rag.Answer
}

// ConversationService manages a user's chat sessions.
type ConversationService interface {
	// CreateSession starts a session. An empty title becomes DefaultSessionTitle.
	CreateSession(ctx context.Context, userID, title string) (*storage.Session, error)
	// ListSessions returns the user's sessions, newest first.
	ListSessions(ctx context.Context, userID string) ([]storage.Session, error)
	// GetHistory returns a session and its messages, oldest first.
	GetHistory(ctx context.Context, userID, sessionID string) (*storage.Session, []storage.Message, error)
	// RenameSession changes a session title.
	RenameSession(ctx context.Context, userID, sessionID, title string) (*storage.Session, error)
	// SendMessage answers content in the context of the session and persists both turns.
	SendMessage(ctx context.Context, userID, sessionID, content string) (Reply, error)
	// SubmitFeedback records a +1 or -1 rating for a message.
	SubmitFeedback(ctx context.Context, userID, messageID string, rating int) error
}

type conversationService struct {
	sessions     SessionStore
	messages     MessageStore
	chat         ChatService
	historyLimit int
}

// NewConversationService creates a ConversationService.
func NewConversationService(sessions SessionStore, messages MessageStore, chat ChatService, historyLimit int) ConversationService {
	if historyLimit < 0 {
		historyLimit = 0
	}
	return &conversationService{
		sessions:     sessions,
		messages:     messages,
		chat:         chat,
		historyLimit: historyLimit,
	}
}

func (s *conversationService) CreateSession(ctx context.Context, userID, title string) (*storage.Session, error) {
	if userID == "" {
		return nil, ErrForbidden
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultSessionTitle
	}
	session, err := s.sessions.Create(ctx, userID, title)
	if err != nil {
		return nil, WrapError(err, "failed to create session")
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "session created", "session_id", session.ID)
	return session, nil
}

func (s *conversationService) ListSessions(ctx context.Context, userID string) ([]storage.Session, error) {
	if userID == "" {
		return nil, ErrForbidden
	}
	sessions, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, WrapError(err, "failed to list sessions")
	}
	return sessions, nil
}

func (s *conversationService) GetHistory(ctx context.Context, userID, sessionID string) (*storage.Session, []storage.Message, error) {
	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, nil, err
	}
	messages, err := s.messages.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, nil, WrapError(err, "failed to load messages")
	}
	return session, messages, nil
}

func (s *conversationService) RenameSession(ctx context.Context, userID, sessionID, title string) (*storage.Session, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, &ValidationError{Field: "title", Message: "cannot be empty"}
	}
	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Rename(ctx, sessionID, title); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, WrapError(err, "failed to rename session")
	}
	session.Title = title
	return session, nil
}

func (s *conversationService) SendMessage(ctx context.Context, userID, sessionID, content string) (Reply, error) {
	logger := contextutil.LoggerFromContext(ctx)

	content = strings.TrimSpace(content)
	if content == "" {
		return Reply{}, &ValidationError{Field: "content", Message: "cannot be empty"}
	}
	if _, err := s.ownedSession(ctx, userID, sessionID); err != nil {
		return Reply{}, err
	}

	recent, err := s.messages.ListRecent(ctx, sessionID, s.historyLimit)
	if err != nil {
		return Reply{}, WrapError(err, "failed to load history")
	}
	history := make([]rag.Turn, 0, len(recent))
	for _, m := range recent {
		history = append(history, rag.Turn{Role: m.Role, Content: m.Content})
	}

	userMsg := &storage.Message{SessionID: sessionID, Role: llm.RoleUser, Content: content}
	if err := s.messages.Create(ctx, userMsg); err != nil {
		return Reply{}, WrapError(err, "failed to save user message")
	}

	resp, err := s.chat.Ask(ctx, AskRequest{Question: content, ConversationHistory: history})
	if err != nil {
		logger.ErrorContext(ctx, "chat turn failed", "session_id", sessionID, "error", err)
		return Reply{Answer: resp.Answer}, err
	}

	metadata, err := json.Marshal(metadataFrom(resp.Answer))
	if err != nil {
		return Reply{}, WrapError(err, "failed to encode message metadata")
	}
	assistantMsg := &storage.Message{
		SessionID: sessionID,
		Role:      llm.RoleAssistant,
		Content:   resp.Answer.Text,
		Metadata:  metadata,
	}
	if err := s.messages.Create(ctx, assistantMsg); err != nil {
		return Reply{}, WrapError(err, "failed to save assistant message")
	}

	logger.InfoContext(ctx, "chat turn completed", "session_id", sessionID, "history", len(history), "message_id", assistantMsg.ID)
	return Reply{Message: *assistantMsg, Answer: resp.Answer}, nil
}

func (s *conversationService) SubmitFeedback(ctx context.Context, userID, messageID string, rating int) error {
	if rating != 1 && rating != -1 {
		return &ValidationError{Field: "rating", Message: "must be 1 or -1"}
	}
	if userID == "" {
		return ErrForbidden
	}
	msg, err := s.messages.Get(ctx, messageID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return WrapError(err, "failed to load message")
	}
	if _, err := s.ownedSession(ctx, userID, msg.SessionID); err != nil {
		return err
	}
	if err := s.messages.UpsertFeedback(ctx, storage.Feedback{MessageID: messageID, UserID: userID, Score: rating}); err != nil {
		return WrapError(err, "failed to save feedback")
	}
	return nil
}

// ownedSession loads a session and hides sessions of other users behind ErrNotFound.
func (s *conversationService) ownedSession(ctx context.Context, userID, sessionID string) (*storage.Session, error) {
	if userID == "" {
		return nil, ErrForbidden
	}
	session, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, WrapError(err, "failed to load session")
	}
	if session.UserID != userID {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "session owned by another user", "session_id", sessionID)
		return nil, ErrNotFound
	}
	return session, nil
}

func metadataFrom(answer rag.Answer) MessageMetadata {
	citations := make([]Citation, 0, len(answer.ContextUsed))
	for _, c := range answer.ContextUsed {
		citation := Citation{
			ChunkID:      c.ID,
			DocID:        c.DocID,
			Source:       c.Source,
			SourceType:   string(c.SourceType()),
			SectionTitle: c.SectionTitle(),
			Rank:         c.Rank,
			Score:        c.Score,
		}
		if v, ok := c.Video(); ok {
			citation.VideoURL = v.VideoURL
			citation.StartSeconds = v.StartSeconds
			citation.EndSeconds = v.EndSeconds
		}
		citations = append(citations, citation)
	}
	return MessageMetadata{
		Citations:   citations,
		Confidence:  answer.Confidence,
		VideoAnchor: answer.Anchor,
	}
}

// DecodeMetadata parses the metadata of an assistant message. ok is false for user messages
// and for metadata that cannot be read.
func DecodeMetadata(raw json.RawMessage) (MessageMetadata, bool) {
	var meta MessageMetadata
	if len(raw) == 0 {
		return meta, false
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return meta, false
	}
	return meta, true
}
