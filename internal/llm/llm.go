// Package llm talks to chat-completion providers behind one Completer interface.
package llm

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_completer.go -package=mocks docqa/internal/llm Completer

import "context"

// Chat roles understood by every Completer.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn sent to a provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatParams overrides per-call generation settings. Zero values keep the provider default.
type ChatParams struct {
	Model       string
	MaxTokens   int
	Temperature float32
}

// Completer sends a full message list and returns the assistant's reply.
// Implementations: *Client (OpenAI-compatible), *GeminiClient and *Guard.
type Completer interface {
	Complete(ctx context.Context, messages []Message, params ChatParams) (string, error)
}
