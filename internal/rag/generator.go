package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"docqa/internal/contextutil"
	"docqa/internal/llm"
)

// NoContextAnswer is returned without calling the LLM when no context fits the budget.
const NoContextAnswer = "I couldn't find any relevant content to answer this question. Try rephrasing it or asking about a topic covered in the indexed documents and videos."

const systemPrompt = `You are a helpful assistant that answers questions using only the provided context.
The context consists of excerpts from documents and video transcripts, each introduced by a "Source:" line.
If the context does not contain the answer, say so plainly instead of guessing.
Cite the sources you rely on by name. Answer in Markdown.`

// GeneratorConfig holds generation limits.
type GeneratorConfig struct {
	MaxContextLength int
	Timeout          time.Duration
	Temperature      float32
}

// Generator builds the prompt from retrieved chunks and asks the LLM for an answer.
type Generator struct {
	llm llm.Completer
	cfg GeneratorConfig
}

// NewGenerator creates a Generator.
func NewGenerator(completer llm.Completer, cfg GeneratorConfig) *Generator {
	if cfg.MaxContextLength <= 0 {
		cfg.MaxContextLength = 4000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Generator{llm: completer, cfg: cfg}
}

// Generate answers question from the chunks that fit the context budget.
// On ErrGeneration the returned Answer still carries ContextUsed.
func (g *Generator) Generate(ctx context.Context, question string, retrieved []ContextChunk, history []Turn) (Answer, error) {
	logger := contextutil.LoggerFromContext(ctx)
	ctx, span := tracer.Start(ctx, "rag.generate")
	defer span.End()

	contextText, included := Format(retrieved, g.cfg.MaxContextLength)
	used := append([]ContextChunk{}, retrieved[:included]...)
	span.SetAttributes(attribute.Int("rag.retrieved", len(retrieved)), attribute.Int("rag.context_used", included))

	answer := Answer{ContextUsed: used}
	if included == 0 {
		if len(retrieved) > 0 {
			logger.WarnContext(ctx, "first chunk exceeds context budget", "max_context_length", g.cfg.MaxContextLength)
		}
		answer.Text = NoContextAnswer
		answer.HTML = g.render(ctx, answer.Text)
		answer.VideoContext = []VideoClip{}
		answer.RelevantImages = []ImageReference{}
		return answer, nil
	}

	messages := BuildMessages(contextText, question, history)

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	start := time.Now()
	text, err := g.llm.Complete(callCtx, messages, llm.ChatParams{Temperature: g.cfg.Temperature})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "llm call failed")
		logger.ErrorContext(ctx, "llm call failed", "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return answer, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		span.SetStatus(codes.Error, "empty answer")
		logger.ErrorContext(ctx, "llm returned an empty answer")
		return answer, fmt.Errorf("%w: empty answer from model", ErrGeneration)
	}
	logger.InfoContext(ctx, "answer generated", "duration_ms", time.Since(start).Milliseconds(), "context_used", included)

	answer.Text = text
	answer.HTML = g.render(ctx, text)
	answer.Confidence = Confidence(used)
	answer.VideoContext = VideoClips(used)
	answer.RelevantImages = RelevantImages(used)
	answer.Anchor = Anchor(used)
	return answer, nil
}

func (g *Generator) render(ctx context.Context, text string) string {
	html, err := RenderHTML(text)
	if err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to render answer html", "error", err)
		return ""
	}
	return html
}

// BuildMessages orders the prompt as system, prior turns, then the context and question.
// Turns with roles other than user and assistant are dropped.
func BuildMessages(contextText, question string, history []Turn) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	for _, t := range history {
		if t.Role != llm.RoleUser && t.Role != llm.RoleAssistant {
			continue
		}
		messages = append(messages, llm.Message{Role: t.Role, Content: t.Content})
	}
	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextText, question),
	})
	return messages
}
