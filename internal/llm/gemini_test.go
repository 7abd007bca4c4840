package llm

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitForGemini(t *testing.T) {
	system, history, last, err := splitForGemini([]Message{
		{Role: RoleSystem, Content: "answer from context"},
		{Role: RoleUser, Content: "first question"},
		{Role: RoleAssistant, Content: "first answer"},
		{Role: RoleUser, Content: "follow up"},
	})
	require.NoError(t, err)

	assert.Equal(t, "answer from context", system)
	assert.Equal(t, "follow up", last)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "model", history[1].Role)
	assert.Equal(t, genai.Text("first answer"), history[1].Parts[0])
}

func TestSplitForGemini_RequiresTrailingUser(t *testing.T) {
	_, _, _, err := splitForGemini(nil)
	assert.Error(t, err)

	_, _, _, err = splitForGemini([]Message{{Role: RoleUser, Content: "q"}, {Role: RoleAssistant, Content: "a"}})
	assert.Error(t, err)
}

func TestResponseText(t *testing.T) {
	_, err := responseText(&genai.GenerateContentResponse{})
	assert.Error(t, err)

	text, err := responseText(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("Tensors "), genai.Text("are arrays.")}},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Tensors are arrays.", text)
}
