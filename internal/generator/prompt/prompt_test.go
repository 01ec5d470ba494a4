package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag/internal/domain"
)

func TestContext(t *testing.T) {
	docs := []domain.RetrievalResult{
		{ID: "a.md", Content: "  Alpha text.\n"},
		{ID: "b.md", Content: "Beta text."},
	}

	assert.Equal(t, "[1] source: a.md\nAlpha text.\n\n[2] source: b.md\nBeta text.", Context(docs))
	assert.Empty(t, Context(nil))
}

func TestMessages(t *testing.T) {
	docs := []domain.RetrievalResult{{ID: "1", Content: "Go was released in 2009."}}
	history := []domain.Message{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}}

	msgs := Messages("When was Go released?", docs, domain.GenerateOptions{History: history}, "")

	require.Len(t, msgs, 4)
	assert.Equal(t, domain.Message{Role: "system", Content: DefaultSystemPrompt}, msgs[0])
	assert.Equal(t, history, msgs[1:3])
	assert.Equal(t, "user", msgs[3].Role)
	assert.Contains(t, msgs[3].Content, "[1] source: 1\nGo was released in 2009.")
	assert.Contains(t, msgs[3].Content, "Question: When was Go released?")
}

func TestMessages_SystemPromptPrecedence(t *testing.T) {
	msgs := Messages("q", nil, domain.GenerateOptions{}, "configured")
	assert.Equal(t, "configured", msgs[0].Content)
	assert.Contains(t, msgs[1].Content, "No relevant context was found.")

	msgs = Messages("q", nil, domain.GenerateOptions{SystemPrompt: "per call"}, "configured")
	assert.Equal(t, "per call", msgs[0].Content)
}
