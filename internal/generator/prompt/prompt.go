// Package prompt assembles chat messages from a query and its retrieved context.
package prompt

import (
	"fmt"
	"strings"

	"rag/internal/domain"
)

const (
	DefaultSystemPrompt = "You are a helpful assistant. Answer the question using only the provided context. " +
		"If the context does not contain the answer, say that you don't know."

	// NoContextAnswer is returned by generators that cannot answer without context.
	NoContextAnswer = "I couldn't find any relevant information to answer that question."
)

// Context renders docs as numbered passages, best match first.
func Context(docs []domain.RetrievalResult) string {
	var b strings.Builder
	for i, d := range docs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] source: %s\n%s", i+1, d.ID, strings.TrimSpace(d.Content))
	}
	return b.String()
}

// Messages returns the system prompt, the conversation history and a final user
// turn carrying the context and the question. opts.SystemPrompt overrides system;
// an empty system falls back to DefaultSystemPrompt.
func Messages(query string, docs []domain.RetrievalResult, opts domain.GenerateOptions, system string) []domain.Message {
	if opts.SystemPrompt != "" {
		system = opts.SystemPrompt
	}
	if system == "" {
		system = DefaultSystemPrompt
	}
	msgs := make([]domain.Message, 0, len(opts.History)+2)
	msgs = append(msgs, domain.Message{Role: "system", Content: system})
	msgs = append(msgs, opts.History...)

	var user string
	if len(docs) == 0 {
		user = "No relevant context was found.\n\nQuestion: " + query
	} else {
		user = "Context:\n" + Context(docs) + "\n\nQuestion: " + query
	}
	return append(msgs, domain.Message{Role: "user", Content: user})
}
