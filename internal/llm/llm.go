package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Message is one transcript entry passed as conversation history.
type Message struct {
	Text   string `json:"text"`
	IsUser bool   `json:"isUser"`
}

// Completer performs one blocking completion round-trip.
type Completer interface {
	Complete(ctx context.Context, prompt string, history []Message, systemPrompt string) (string, error)
}

// CompletionError is returned when the provider answers with a non-success
// status or an unusable body.
type CompletionError struct {
	Provider string
	Status   int
	Message  string
}

func (e *CompletionError) Error() string {
	provider := e.Provider
	if provider == "" {
		provider = "llm"
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s http status %d: %s", provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s completion failed: %s", provider, e.Message)
}

// IsCompletionError reports whether err carries a CompletionError.
func IsCompletionError(err error) bool {
	var ce *CompletionError
	return errors.As(err, &ce)
}

// ErrNotConfigured is returned by the placeholder completer.
var ErrNotConfigured = errors.New("LLM provider not configured")

// PlaceholderCompleter stands in when no provider is configured.
type PlaceholderCompleter struct{}

// Complete returns ErrNotConfigured.
func (PlaceholderCompleter) Complete(context.Context, string, []Message, string) (string, error) {
	return "", ErrNotConfigured
}

// StripCodeFence removes a surrounding markdown code fence, which some models
// add around JSON answers.
func StripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[idx+1:]
	} else {
		text = strings.TrimLeft(text, "abcdefghijklmnopqrstuvwxyz")
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
