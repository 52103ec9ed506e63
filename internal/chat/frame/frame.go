// Package frame classifies inbound streaming messages from the language-model
// proxy. The proxy's framing is not fixed, so classification is permissive and
// total: every payload maps to exactly one Frame and nothing is ever rejected.
package frame

import (
	"bytes"
	"encoding/json"
)

// DoneSentinel is the literal terminator some proxies send instead of a
// structured end event.
const DoneSentinel = "[DONE]"

// Kind is the closed set of frame variants.
type Kind int

const (
	KindIgnore Kind = iota
	KindToken
	KindTerminate
)

func (k Kind) String() string {
	switch k {
	case KindToken:
		return "token"
	case KindTerminate:
		return "terminate"
	default:
		return "ignore"
	}
}

// Frame is one classified inbound message. Text is set only for KindToken.
// Final marks a token that also ends the stream; the token is delivered
// before the stream terminates.
type Frame struct {
	Kind  Kind
	Text  string
	Final bool
}

// Token builds a token frame.
func Token(text string) Frame { return Frame{Kind: KindToken, Text: text} }

// Terminate builds a terminate frame.
func Terminate() Frame { return Frame{Kind: KindTerminate} }

// Ignore builds an ignore frame.
func Ignore() Frame { return Frame{Kind: KindIgnore} }

// Terminates reports whether the stream ends after this frame.
func (f Frame) Terminates() bool {
	return f.Kind == KindTerminate || (f.Kind == KindToken && f.Final)
}

type choice struct {
	Delta *struct {
		Content *string `json:"content"`
	} `json:"delta"`
	Message *struct {
		Content *string `json:"content"`
	} `json:"message"`
	Text         *string `json:"text"`
	FinishReason *string `json:"finish_reason"`
}

func (c choice) content() (string, bool) {
	if c.Delta != nil && c.Delta.Content != nil {
		return *c.Delta.Content, true
	}
	if c.Text != nil {
		return *c.Text, true
	}
	if c.Message != nil && c.Message.Content != nil {
		return *c.Message.Content, true
	}
	return "", false
}

func (c choice) finished() bool {
	return c.FinishReason != nil && *c.FinishReason != ""
}

// Classify maps one raw inbound payload to a Frame. Only an empty payload or
// the sentinel terminates; any other undecodable payload, whitespace included,
// is a token carrying the raw text.
func Classify(raw []byte) Frame {
	if len(raw) == 0 || string(bytes.TrimSpace(raw)) == DoneSentinel {
		return Terminate()
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Token(string(raw))
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return Ignore()
	}

	if _, ok := obj["choices"].([]any); ok {
		return classifyChoices(raw)
	}

	tag := eventTag(obj)
	if tag == "token" {
		if tok, ok := obj["token"].(string); ok {
			return Token(tok)
		}
	}
	if text, ok := obj["text"].(string); ok {
		return Token(text)
	}
	if tag == "end" {
		return Terminate()
	}
	return Ignore()
}

func classifyChoices(raw []byte) Frame {
	var payload struct {
		Choices []choice `json:"choices"`
	}
	// A second, typed decode keeps field access simple; shape mismatches
	// inside a choice degrade to ignore.
	if err := json.Unmarshal(raw, &payload); err != nil || len(payload.Choices) == 0 {
		return Ignore()
	}
	first := payload.Choices[0]
	content, hasContent := first.content()
	finished := first.finished()

	switch {
	case hasContent && content != "":
		return Frame{Kind: KindToken, Text: content, Final: finished}
	case finished:
		return Terminate()
	default:
		return Ignore()
	}
}

func eventTag(obj map[string]any) string {
	if tag, ok := obj["event"].(string); ok {
		return tag
	}
	if tag, ok := obj["type"].(string); ok {
		return tag
	}
	return ""
}
