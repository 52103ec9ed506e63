// Package chat runs user chat turns: a streamed attempt first, then a single
// blocking fallback when the stream fails.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cv-assistant/internal/chat/stream"
	"cv-assistant/internal/llm"
	"cv-assistant/internal/shared/metrics"
	"cv-assistant/internal/shared/telemetry"
)

// Apology is the assistant message shown when both attempts fail.
const Apology = "Sorry, I could not get an answer right now. Please try again in a moment."

// Sink receives the live draft of a streamed answer.
type Sink interface {
	// Token appends one increment to the draft.
	Token(text string)
	// Discard removes the draft after a failed stream.
	Discard()
}

// NopSink ignores all draft updates.
type NopSink struct{}

func (NopSink) Token(string) {}
func (NopSink) Discard()     {}

// StartPayloadFunc builds the start frame payload for a streamed turn.
type StartPayloadFunc func(prompt string, history []llm.Message, systemPrompt string) any

// TurnRequest is one logical user request.
type TurnRequest struct {
	Prompt       string
	History      []llm.Message
	SystemPrompt string
}

// Outcome says which path produced the assistant message.
type Outcome string

const (
	OutcomeStreamed Outcome = "streamed"
	OutcomeFallback Outcome = "fallback"
	OutcomeApology  Outcome = "apology"
)

// Result carries the single assistant message of a turn.
type Result struct {
	Message     llm.Message
	Outcome     Outcome
	StreamErr   error
	FallbackErr error
}

// Options configures a Coordinator.
type Options struct {
	Dialer       stream.Dialer
	Endpoint     string
	Deadline     time.Duration
	Completer    llm.Completer
	StartPayload StartPayloadFunc
}

// Coordinator owns the stream-then-fallback policy.
type Coordinator struct {
	dialer       stream.Dialer
	endpoint     string
	deadline     time.Duration
	completer    llm.Completer
	startPayload StartPayloadFunc
}

// NewCoordinator builds a coordinator. Without a dialer or endpoint every turn
// goes straight to the blocking call.
func NewCoordinator(opts Options) *Coordinator {
	completer := opts.Completer
	if completer == nil {
		completer = llm.PlaceholderCompleter{}
	}
	startPayload := opts.StartPayload
	if startPayload == nil {
		startPayload = defaultStartPayload
	}
	return &Coordinator{
		dialer:       opts.Dialer,
		endpoint:     opts.Endpoint,
		deadline:     opts.Deadline,
		completer:    completer,
		startPayload: startPayload,
	}
}

type defaultPayload struct {
	Prompt       string        `json:"prompt"`
	History      []llm.Message `json:"history"`
	SystemPrompt string        `json:"systemPrompt"`
}

func defaultStartPayload(prompt string, history []llm.Message, systemPrompt string) any {
	return defaultPayload{Prompt: prompt, History: history, SystemPrompt: systemPrompt}
}

// Turn produces exactly one assistant message for req. Tokens of a streamed
// attempt go to sink as they arrive; a failed stream is discarded from sink
// before the blocking call starts.
func (c *Coordinator) Turn(ctx context.Context, req TurnRequest, sink Sink) Result {
	if sink == nil {
		sink = NopSink{}
	}
	metrics.IncChatTurn()

	text, streamErr := c.stream(ctx, req, sink)
	if streamErr == nil {
		metrics.IncStreamSuccess()
		return Result{Message: assistant(text), Outcome: OutcomeStreamed}
	}

	metrics.IncStreamFailure()
	telemetry.Error("chat.stream_failed", map[string]any{
		"endpoint":  c.endpoint,
		"error":     streamErr,
		"deadline":  errors.Is(streamErr, stream.ErrDeadline),
		"transport": errors.Is(streamErr, stream.ErrTransport),
	})
	sink.Discard()

	metrics.IncFallback()
	answer, err := c.completer.Complete(ctx, req.Prompt, req.History, req.SystemPrompt)
	if err != nil {
		metrics.IncFallbackFailure()
		telemetry.Error("chat.fallback_failed", map[string]any{
			"error":    err,
			"upstream": llm.IsCompletionError(err),
		})
		return Result{Message: assistant(Apology), Outcome: OutcomeApology, StreamErr: streamErr, FallbackErr: err}
	}
	return Result{Message: assistant(answer), Outcome: OutcomeFallback, StreamErr: streamErr}
}

func (c *Coordinator) stream(ctx context.Context, req TurnRequest, sink Sink) (string, error) {
	if c.dialer == nil || c.endpoint == "" {
		return "", errStreamingDisabled
	}
	start := time.Now()
	defer func() {
		metrics.ObserveStreamDurationMs(metrics.SinceMillis(start))
	}()
	payload := c.startPayload(req.Prompt, req.History, req.SystemPrompt)
	return stream.Open(ctx, c.dialer, c.endpoint, payload, sink.Token, c.deadline)
}

var errStreamingDisabled = fmt.Errorf("%w: streaming endpoint not configured", stream.ErrTransport)

func assistant(text string) llm.Message {
	return llm.Message{Text: text, IsUser: false}
}
