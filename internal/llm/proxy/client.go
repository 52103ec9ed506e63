// Package proxy talks to the language-model proxy's blocking chat endpoint.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"cv-assistant/internal/llm"
)

const (
	providerName   = "proxy"
	defaultTimeout = 120 * time.Second
	maxErrorBody   = 512
)

// Options configures a proxy client.
type Options struct {
	// URL is the blocking completion endpoint.
	URL     string
	Model   string
	Timeout time.Duration

	// OAuth client credentials. When TokenURL is empty requests are sent
	// without authorization.
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// Client implements llm.Completer against the proxy.
type Client struct {
	url         string
	model       string
	httpClient  *http.Client
	tokenSource oauth2.TokenSource
}

// NewClient constructs a proxy client.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, fmt.Errorf("LLM_PROXY_URL is required for the proxy provider")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := &http.Client{Timeout: timeout}
	var ts oauth2.TokenSource
	if strings.TrimSpace(opts.TokenURL) != "" {
		cc := &clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     opts.TokenURL,
			Scopes:       opts.Scopes,
		}
		ts = cc.TokenSource(ctx)
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: &oauth2.Transport{Source: ts},
		}
	}

	return &Client{
		url:         strings.TrimSpace(opts.URL),
		model:       strings.TrimSpace(opts.Model),
		httpClient:  httpClient,
		tokenSource: ts,
	}, nil
}

// URL returns the blocking endpoint.
func (c *Client) URL() string {
	return c.url
}

// TokenSource returns the token source used for proxy auth, or nil.
func (c *Client) TokenSource() oauth2.TokenSource {
	return c.tokenSource
}

// ChatMessage is one message in the proxy wire format.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body for the blocking endpoint and the payload of the
// streaming start frame.
type ChatRequest struct {
	Model    string        `json:"model,omitempty"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// BuildRequest lays out system prompt, history, then the new user prompt.
func BuildRequest(model, prompt string, history []llm.Message, systemPrompt string) ChatRequest {
	messages := make([]ChatMessage, 0, len(history)+2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: systemPrompt})
	}
	for _, m := range history {
		role := "assistant"
		if m.IsUser {
			role = "user"
		}
		messages = append(messages, ChatMessage{Role: role, Content: m.Text})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: prompt})
	return ChatRequest{Model: model, Messages: messages}
}

// StreamRequest returns the start payload for a streaming turn.
func (c *Client) StreamRequest(prompt string, history []llm.Message, systemPrompt string) ChatRequest {
	req := BuildRequest(c.model, prompt, history, systemPrompt)
	req.Stream = true
	return req
}

// Complete implements llm.Completer.
func (c *Client) Complete(ctx context.Context, prompt string, history []llm.Message, systemPrompt string) (string, error) {
	payload, err := json.Marshal(BuildRequest(c.model, prompt, history, systemPrompt))
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return "", fmt.Errorf("proxy request timeout: %w", err)
		}
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode >= 400 {
			return "", &llm.CompletionError{Provider: providerName, Status: resp.StatusCode, Message: truncate(strings.TrimSpace(string(body)))}
		}
		return "", &llm.CompletionError{Provider: providerName, Message: "response parse: " + err.Error()}
	}
	if parsed.Error != nil {
		return "", &llm.CompletionError{Provider: providerName, Status: resp.StatusCode, Message: fmt.Sprintf("%s (%s)", parsed.Error.Message, parsed.Error.Type)}
	}
	if resp.StatusCode >= 400 {
		return "", &llm.CompletionError{Provider: providerName, Status: resp.StatusCode, Message: truncate(strings.TrimSpace(string(body)))}
	}
	if len(parsed.Choices) == 0 {
		return "", &llm.CompletionError{Provider: providerName, Status: resp.StatusCode, Message: "response missing choices"}
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", &llm.CompletionError{Provider: providerName, Status: resp.StatusCode, Message: "response empty content"}
	}
	return content, nil
}

func truncate(s string) string {
	if len(s) <= maxErrorBody {
		return s
	}
	return s[:maxErrorBody] + "..."
}
