package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cv-assistant/internal/llm"
)

type generateRequest struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
	SystemInstruction *struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"systemInstruction"`
}

func TestCompleteSendsHistoryAndSystemInstruction(t *testing.T) {
	var got generateRequest
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Try data roles."}]}}]}`))
	}))
	defer srv.Close()

	client, err := NewClient(context.Background(), "key", "gemini-test", srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	text, err := client.Complete(context.Background(), "what next?", []llm.Message{
		{Text: "hi", IsUser: true},
		{Text: "hello", IsUser: false},
	}, "be brief")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "Try data roles." {
		t.Fatalf("unexpected text %q", text)
	}
	if !strings.HasSuffix(path, "models/gemini-test:generateContent") {
		t.Fatalf("unexpected path %q", path)
	}
	if len(got.Contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(got.Contents))
	}
	roles := []string{got.Contents[0].Role, got.Contents[1].Role, got.Contents[2].Role}
	if strings.Join(roles, ",") != "user,model,user" {
		t.Fatalf("unexpected roles %v", roles)
	}
	if got.SystemInstruction == nil || got.SystemInstruction.Parts[0].Text != "be brief" {
		t.Fatalf("expected system instruction, got %+v", got.SystemInstruction)
	}
}

func TestCompleteMapsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`))
	}))
	defer srv.Close()

	client, err := NewClient(context.Background(), "key", "", srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if client.Model() != defaultModel {
		t.Fatalf("expected default model, got %q", client.Model())
	}
	_, err = client.Complete(context.Background(), "q", nil, "")
	var ce *llm.CompletionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CompletionError, got %v", err)
	}
	if ce.Status != 503 || ce.Message != "overloaded" {
		t.Fatalf("unexpected completion error %+v", ce)
	}
}

func TestCompleteEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	client, err := NewClient(context.Background(), "key", "m", srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.Complete(context.Background(), "q", nil, ""); !llm.IsCompletionError(err) {
		t.Fatalf("expected CompletionError for empty response, got %v", err)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(context.Background(), " ", "m", ""); err == nil {
		t.Fatalf("expected error for missing key")
	}
}
