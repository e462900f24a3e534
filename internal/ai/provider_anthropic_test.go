package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func anthropicReply(text string) map[string]any {
	return map[string]any{
		"content": []map[string]string{{"type": "text", "text": text}},
		"model":   "claude-sonnet-4-6",
		"usage":   map[string]int{"input_tokens": 12, "output_tokens": 8},
	}
}

func TestNewAnthropicProvider_EmptyKey(t *testing.T) {
	if _, err := NewAnthropicProvider(""); err == nil {
		t.Fatal("NewAnthropicProvider() should return error for empty key")
	}
}

func TestAnthropicProvider_Complete(t *testing.T) {
	var received anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("unexpected x-api-key: %s", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != anthropicVersion {
			t.Errorf("unexpected anthropic-version: %s", r.Header.Get("anthropic-version"))
		}
		json.NewDecoder(r.Body).Decode(&received)
		json.NewEncoder(w).Encode(anthropicReply("Claude response"))
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider("test-key", WithAnthropicBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewAnthropicProvider() error = %v", err)
	}

	resp, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{
			{Role: "system", Content: "You write quizzes."},
			{Role: "user", Content: "hello"},
		},
		Temperature: 0.2,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Claude response" || resp.InputTokens != 12 || resp.OutputTokens != 8 {
		t.Errorf("resp = %+v", resp)
	}

	if received.Model != defaultAnthropicModel || received.MaxTokens != defaultAnthropicMaxTokens {
		t.Errorf("model = %q max_tokens = %d", received.Model, received.MaxTokens)
	}
	if received.System != "You write quizzes." {
		t.Errorf("system = %q", received.System)
	}
	if len(received.Messages) != 1 || received.Messages[0].Role != "user" {
		t.Errorf("messages = %+v, want the system prompt lifted out", received.Messages)
	}
	if received.Temperature == nil || *received.Temperature != 0.2 {
		t.Errorf("temperature = %v", received.Temperature)
	}
}

func TestAnthropicProvider_JSONPrefill(t *testing.T) {
	var received anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		json.NewEncoder(w).Encode(anthropicReply(`"questions": []}`))
	}))
	defer server.Close()

	provider, _ := NewAnthropicProvider("k", WithAnthropicBaseURL(server.URL), WithAnthropicModel("claude-haiku"))
	resp, err := provider.Complete(context.Background(), CompletionRequest{
		Messages:       []Message{{Role: "user", Content: "quiz"}},
		ResponseFormat: ResponseFormatJSON,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != `{"questions": []}` {
		t.Errorf("content = %q, want the prefill restored", resp.Content)
	}
	last := received.Messages[len(received.Messages)-1]
	if last.Role != "assistant" || last.Content != jsonPrefill {
		t.Errorf("last message = %+v, want assistant prefill", last)
	}
	if received.Model != "claude-haiku" {
		t.Errorf("model = %q", received.Model)
	}
}

func TestAnthropicProvider_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
	}{
		{name: "api error", status: http.StatusTooManyRequests, body: map[string]string{"error": "rate limited"}},
		{name: "empty content", status: http.StatusOK, body: map[string]any{"content": []any{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(tt.body)
			}))
			defer server.Close()

			provider, _ := NewAnthropicProvider("k", WithAnthropicBaseURL(server.URL))
			_, err := provider.Complete(context.Background(), CompletionRequest{
				Messages: []Message{{Role: "user", Content: "hi"}},
			})
			if err == nil {
				t.Fatal("Complete() should return error")
			}
			var apiErr *APIError
			if tt.status != http.StatusOK && (!errors.As(err, &apiErr) || apiErr.StatusCode != tt.status) {
				t.Errorf("error = %v, want APIError with status %d", err, tt.status)
			}
		})
	}
}
