package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAnthropicClient_Call_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("Expected path /v1/messages, got %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("Expected x-api-key header test-key, got %s", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("Expected anthropic-version header 2023-06-01, got %s", r.Header.Get("anthropic-version"))
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if req.System != "be JSON" {
			t.Errorf("Expected system prompt to be lifted, got %q", req.System)
		}
		if n := len(req.Messages); n != 2 || req.Messages[n-1].Role != "assistant" {
			t.Errorf("Expected user turn plus assistant prefill, got %+v", req.Messages)
		}

		_, _ = w.Write([]byte(`{
			"id": "msg_123",
			"content": [{"type": "text", "text": "\"claims\": [\"A\"]}"}],
			"model": "claude-3-5-haiku-20241022",
			"usage": {"input_tokens": 50, "output_tokens": 25}
		}`))
	}))
	defer server.Close()

	client, err := NewAnthropicClient(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	text, err := client.Call(context.Background(), []Message{
		{Role: RoleSystem, Content: "be JSON"},
		{Role: RoleUser, Content: "decompose"},
	})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if text != `{"claims": ["A"]}` {
		t.Errorf("Unexpected text: %s", text)
	}
	if client.Tokens() != 75 {
		t.Errorf("Expected 75 tokens, got %d", client.Tokens())
	}
}

func TestAnthropicClient_Call_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "rate_limit_error", "message": "slow down"}}`))
	}))
	defer server.Close()

	client, err := NewAnthropicClient(Config{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	_, err = client.Call(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), "rate_limit_error") || !strings.Contains(err.Error(), "slow down") {
		t.Errorf("Expected API error details, got %v", err)
	}
}

func TestAnthropicClient_Call_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{malformed`))
	}))
	defer server.Close()

	client, err := NewAnthropicClient(Config{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	if _, err := client.Call(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}); err == nil {
		t.Fatal("Expected error for malformed JSON, got nil")
	}
}
