package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGeminiClient_Call_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-2.5-flash:generateContent" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("Expected api key header, got %q", r.Header.Get("x-goog-api-key"))
		}
		if r.URL.Query().Get("key") != "" {
			t.Error("API key must not be sent in the query string")
		}

		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if req.SystemInstruction == nil || req.SystemInstruction.Parts[0].Text != "sys" {
			t.Errorf("Expected system instruction, got %+v", req.SystemInstruction)
		}
		if req.GenerationConfig.ResponseMimeType != "application/json" {
			t.Errorf("Expected JSON mime type, got %q", req.GenerationConfig.ResponseMimeType)
		}

		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"parts": [{"text": "{\"claims\": "}, {"text": "[]}"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"totalTokenCount": 12}
		}`))
	}))
	defer server.Close()

	client, err := NewGeminiClient(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	text, err := client.Call(context.Background(), []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "user"},
	})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if text != `{"claims": []}` {
		t.Errorf("Unexpected text: %s", text)
	}
	if client.Tokens() != 12 {
		t.Errorf("Expected 12 tokens, got %d", client.Tokens())
	}
}

func TestGeminiClient_Call_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates": []}`))
	}))
	defer server.Close()

	client, err := NewGeminiClient(Config{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	_, err = client.Call(context.Background(), []Message{{Role: RoleUser, Content: "x"}})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Expected ErrEmptyResponse, got %v", err)
	}
}

func TestGeminiClient_Call_QuotaError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"code": 429, "message": "Quota exceeded", "status": "RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	client, err := NewGeminiClient(Config{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	if _, err := client.Call(context.Background(), []Message{{Role: RoleUser, Content: "x"}}); err == nil {
		t.Fatal("Expected error, got nil")
	}
}
