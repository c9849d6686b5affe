package ai

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        2,
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestOpenAIClientGetCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected authorization header: %s", auth)
		}

		var req struct {
			Model          string            `json:"model"`
			Messages       []Message         `json:"messages"`
			ResponseFormat map[string]string `json:"response_format"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.ResponseFormat["type"] != "json_object" {
			t.Errorf("expected json_object response format, got %v", req.ResponseFormat)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"company_name\": \"Acme Corp\"}"}}]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key", "gpt-4o")
	client.baseURL = server.URL
	client.retryConfig = testRetryConfig()

	content, err := client.GetCompletion("system prompt", "user prompt")
	if err != nil {
		t.Fatalf("GetCompletion failed: %v", err)
	}
	if !strings.Contains(content, "Acme Corp") {
		t.Errorf("unexpected content: %s", content)
	}
}

func TestOpenAIClientRetryOnRateLimit(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"rate limit"}}`))
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key", "gpt-4o")
	client.baseURL = server.URL
	client.retryConfig = testRetryConfig()

	content, err := client.GetCompletion("s", "u")
	if err != nil {
		t.Fatalf("GetCompletion failed: %v", err)
	}
	if content != "ok" {
		t.Errorf("unexpected content: %s", content)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestOpenAIClientQuotaNoRetry(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"message":"You exceeded your current quota","type":"insufficient_quota"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key", "gpt-4o")
	client.baseURL = server.URL
	client.retryConfig = testRetryConfig()

	_, err := client.GetCompletion("s", "u")
	if err == nil {
		t.Fatal("expected error for quota exceeded")
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("unexpected error: %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected no retries for quota error, got %d attempts", attempts)
	}
}

func TestOpenAIClientSetMaxRetries(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"upstream error"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("test-key", "gpt-4o")
	client.baseURL = server.URL
	client.retryConfig = testRetryConfig()
	client.SetMaxRetries(0)

	if _, err := client.GetCompletion("s", "u"); err == nil {
		t.Fatal("expected error from failing server")
	}
	if attempts != 1 {
		t.Errorf("expected exactly 1 attempt with retries disabled, got %d", attempts)
	}

	attempts = 0
	client.SetMaxRetries(2)
	if _, err := client.GetCompletion("s", "u"); err == nil {
		t.Fatal("expected error from failing server")
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts with 2 retries, got %d", attempts)
	}

	// Отрицательное значение игнорируется
	client.SetMaxRetries(-1)
	if client.retryConfig.MaxRetries != 2 {
		t.Errorf("negative value must be ignored, got %d", client.retryConfig.MaxRetries)
	}
}

func TestOpenRouterClientSetMaxRetries(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"upstream error"}}`))
	}))
	defer server.Close()

	client := NewOpenRouterClient("test-key", "openai/gpt-4o")
	client.baseURL = server.URL
	client.retryConfig = testRetryConfig()
	client.SetMaxRetries(0)

	if _, err := client.GetCompletion("s", "u"); err == nil {
		t.Fatal("expected error from failing server")
	}
	if attempts != 1 {
		t.Errorf("expected exactly 1 attempt with retries disabled, got %d", attempts)
	}
}

func TestOpenAIClientIsEnabled(t *testing.T) {
	if NewOpenAIClient("", "gpt-4o").IsEnabled() {
		t.Error("client without API key should be disabled")
	}
	if !NewOpenAIClient("key", "gpt-4o").IsEnabled() {
		t.Error("client with API key should be enabled")
	}
}

func TestParseRetryAfter(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	if d := parseRetryAfter(resp); d != 0 {
		t.Errorf("expected 0 for missing header, got %v", d)
	}
	resp.Header.Set("Retry-After", "3")
	if d := parseRetryAfter(resp); d != 3*time.Second {
		t.Errorf("expected 3s, got %v", d)
	}
}
