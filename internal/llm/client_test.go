package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/figmark/figmark/internal/config"
)

func testConfig(baseURL string) config.LLM {
	return config.LLM{
		Enabled:   true,
		BaseURL:   baseURL,
		APIKey:    "test-key",
		Model:     "test-model",
		MaxTokens: 100,
		Timeout:   config.Duration(5 * time.Second),
	}
}

func TestClientDisabled(t *testing.T) {
	cfg := testConfig("http://localhost:1")
	cfg.Enabled = false
	c := NewClient(cfg)

	if _, err := c.Infer(context.Background(), Request{Task: TaskClassify, Text: "x"}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}

	cfg = testConfig("http://localhost:1")
	cfg.APIKey = ""
	c = NewClient(cfg)
	if _, err := c.Infer(context.Background(), Request{Task: TaskClassify, Text: "x"}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled for empty key, got %v", err)
	}
}

func TestClientInfer(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "  technical\n"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	resp, err := c.Infer(context.Background(), Request{
		Task:    TaskClassify,
		Text:    "a document preview",
		Context: map[string]string{"title": "Guide"},
	})
	if err != nil {
		t.Fatalf("Infer() error: %v", err)
	}
	if resp.Result != "technical" {
		t.Errorf("result = %q, want technical (trimmed)", resp.Result)
	}

	if got.Model != "test-model" {
		t.Errorf("model = %q", got.Model)
	}
	if got.Temperature != 0.1 {
		t.Errorf("classify temperature = %v, want 0.1", got.Temperature)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Fatalf("messages = %+v", got.Messages)
	}
	user := got.Messages[1].Content
	if want := "title: Guide\n\na document preview"; user != want {
		t.Errorf("user message = %q, want %q", user, want)
	}

	if snap := c.Stats().Snapshot(); snap.Count != 1 {
		t.Errorf("stats count = %d, want 1", snap.Count)
	}
}

func TestClientInferErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"http error status", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
		}},
		{"api error body", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"type": "invalid_request", "message": "bad model"},
			})
		}},
		{"no choices", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
		}},
		{"blank content", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{
					{"message": map[string]any{"content": "   "}},
				},
			})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			c := NewClient(testConfig(srv.URL))
			if _, err := c.Infer(context.Background(), Request{Task: TaskComposePrompt, Text: "x"}); err == nil {
				t.Error("expected error")
			}
		})
	}
}
