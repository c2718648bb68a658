package llm

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

	"github.com/figmark/figmark/internal/config"
)

// Task names the inference job requested from the collaborator.
type Task string

const (
	TaskClassify      Task = "classify"
	TaskComposePrompt Task = "compose-prompt"
)

// Request is one inference call.
type Request struct {
	Text    string
	Task    Task
	Context map[string]string
}

// Response is a successful inference result. Confidence is 0 when the
// collaborator did not report one.
type Response struct {
	Result     string
	Confidence float64
}

// Inferencer is the capability contract the classifier and prompt composer
// depend on. Absence or failure is always safe to treat as "use fallback".
type Inferencer interface {
	Infer(ctx context.Context, req Request) (Response, error)
}

// ErrDisabled is returned when inference is configured off.
var ErrDisabled = errors.New("inference disabled")

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	timeout    time.Duration
	httpClient *http.Client
	stats      *Stats
}

// NewClient builds a client from configuration. A client with an empty API
// key or enabled=false fails every call with ErrDisabled, which callers
// treat as the fallback signal.
func NewClient(cfg config.LLM) *Client {
	c := &Client{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   time.Duration(cfg.Timeout),
		stats:     NewStats(time.Hour),
	}
	if !cfg.Enabled {
		c.apiKey = ""
	}
	c.httpClient = &http.Client{Timeout: time.Duration(cfg.Timeout)}
	return c
}

// Stats exposes the rolling latency aggregate.
func (c *Client) Stats() *Stats { return c.stats }

// Model reports the configured model name.
func (c *Client) Model() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

var systemPrompts = map[Task]string{
	TaskClassify:      "You are a document classification expert. Answer with exactly one word: technical or normal.",
	TaskComposePrompt: "You are an expert at writing concise image generation prompts. Respond with the prompt only, no explanation.",
}

// Infer performs one chat completion bounded by the configured timeout.
// The pipeline never blocks on this call beyond that bound.
func (c *Client) Infer(ctx context.Context, req Request) (Response, error) {
	if c.apiKey == "" {
		return Response{}, ErrDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	temperature := 0.7
	if req.Task == TaskClassify {
		temperature = 0.1
	}
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: temperature,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompts[req.Task]},
			{Role: "user", Content: buildUserMessage(req)},
		},
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("inference api: %w", err)
	}
	defer resp.Body.Close()
	c.stats.Record(time.Since(start).Milliseconds())

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("inference api status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var apiResp chatResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil {
		return Response{}, fmt.Errorf("inference error: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if len(apiResp.Choices) == 0 {
		return Response{}, fmt.Errorf("empty response from inference api")
	}

	result := strings.TrimSpace(apiResp.Choices[0].Message.Content)
	if result == "" {
		return Response{}, fmt.Errorf("blank response from inference api")
	}
	return Response{Result: result}, nil
}

// buildUserMessage folds the request context into a readable message.
func buildUserMessage(req Request) string {
	var sb strings.Builder
	for _, key := range []string{"title", "kind", "category", "keywords", "context"} {
		if v := req.Context[key]; v != "" {
			sb.WriteString(key)
			sb.WriteString(": ")
			sb.WriteString(v)
			sb.WriteString("\n")
		}
	}
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString(req.Text)
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Close releases resources.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
