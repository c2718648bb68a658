package produce

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// AIProducer generates images through an OpenAI-compatible image
// generation endpoint.
type AIProducer struct {
	baseURL    string
	apiKey     string
	model      string
	size       string
	saveDir    string
	httpClient *http.Client
}

func NewAIProducer(baseURL, apiKey, model, size, saveDir string) *AIProducer {
	if size == "" {
		size = "1024x768"
	}
	return &AIProducer{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		size:    size,
		saveDir: saveDir,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (p *AIProducer) Name() string { return "ai" }

type imageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

type imageResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *AIProducer) Produce(ctx context.Context, slot Slot) (Artifact, error) {
	if p.apiKey == "" {
		return Artifact{}, fmt.Errorf("ai image: no api key configured")
	}

	body, err := json.Marshal(imageRequest{
		Model:  p.model,
		Prompt: slot.Prompt,
		N:      1,
		Size:   p.size,
	})
	if err != nil {
		return Artifact{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return Artifact{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Artifact{}, fmt.Errorf("ai image api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return Artifact{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return Artifact{}, &RetryableError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	if resp.StatusCode != http.StatusOK {
		return Artifact{}, fmt.Errorf("ai image api status %d: %s", resp.StatusCode, shorten(string(respBody), 200))
	}

	var apiResp imageResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return Artifact{}, fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil {
		return Artifact{}, fmt.Errorf("ai image error: %s", apiResp.Error.Message)
	}
	if len(apiResp.Data) == 0 {
		return Artifact{}, fmt.Errorf("ai image: empty response")
	}

	var path string
	switch {
	case apiResp.Data[0].URL != "":
		path, err = downloadImage(ctx, p.httpClient, apiResp.Data[0].URL, p.saveDir, slot, "png")
	case apiResp.Data[0].B64JSON != "":
		path, err = p.saveBase64(apiResp.Data[0].B64JSON, slot)
	default:
		err = fmt.Errorf("ai image: response carries neither url nor data")
	}
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Ref: path, Source: p.Name(), AltText: slot.Prompt}, nil
}

func (p *AIProducer) saveBase64(data string, slot Slot) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("decode image data: %w", err)
	}
	if err := os.MkdirAll(p.saveDir, 0o755); err != nil {
		return "", fmt.Errorf("create save dir: %w", err)
	}
	filename := fmt.Sprintf("%d_%s_%s.png", slot.Index, slot.Kind, time.Now().Format("20060102_150405"))
	path := filepath.Join(p.saveDir, filename)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}
