package produce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// promptPrefixes are instruction fragments stripped before keyword
// extraction; stock search wants subjects, not directives.
var promptPrefixes = []string{
	"create a professional cover image for:",
	"create an atmospheric image evoking:",
	"create an illustration for:",
	"create a",
	"an illustration of",
	"diagram showing",
}

var searchStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "for": true, "about": true,
	"with": true, "and": true, "or": true, "in": true, "on": true, "at": true,
}

// SearchKeywords reduces a generation prompt to at most max search terms.
func SearchKeywords(prompt string, max int) string {
	lower := strings.ToLower(prompt)
	for _, prefix := range promptPrefixes {
		lower = strings.ReplaceAll(lower, prefix, " ")
	}

	var keywords []string
	for _, word := range strings.Fields(lower) {
		word = strings.Trim(word, `.,;:!?"'`)
		if len(word) <= 2 || searchStopwords[word] {
			continue
		}
		keywords = append(keywords, word)
		if len(keywords) == max {
			break
		}
	}
	return strings.Join(keywords, " ")
}

// UnsplashProducer searches the Unsplash photo API and downloads the top
// landscape hit.
type UnsplashProducer struct {
	accessKey  string
	saveDir    string
	width      int
	height     int
	httpClient *http.Client
}

func NewUnsplashProducer(accessKey, saveDir string) *UnsplashProducer {
	return &UnsplashProducer{
		accessKey: accessKey,
		saveDir:   saveDir,
		width:     1024,
		height:    768,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (p *UnsplashProducer) Name() string { return "unsplash" }

func (p *UnsplashProducer) Produce(ctx context.Context, slot Slot) (Artifact, error) {
	if p.accessKey == "" {
		return Artifact{}, fmt.Errorf("unsplash: no access key configured")
	}
	keywords := SearchKeywords(slot.Prompt, 3)
	if keywords == "" {
		return Artifact{}, fmt.Errorf("unsplash: no usable keywords in prompt")
	}

	query := url.Values{
		"query":       {keywords},
		"per_page":    {"1"},
		"orientation": {"landscape"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://api.unsplash.com/search/photos?"+query.Encode(), nil)
	if err != nil {
		return Artifact{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+p.accessKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Artifact{}, fmt.Errorf("unsplash search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Artifact{}, &RetryableError{StatusCode: resp.StatusCode, Message: string(body)}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Artifact{}, fmt.Errorf("unsplash search status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Results []struct {
			URLs struct {
				Raw string `json:"raw"`
			} `json:"urls"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Artifact{}, fmt.Errorf("decode search response: %w", err)
	}
	if len(result.Results) == 0 {
		return Artifact{}, fmt.Errorf("unsplash: no photos for %q", keywords)
	}

	photoURL := fmt.Sprintf("%s&w=%d&h=%d&fit=crop", result.Results[0].URLs.Raw, p.width, p.height)
	path, err := downloadImage(ctx, p.httpClient, photoURL, p.saveDir, slot, "jpg")
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Ref: path, Source: p.Name(), AltText: keywords}, nil
}

// PexelsProducer is the secondary stock backend.
type PexelsProducer struct {
	apiKey     string
	saveDir    string
	httpClient *http.Client
}

func NewPexelsProducer(apiKey, saveDir string) *PexelsProducer {
	return &PexelsProducer{
		apiKey:  apiKey,
		saveDir: saveDir,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (p *PexelsProducer) Name() string { return "pexels" }

func (p *PexelsProducer) Produce(ctx context.Context, slot Slot) (Artifact, error) {
	if p.apiKey == "" {
		return Artifact{}, fmt.Errorf("pexels: no api key configured")
	}
	keywords := SearchKeywords(slot.Prompt, 3)
	if keywords == "" {
		return Artifact{}, fmt.Errorf("pexels: no usable keywords in prompt")
	}

	query := url.Values{
		"query":       {keywords},
		"per_page":    {"1"},
		"orientation": {"landscape"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://api.pexels.com/v1/search?"+query.Encode(), nil)
	if err != nil {
		return Artifact{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Artifact{}, fmt.Errorf("pexels search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Artifact{}, &RetryableError{StatusCode: resp.StatusCode, Message: string(body)}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Artifact{}, fmt.Errorf("pexels search status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Photos []struct {
			Src struct {
				Large string `json:"large"`
			} `json:"src"`
		} `json:"photos"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Artifact{}, fmt.Errorf("decode search response: %w", err)
	}
	if len(result.Photos) == 0 {
		return Artifact{}, fmt.Errorf("pexels: no photos for %q", keywords)
	}

	path, err := downloadImage(ctx, p.httpClient, result.Photos[0].Src.Large, p.saveDir, slot, "jpg")
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Ref: path, Source: p.Name(), AltText: keywords}, nil
}

// downloadImage fetches an image URL into saveDir and returns the path.
func downloadImage(ctx context.Context, client *http.Client, imageURL, saveDir string, slot Slot, ext string) (string, error) {
	if err := os.MkdirAll(saveDir, 0o755); err != nil {
		return "", fmt.Errorf("create save dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download image status %d", resp.StatusCode)
	}

	filename := fmt.Sprintf("%d_%s_%s.%s", slot.Index, slot.Kind, time.Now().Format("20060102_150405"), ext)
	path := filepath.Join(saveDir, filename)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}
