package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration the settings file can write either as a Go
// duration string ("20s", "2h") or as raw nanoseconds.
type Duration time.Duration

// UnmarshalYAML accepts an integer nanosecond count or a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(n)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) String() string { return time.Duration(d).String() }

// H2Mode controls section images after level-2 headings. The settings file
// accepts true, false, or "smart".
type H2Mode string

const (
	H2Always H2Mode = "always"
	H2Never  H2Mode = "never"
	H2Smart  H2Mode = "smart"
)

// UnmarshalYAML accepts a bool or the string "smart".
func (m *H2Mode) UnmarshalYAML(value *yaml.Node) error {
	var b bool
	if err := value.Decode(&b); err == nil {
		if b {
			*m = H2Always
		} else {
			*m = H2Never
		}
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("h2_after: %w", err)
	}
	*m = H2Mode(s)
	return nil
}

// Rules are the placement rules consumed by the decision assembler.
type Rules struct {
	H1After                bool   `yaml:"h1_after"`
	H2After                H2Mode `yaml:"h2_after"`
	LongParagraphThreshold int    `yaml:"long_paragraph_threshold"`
	MinGapBetweenImages    int    `yaml:"min_gap_between_images"`
	MaxImagesPerArticle    int    `yaml:"max_images_per_article"`

	// Kind refinement keyword lists. Headings matching a concept keyword
	// refine section placements to concept; data keywords refine to diagram.
	ConceptKeywords []string `yaml:"concept_keywords"`
	DataKeywords    []string `yaml:"data_keywords"`
}

// Sources names the producer backends the selector picks between, and the
// static fallback chain consulted when a backend fails at generation time.
type Sources struct {
	AI      string `yaml:"ai"`
	Diagram string `yaml:"diagram"`
	Stock   string `yaml:"stock"`

	// Fallback maps a source to the ordered alternates tried after it.
	Fallback map[string][]string `yaml:"fallback"`
}

// LLM configures the inference collaborator.
type LLM struct {
	Enabled   bool     `yaml:"enabled"`
	BaseURL   string   `yaml:"base_url"`
	APIKey    string   `yaml:"api_key"`
	Model     string   `yaml:"model"`
	MaxTokens int      `yaml:"max_tokens"`
	Timeout   Duration `yaml:"timeout"`
}

// Image configures artifact output.
type Image struct {
	SaveDir string `yaml:"save_dir"`
	Size    string `yaml:"size"`
	Model   string `yaml:"model"`
}

// Output configures document reassembly.
type Output struct {
	KeepOriginal   bool   `yaml:"keep_original"`
	OriginalSuffix string `yaml:"original_suffix"`
	AddCaption     bool   `yaml:"add_image_caption"`
	CaptionFormat  string `yaml:"caption_format"`
}

// Produce bounds producer calls.
type Produce struct {
	MaxRetries  int      `yaml:"max_retries"`
	MaxParallel int      `yaml:"max_parallel"`
	Timeout     Duration `yaml:"timeout"`
}

// Server configures the HTTP service.
type Server struct {
	Port           string   `yaml:"port"`
	APIKey         string   `yaml:"api_key"`
	WorkerCount    int      `yaml:"worker_count"`
	MaxQueueSize   int      `yaml:"max_queue_size"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`
	JobTTL         Duration `yaml:"job_ttl"`
}

// Config is the full settings tree.
type Config struct {
	Rules   Rules   `yaml:"rules"`
	Sources Sources `yaml:"sources"`
	LLM     LLM     `yaml:"llm"`
	Image   Image   `yaml:"image"`
	Output  Output  `yaml:"output"`
	Produce Produce `yaml:"produce"`
	Server  Server  `yaml:"server"`

	// Prompts maps source -> placement kind -> template. The "default"
	// source entry backs any source without its own templates. Templates
	// substitute {title}, {topic} and {concept}.
	Prompts map[string]map[string]string `yaml:"prompts"`

	// Keys for stock photo providers.
	UnsplashAccessKey string `yaml:"unsplash_access_key"`
	PexelsAPIKey      string `yaml:"pexels_api_key"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Rules: Rules{
			H1After:                true,
			H2After:                H2Smart,
			LongParagraphThreshold: 150,
			MinGapBetweenImages:    3,
			MaxImagesPerArticle:    10,
			ConceptKeywords: []string{
				"原理", "机制", "概念", "流程", "工作原理", "是什么",
				"principle", "mechanism", "concept", "how it works",
			},
			DataKeywords: []string{
				"数据", "统计", "分析", "增长", "占比", "趋势",
				"data", "statistics", "analysis", "growth", "trend",
			},
		},
		Sources: Sources{
			AI:      "ai",
			Diagram: "mermaid",
			Stock:   "unsplash",
			Fallback: map[string][]string{
				"unsplash": {"pexels", "ai"},
				"pexels":   {"ai"},
				"mermaid":  {"ai"},
				"ai":       {},
			},
		},
		LLM: LLM{
			Enabled:   true,
			BaseURL:   "https://api.openai.com/v1",
			Model:     "gpt-4o-mini",
			MaxTokens: 300,
			Timeout:   Duration(20 * time.Second),
		},
		Image: Image{
			SaveDir: "output/images",
			Size:    "1024x1024",
			Model:   "dall-e-3",
		},
		Output: Output{
			KeepOriginal:   true,
			OriginalSuffix: ".original.md",
			AddCaption:     true,
			CaptionFormat:  "*{description}*",
		},
		Produce: Produce{
			MaxRetries:  3,
			MaxParallel: 4,
			Timeout:     Duration(60 * time.Second),
		},
		Server: Server{
			Port:           "8090",
			WorkerCount:    4,
			MaxQueueSize:   100,
			MaxUploadBytes: 10 << 20,
			JobTTL:         Duration(time.Hour),
		},
		Prompts: map[string]map[string]string{
			"default": {
				"cover":        "Create a professional cover image for: {title}",
				"section":      "Create an illustration for: {topic}",
				"concept":      "Create a conceptual diagram of: {concept}",
				"atmospheric":  "Create an atmospheric image evoking: {topic}",
				"diagram":      "Create an architecture diagram of: {concept}",
				"code_concept": "Create a structural diagram of: {concept}",
			},
			"mermaid": {
				"cover":        "{title} mind map",
				"section":      "{topic} flow",
				"concept":      "{concept} states",
				"diagram":      "{concept} architecture",
				"code_concept": "{concept} structure",
			},
		},
	}
}

// Load reads settings from path (optional) and applies environment
// overrides. An empty path falls back to defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.LLM.APIKey = envOr("FIGMARK_LLM_API_KEY", envOr("OPENAI_API_KEY", cfg.LLM.APIKey))
	cfg.LLM.BaseURL = envOr("FIGMARK_LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.Model = envOr("FIGMARK_LLM_MODEL", cfg.LLM.Model)
	cfg.UnsplashAccessKey = envOr("UNSPLASH_ACCESS_KEY", cfg.UnsplashAccessKey)
	cfg.PexelsAPIKey = envOr("PEXELS_API_KEY", cfg.PexelsAPIKey)
	cfg.Server.Port = envOr("PORT", cfg.Server.Port)
	cfg.Server.APIKey = envOr("FIGMARK_API_KEY", cfg.Server.APIKey)
	cfg.Server.WorkerCount = envInt("WORKER_COUNT", cfg.Server.WorkerCount)
	cfg.Server.MaxQueueSize = envInt("MAX_QUEUE_SIZE", cfg.Server.MaxQueueSize)

	return cfg, nil
}

// builtinSources is the closed set of producer backends the registry can
// construct. Source and fallback names outside it would only ever fail at
// production time, so Validate rejects them up front.
var builtinSources = map[string]bool{
	"mermaid":  true,
	"unsplash": true,
	"pexels":   true,
	"ai":       true,
}

// Validate rejects malformed configuration before any document is processed.
func (c Config) Validate() error {
	r := c.Rules
	if r.LongParagraphThreshold <= 0 {
		return fmt.Errorf("rules.long_paragraph_threshold must be positive, got %d", r.LongParagraphThreshold)
	}
	if r.MinGapBetweenImages < 0 {
		return fmt.Errorf("rules.min_gap_between_images must not be negative, got %d", r.MinGapBetweenImages)
	}
	if r.MaxImagesPerArticle < 0 {
		return fmt.Errorf("rules.max_images_per_article must not be negative, got %d", r.MaxImagesPerArticle)
	}
	switch r.H2After {
	case H2Always, H2Never, H2Smart:
	default:
		return fmt.Errorf("rules.h2_after must be true, false or %q, got %q", H2Smart, r.H2After)
	}

	s := c.Sources
	if s.AI == "" || s.Diagram == "" || s.Stock == "" {
		return fmt.Errorf("sources.ai, sources.diagram and sources.stock must all be set")
	}
	for _, name := range []string{s.AI, s.Diagram, s.Stock} {
		if !builtinSources[name] {
			return fmt.Errorf("sources: unknown source %q", name)
		}
	}
	for name, chain := range s.Fallback {
		if !builtinSources[name] {
			return fmt.Errorf("sources.fallback: unknown source %q", name)
		}
		for _, alt := range chain {
			if alt == name {
				return fmt.Errorf("sources.fallback: %q lists itself as an alternate", name)
			}
			if !builtinSources[alt] {
				return fmt.Errorf("sources.fallback: unknown source %q in chain for %q", alt, name)
			}
		}
	}

	if c.Produce.MaxRetries < 0 {
		return fmt.Errorf("produce.max_retries must not be negative, got %d", c.Produce.MaxRetries)
	}
	if c.Produce.MaxParallel <= 0 {
		return fmt.Errorf("produce.max_parallel must be positive, got %d", c.Produce.MaxParallel)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be positive, got %s", c.LLM.Timeout)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
