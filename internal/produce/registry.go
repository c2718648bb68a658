package produce

import (
	"github.com/figmark/figmark/internal/config"
)

// FromConfig builds the producers the configuration enables. The diagram
// producer is always available; remote producers require their keys.
func FromConfig(cfg config.Config) []Producer {
	producers := []Producer{NewMermaidProducer()}
	if cfg.UnsplashAccessKey != "" {
		producers = append(producers, NewUnsplashProducer(cfg.UnsplashAccessKey, cfg.Image.SaveDir))
	}
	if cfg.PexelsAPIKey != "" {
		producers = append(producers, NewPexelsProducer(cfg.PexelsAPIKey, cfg.Image.SaveDir))
	}
	if cfg.LLM.APIKey != "" {
		producers = append(producers, NewAIProducer(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.Image.Model, cfg.Image.Size, cfg.Image.SaveDir))
	}
	return producers
}
