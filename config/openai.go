package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	llmopenai "github.com/aschepis/backscratcher/galaxy/llm/openai"
	"github.com/aschepis/backscratcher/galaxy/metrics"
)

// LoadOpenAIConfig loads OpenAI configuration from config.
// It returns the API key, base URL and model to use for creating an OpenAI client.
func LoadOpenAIConfig(cfg *Config) (apiKey, baseURL, model string) {
	if cfg != nil {
		apiKey = cfg.OpenAI.APIKey
		baseURL = cfg.OpenAI.BaseURL
		model = cfg.OpenAI.Model
	}

	// Apply environment variable overrides
	if envAPIKey := os.Getenv("OPENAI_API_KEY"); envAPIKey != "" {
		apiKey = envAPIKey
	}
	if envBaseURL := os.Getenv("OPENAI_ENDPOINT_URL"); envBaseURL != "" {
		baseURL = envBaseURL
	}
	if envModel := os.Getenv("OPENAI_MODEL"); envModel != "" {
		model = envModel
	}

	return apiKey, baseURL, model
}

// NewOpenAIClient creates a new OpenAI-compatible LLM client from the configuration.
func NewOpenAIClient(cfg *Config, logger zerolog.Logger, m *metrics.Metrics) (*llmopenai.Client, error) {
	apiKey, baseURL, model := LoadOpenAIConfig(cfg)
	if apiKey == "" {
		return nil, fmt.Errorf("openai: api key is required (set OPENAI_API_KEY)")
	}
	return llmopenai.NewClient(apiKey, baseURL,
		llmopenai.WithModel(model),
		llmopenai.WithHTTPClient(httpClient(cfg)),
		llmopenai.WithLogger(logger),
		llmopenai.WithMetrics(m),
	), nil
}
