package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/aschepis/backscratcher/galaxy/llm/siliconflow"
	"github.com/aschepis/backscratcher/galaxy/metrics"
)

// LoadSiliconFlowConfig loads SiliconFlow configuration from config.
// It returns the endpoint, token and model to use for creating a SiliconFlow client.
func LoadSiliconFlowConfig(cfg *Config) (endpoint, token, model string) {
	if cfg != nil {
		endpoint = cfg.SiliconFlow.Endpoint
		token = cfg.SiliconFlow.Token
		model = cfg.SiliconFlow.Model
	}

	// Apply environment variable overrides
	if envEndpoint := os.Getenv("SILICONFLOW_ENDPOINT_URL"); envEndpoint != "" {
		endpoint = envEndpoint
	}
	if envToken := os.Getenv("SILICONFLOW_TOKEN"); envToken != "" {
		token = envToken
	}
	if envModel := os.Getenv("SILICONFLOW_MODEL"); envModel != "" {
		model = envModel
	}
	if endpoint == "" {
		endpoint = siliconflow.DefaultEndpoint
	}

	return endpoint, token, model
}

// NewSiliconFlowClient creates a new SiliconFlow LLM client from the configuration.
func NewSiliconFlowClient(cfg *Config, logger zerolog.Logger, m *metrics.Metrics) (*siliconflow.Client, error) {
	endpoint, token, model := LoadSiliconFlowConfig(cfg)
	if token == "" {
		return nil, fmt.Errorf("siliconflow: token is required (set SILICONFLOW_TOKEN)")
	}
	return siliconflow.NewClient(endpoint, token,
		siliconflow.WithModel(model),
		siliconflow.WithHTTPClient(httpClient(cfg)),
		siliconflow.WithLogger(logger),
		siliconflow.WithMetrics(m),
	), nil
}
