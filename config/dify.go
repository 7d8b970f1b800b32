package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/aschepis/backscratcher/galaxy/llm/dify"
	"github.com/aschepis/backscratcher/galaxy/metrics"
)

// LoadDifyConfig loads Dify configuration from config.
// It returns the endpoint, API key and user to use for creating a Dify client.
func LoadDifyConfig(cfg *Config) (endpoint, apiKey, user string) {
	if cfg != nil {
		endpoint = cfg.Dify.Endpoint
		apiKey = cfg.Dify.APIKey
		user = cfg.Dify.User
	}

	// Apply environment variable overrides
	if envEndpoint := os.Getenv("DIFY_ENDPOINT"); envEndpoint != "" {
		endpoint = envEndpoint
	}
	if envAPIKey := os.Getenv("DIFY_API_KEY"); envAPIKey != "" {
		apiKey = envAPIKey
	}
	if envUser := os.Getenv("DIFY_USER"); envUser != "" {
		user = envUser
	}

	return endpoint, apiKey, user
}

// NewDifyClient creates a new Dify client from the configuration.
func NewDifyClient(cfg *Config, logger zerolog.Logger, m *metrics.Metrics) (*dify.Client, error) {
	endpoint, apiKey, user := LoadDifyConfig(cfg)
	if endpoint == "" {
		return nil, fmt.Errorf("dify: endpoint is required (set DIFY_ENDPOINT)")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("dify: api key is required (set DIFY_API_KEY)")
	}
	return dify.NewClient(endpoint, apiKey,
		dify.WithUser(user),
		dify.WithHTTPClient(httpClient(cfg)),
		dify.WithLogger(logger),
		dify.WithMetrics(m),
	), nil
}
