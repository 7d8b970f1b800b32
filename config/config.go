package config

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/aschepis/backscratcher/galaxy/concurrent"
)

// DefaultConfigPath is used when GALAXY_CONFIG_PATH is not set.
const DefaultConfigPath = "galaxy.yaml"

// LogConfig represents logger settings.
type LogConfig struct {
	Dir    string `yaml:"dir,omitempty"`    // Directory for info.log / error.log (default: logs)
	Level  string `yaml:"level,omitempty"`  // Console level (debug, info, warn, error, trace)
	Pretty bool   `yaml:"pretty,omitempty"` // Human-readable console output
}

// OpenAIConfig represents configuration for OpenAI-compatible providers.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`  // API key
	BaseURL string `yaml:"base_url,omitempty"` // Custom base URL (default: official API)
	Model   string `yaml:"model,omitempty"`    // Default model name
}

// SiliconFlowConfig represents configuration for the SiliconFlow provider.
type SiliconFlowConfig struct {
	Endpoint string `yaml:"endpoint,omitempty"` // Chat completions URL
	Token    string `yaml:"token,omitempty"`    // Bearer token
	Model    string `yaml:"model,omitempty"`    // Default model name
}

// DifyConfig represents configuration for a Dify application.
type DifyConfig struct {
	Endpoint string `yaml:"endpoint,omitempty"` // chat-messages URL
	APIKey   string `yaml:"api_key,omitempty"`  // Application API key
	User     string `yaml:"user,omitempty"`     // End-user identifier
}

// DispatchConfig represents defaults for concurrent batches.
type DispatchConfig struct {
	MaxWorkers int    `yaml:"max_workers,omitempty"` // 0 picks a default for the mode
	Mode       string `yaml:"mode,omitempty"`        // io or cpu
	Timeout    int    `yaml:"timeout,omitempty"`     // Batch timeout in seconds, 0 for none
}

// Config represents the toolkit configuration.
type Config struct {
	Env         string `yaml:"env,omitempty"`          // development or production
	ProjectName string `yaml:"project_name,omitempty"` // Informational project name

	Log         LogConfig         `yaml:"log,omitempty"`
	OpenAI      OpenAIConfig      `yaml:"openai,omitempty"`
	SiliconFlow SiliconFlowConfig `yaml:"siliconflow,omitempty"`
	Dify        DifyConfig        `yaml:"dify,omitempty"`
	Dispatch    DispatchConfig    `yaml:"dispatch,omitempty"`

	RequestTimeout int `yaml:"request_timeout,omitempty"` // HTTP timeout in seconds for provider calls
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		Env: "development",
		Log: LogConfig{
			Dir:   "logs",
			Level: "info",
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
		},
		SiliconFlow: SiliconFlowConfig{
			Endpoint: "https://api.siliconflow.cn/v1/chat/completions",
		},
		Dify: DifyConfig{
			User: "galaxy",
		},
		Dispatch: DispatchConfig{
			Mode: "io",
		},
		RequestTimeout: 300,
	}
}

// GetConfigPath returns the config file path.
// Can be overridden via GALAXY_CONFIG_PATH environment variable.
func GetConfigPath() string {
	if envPath := os.Getenv("GALAXY_CONFIG_PATH"); envPath != "" {
		return expandPath(envPath)
	}
	return DefaultConfigPath
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// Load loads configuration from path, merged onto Defaults, then applies the
// environment variables env, PROJECT_NAME, LOG_DIR and LOG_LEVEL.
// Returns defaults if the config file doesn't exist.
// Provider settings get their environment overrides from the Load*Config functions.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	expandedPath := expandPath(path)
	if _, err := os.Stat(expandedPath); err == nil {
		configYAML, err := os.ReadFile(expandedPath) //#nosec 304 -- intentional file read for config
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", expandedPath, err)
		}

		var fileConfig Config
		if err := yaml.Unmarshal(configYAML, &fileConfig); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}

		if err := mergo.Merge(&cfg, fileConfig, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge config: %w", err)
		}
	}

	envConfig := Config{
		Env:         os.Getenv("env"),
		ProjectName: os.Getenv("PROJECT_NAME"),
		Log: LogConfig{
			Dir:   os.Getenv("LOG_DIR"),
			Level: os.Getenv("LOG_LEVEL"),
		},
	}
	if err := mergo.Merge(&cfg, envConfig, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge environment: %w", err)
	}

	if _, err := concurrent.ParseMode(cfg.Dispatch.Mode); err != nil {
		return nil, fmt.Errorf("invalid dispatch config: %w", err)
	}

	return &cfg, nil
}

// Save writes the configuration to path as YAML.
func Save(cfg *Config, path string) error {
	expandedPath := expandPath(path)

	// Ensure directory exists
	dir := filepath.Dir(expandedPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(expandedPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DispatchOptions converts the dispatch section to concurrent.Options.
func DispatchOptions(cfg *Config) concurrent.Options {
	if cfg == nil {
		return concurrent.Options{}
	}
	mode, _ := concurrent.ParseMode(cfg.Dispatch.Mode)
	return concurrent.Options{
		MaxWorkers: cfg.Dispatch.MaxWorkers,
		Mode:       mode,
		Timeout:    time.Duration(cfg.Dispatch.Timeout) * time.Second,
	}
}

// httpClient returns the client shared by the provider factories.
func httpClient(cfg *Config) *http.Client {
	if cfg == nil || cfg.RequestTimeout <= 0 {
		return http.DefaultClient
	}
	return &http.Client{Timeout: time.Duration(cfg.RequestTimeout) * time.Second}
}
