package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from a byte slice.
func LoadFromBytes(data []byte) (*Config, error) {
	var config Config

	err := yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvironmentOverrides(&config)

	// Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
func applyEnvironmentOverrides(config *Config) {
	// LTM storage path overrides
	if path := os.Getenv("MEM1_LTM_JSONFILE_PATH"); path != "" {
		config.LTM.JSONFile.Path = path
	}
	if path := os.Getenv("MEM1_LTM_BOLTDB_PATH"); path != "" {
		config.LTM.BoltDB.Path = path
	}

	// Conversation log path override
	if path := os.Getenv("MEM1_CONVERSATION_PATH"); path != "" {
		config.Conversation.Path = path
	}

	// Summary log path override
	if path := os.Getenv("MEM1_SUMMARY_PATH"); path != "" {
		config.Summary.Path = path
	}

	// Pipeline worker count override
	if workers := os.Getenv("MEM1_PIPELINE_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil && n > 0 {
			config.Pipeline.Workers = n
		}
	}

	// OpenAI overrides
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.OpenAI.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.LLM.OpenAI.BaseURL = baseURL
	}
}

// validateConfig validates the configuration and applies defaults.
func validateConfig(config *Config) error {
	// Validate LTM configuration
	switch strings.ToLower(config.LTM.Backend) {
	case "jsonfile", "":
		config.LTM.Backend = "jsonfile"
		if config.LTM.JSONFile.Path == "" {
			config.LTM.JSONFile.Path = "data/memories.json"
		}
	case "boltdb":
		if config.LTM.BoltDB.Path == "" {
			return fmt.Errorf("boltdb path is required for boltdb LTM backend")
		}
	case "chromem":
		// In-memory vector store, nothing to validate
	case "mock":
		// Mock store doesn't require additional validation
	default:
		return fmt.Errorf("unsupported LTM backend: %s", config.LTM.Backend)
	}

	// Validate conversation log configuration
	switch strings.ToLower(config.Conversation.Backend) {
	case "jsonfile", "":
		config.Conversation.Backend = "jsonfile"
		if config.Conversation.Path == "" {
			config.Conversation.Path = "data/conversation.log"
		}
	case "sqlite":
		if config.Conversation.Path == "" {
			return fmt.Errorf("sqlite path is required for sqlite conversation backend")
		}
	default:
		return fmt.Errorf("unsupported conversation backend: %s", config.Conversation.Backend)
	}

	if config.Summary.Path == "" {
		config.Summary.Path = "data/summary.log"
	}

	// Apply short-term cache defaults
	if config.ShortTerm.MaxSize <= 0 {
		config.ShortTerm.MaxSize = 10
	}

	// Apply pipeline defaults
	if config.Pipeline.TopK <= 0 {
		config.Pipeline.TopK = 5
	}
	if config.Pipeline.Workers <= 0 {
		config.Pipeline.Workers = 5
	}
	switch strings.ToLower(config.Pipeline.Saturation) {
	case "":
		config.Pipeline.Saturation = "block"
	case "block", "callerruns", "reject":
	default:
		return fmt.Errorf("unsupported saturation policy: %s", config.Pipeline.Saturation)
	}

	// Validate LLM configuration
	switch strings.ToLower(config.LLM.Provider) {
	case "mock", "":
		config.LLM.Provider = "mock"
	case "openai":
		// API key can be provided via environment variable, so we don't explicitly check for it here
		// But validate model settings
		if config.LLM.OpenAI.Model == "" {
			config.LLM.OpenAI.Model = "gpt-4o-mini"
		}
		if config.LLM.OpenAI.EmbeddingModel == "" {
			config.LLM.OpenAI.EmbeddingModel = "text-embedding-3-small"
		}
		if config.LLM.OpenAI.EmbeddingDimensions <= 0 {
			config.LLM.OpenAI.EmbeddingDimensions = 1536
		}
	default:
		return fmt.Errorf("unsupported LLM provider: %s", config.LLM.Provider)
	}

	// Validate logging configuration
	switch strings.ToLower(config.Logging.Level) {
	case "":
		config.Logging.Level = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported logging level: %s", config.Logging.Level)
	}

	return nil
}
