// Package config loads and validates dynsql configuration.
// Configuration comes from a YAML file with environment-variable overrides;
// all components receive their settings explicitly at construction time.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all dynsql configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM oracle configuration
	LLM LLMConfig `yaml:"llm"`

	// Embedding engine configuration
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Database execution settings
	Databases DatabasesConfig `yaml:"databases"`

	// Self-correction loop settings
	Correction CorrectionConfig `yaml:"correction"`

	// Batch driver settings
	Batch BatchConfig `yaml:"batch"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the text-generation oracle.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai (any OpenAI-compatible endpoint), gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// EmbeddingConfig configures the schema-linking embedding engine.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // ollama, genai
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	GenAIAPIKey    string `yaml:"genai_api_key"`
	GenAIModel     string `yaml:"genai_model"`
	IndexPath      string `yaml:"index_path"` // sqlite file holding schema vectors
}

// DatabasesConfig configures SQL execution against the benchmark databases.
// A database name resolves to <root>/<name>/<name>.sqlite.
type DatabasesConfig struct {
	Root        string `yaml:"root"`
	ExecTimeout string `yaml:"exec_timeout"`
	PreviewRows int    `yaml:"preview_rows"`
}

// SemanticCheckMode selects how the validity judge treats non-empty results.
type SemanticCheckMode string

const (
	// SemanticStrict always asks the oracle whether a non-empty result
	// matches the question intent.
	SemanticStrict SemanticCheckMode = "strict"
	// SemanticRelaxed trusts any non-empty result without an oracle call.
	SemanticRelaxed SemanticCheckMode = "relaxed"
)

// CorrectionConfig configures the self-correction orchestrator.
type CorrectionConfig struct {
	SemanticCheck       SemanticCheckMode `yaml:"semantic_check"`
	ValidateIdentifiers bool              `yaml:"validate_identifiers"`
}

// BatchConfig configures the JSONL batch driver.
type BatchConfig struct {
	MaxWorkers int `yaml:"max_workers"`
	StartIndex int `yaml:"start_index"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "dynsql",
		Version: "0.3.0",

		LLM: LLMConfig{
			Provider: "openai",
			Model:    "qwen2.5-coder-32b-instruct",
			BaseURL:  "https://dashscope.aliyuncs.com/compatible-mode/v1",
			Timeout:  "120s",
		},

		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
			IndexPath:      "data/schema_index.db",
		},

		Databases: DatabasesConfig{
			Root:        "data/dev_databases",
			ExecTimeout: "60s",
			PreviewRows: 5,
		},

		Correction: CorrectionConfig{
			SemanticCheck:       SemanticStrict,
			ValidateIdentifiers: true,
		},

		Batch: BatchConfig{
			MaxWorkers: 8,
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults when
// the file does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// Oracle API key, in priority order.
	if key := os.Getenv("DASHSCOPE_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "openai"
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "openai"
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
		if c.Embedding.GenAIAPIKey == "" {
			c.Embedding.GenAIAPIKey = key
		}
	}

	if root := os.Getenv("DYNSQL_DB_ROOT"); root != "" {
		c.Databases.Root = root
	}
	if url := os.Getenv("DYNSQL_LLM_BASE_URL"); url != "" {
		c.LLM.BaseURL = url
	}
}

// GetLLMTimeout returns the oracle call timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetExecTimeout returns the per-query execution timeout as a duration.
func (c *Config) GetExecTimeout() time.Duration {
	d, err := time.ParseDuration(c.Databases.ExecTimeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// DatabasePath resolves a database name to its sqlite file path.
func (c *Config) DatabasePath(name string) string {
	return filepath.Join(c.Databases.Root, name, name+".sqlite")
}

// ValidProviders lists all supported oracle providers.
var ValidProviders = []string{"openai", "gemini"}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (set DASHSCOPE_API_KEY, OPENAI_API_KEY, or GEMINI_API_KEY)")
	}

	validProvider := false
	for _, p := range ValidProviders {
		if c.LLM.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}

	switch c.Correction.SemanticCheck {
	case SemanticStrict, SemanticRelaxed, "":
	default:
		return fmt.Errorf("invalid semantic_check mode: %s (valid: strict, relaxed)", c.Correction.SemanticCheck)
	}

	if c.Batch.MaxWorkers < 0 {
		return fmt.Errorf("max_workers must be >= 0")
	}
	return nil
}
