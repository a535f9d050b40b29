// Package llm provides the text-generation oracle used by every SQL
// generation and correction stage. The oracle is provider-agnostic: any
// OpenAI-compatible endpoint (DashScope/Qwen, OpenAI) or Google Gemini.
// Responses are treated as unreliable text and parsed defensively.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Client defines the interface for LLM providers. Instruction plays the role
// of the system prompt; prompt carries the serialized question context.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, instruction, prompt string) (string, error)
}

// Config holds provider-independent client settings.
type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// NewClient creates a client for the configured provider.
func NewClient(cfg Config) (Client, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIClientWithConfig(OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}), nil
	case "gemini":
		return NewGeminiClient(cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s (valid: openai, gemini)", cfg.Provider)
	}
}
