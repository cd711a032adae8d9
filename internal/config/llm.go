package config

import (
	"fmt"
	"time"
)

// LLMConfig configures the generation gateway.
type LLMConfig struct {
	Provider string `yaml:"provider"` // anthropic, openai, gemini, mock
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`

	// MaxTurns bounds request/response round trips per generation.
	MaxTurns int `yaml:"max_turns"`
	// MaxResultBytes truncates tool results echoed back to the model.
	MaxResultBytes int `yaml:"max_result_bytes"`
}

// DefaultLLMConfig returns sensible defaults.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:       "anthropic",
		Model:          DefaultModel("anthropic"),
		Timeout:        "120s",
		MaxTurns:       4,
		MaxResultBytes: 4096,
	}
}

// DefaultModel returns the model used when a provider is selected without
// one.
func DefaultModel(provider string) string {
	switch provider {
	case "openai":
		return "gpt-4o"
	case "gemini":
		return "gemini-2.5-pro"
	case "mock":
		return "mock-1"
	default:
		return "claude-sonnet-4-5"
	}
}

// GetTimeout returns the LLM timeout as a duration.
func (c LLMConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

// GetMaxTurns returns the turn budget, at least one.
func (c LLMConfig) GetMaxTurns() int {
	if c.MaxTurns <= 0 {
		return 4
	}
	return c.MaxTurns
}

// Validate checks that the provider is known and has a key.
func (c LLMConfig) Validate() error {
	validProvider := false
	for _, p := range ValidProviders {
		if c.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.Provider, ValidProviders)
	}

	if c.APIKey == "" && c.Provider != "mock" {
		return fmt.Errorf("LLM API key not configured for %s (set ANTHROPIC_API_KEY, OPENAI_API_KEY, GEMINI_API_KEY or SPLICE_API_KEY)", c.Provider)
	}
	return nil
}
