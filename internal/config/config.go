package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all codesplice configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Namespace prefixes every directive keyword (@<ns>_func).
	Namespace string `yaml:"namespace"`

	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Build behaviour for manifest and directive mode
	Build BuildConfig `yaml:"build"`

	// Generation history ledger
	History HistoryConfig `yaml:"history"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:      "codesplice",
		Version:   "0.4.0",
		Namespace: "ai",

		LLM:     DefaultLLMConfig(),
		Build:   DefaultBuildConfig(),
		History: DefaultHistoryConfig(),

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ConfigPath returns the config file location for a workspace.
func ConfigPath(workspace string) string {
	return filepath.Join(workspace, ".splice", "config.yaml")
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// providerKeyEnv maps providers to the environment variable holding their key.
var providerKeyEnv = []struct {
	provider string
	env      string
}{
	{"anthropic", "ANTHROPIC_API_KEY"},
	{"openai", "OPENAI_API_KEY"},
	{"gemini", "GEMINI_API_KEY"},
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// Provider keys, later entries win
	for _, pk := range providerKeyEnv {
		if key := os.Getenv(pk.env); key != "" {
			c.LLM.APIKey = key
			c.LLM.Provider = pk.provider
		}
	}

	// An explicit provider picks its own key when one is exported
	if p := os.Getenv("SPLICE_PROVIDER"); p != "" {
		c.LLM.Provider = p
		for _, pk := range providerKeyEnv {
			if pk.provider == p {
				if key := os.Getenv(pk.env); key != "" {
					c.LLM.APIKey = key
				}
			}
		}
	}
	if key := os.Getenv("SPLICE_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if m := os.Getenv("SPLICE_MODEL"); m != "" {
		c.LLM.Model = m
	}
	if ns := os.Getenv("SPLICE_NAMESPACE"); ns != "" {
		c.Namespace = ns
	}
}

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{"anthropic", "openai", "gemini", "mock"}

// Validate validates the workspace settings. Provider credentials are
// checked separately by LLMConfig.Validate, once a command needs the model.
func (c *Config) Validate() error {
	if c.Build.Parallelism < 0 {
		return fmt.Errorf("build.parallelism must not be negative, got %d", c.Build.Parallelism)
	}

	if c.Namespace == "" {
		return fmt.Errorf("namespace must not be empty")
	}
	for i := 0; i < len(c.Namespace); i++ {
		ch := c.Namespace[i]
		if !(ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9') {
			return fmt.Errorf("namespace %q must be alphanumeric", c.Namespace)
		}
	}

	return nil
}

// LLMFor returns the LLM settings with provider and model overridden, as a
// manifest or command-line flag may do. Switching provider picks up that
// provider's key from the environment and its default model.
func (c *Config) LLMFor(provider, model string) LLMConfig {
	llm := c.LLM
	if provider != "" && provider != llm.Provider {
		llm.Provider = provider
		llm.Model = DefaultModel(provider)
		for _, pk := range providerKeyEnv {
			if pk.provider == provider {
				llm.APIKey = os.Getenv(pk.env)
			}
		}
		if key := os.Getenv("SPLICE_API_KEY"); key != "" {
			llm.APIKey = key
		}
	}
	if model != "" {
		llm.Model = model
	}
	return llm
}
