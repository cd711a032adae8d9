package gateway

import (
	"context"
	"fmt"

	"codesplice/internal/config"
	"codesplice/internal/logging"
)

// NewProvider creates the provider selected by cfg.
func NewProvider(ctx context.Context, cfg config.LLMConfig) (Provider, error) {
	logging.Gateway("using provider %s (model=%s)", cfg.Provider, cfg.Model)
	if cfg.BaseURL != "" {
		logging.GatewayDebug("base_url=%s", cfg.BaseURL)
	}
	switch cfg.Provider {
	case "":
		logging.GatewayWarn("no provider configured, falling back to anthropic")
		return NewAnthropicProvider(cfg.APIKey, cfg.BaseURL, cfg.GetTimeout()), nil
	case "anthropic":
		return NewAnthropicProvider(cfg.APIKey, cfg.BaseURL, cfg.GetTimeout()), nil
	case "openai":
		return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.GetTimeout()), nil
	case "gemini":
		return NewGeminiProvider(ctx, cfg.APIKey, cfg.BaseURL, cfg.GetTimeout())
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (valid: %v)", cfg.Provider, config.ValidProviders)
	}
}
