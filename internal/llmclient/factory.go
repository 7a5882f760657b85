package llmclient

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hkanersen/autopub-cli/api/schemas"
	"github.com/hkanersen/autopub-cli/internal/config"
)

// NewClient constructs the configured LLM client implementation.
func NewClient(cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
