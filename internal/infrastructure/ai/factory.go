package ai

import (
	"fmt"
	"strings"

	"github.com/jhoicas/pharma-sentinel/internal/application/ports"
	"github.com/jhoicas/pharma-sentinel/pkg/config"
)

// NewGateway elige el adaptador según AI_PROVIDER. Devuelve nil (sin error) con provider
// "none" o sin API key: las unidades quedan en su camino determinista.
func NewGateway(cfg config.AIConfig) (ports.ReasoningGateway, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "none":
		return nil, nil
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, nil
		}
		return NewAnthropicGateway(cfg.AnthropicAPIKey, cfg.AnthropicModel, ""), nil
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, nil
		}
		return NewGeminiGateway(cfg.GeminiAPIKey, cfg.GeminiModel, ""), nil
	default:
		return nil, fmt.Errorf("AI: proveedor desconocido %q", cfg.Provider)
	}
}
