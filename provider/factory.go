package provider

import (
	"fmt"

	"geode/config"
)

// New builds the adapter for the configured provider. The adapter is not
// yet initialized; callers must Initialize it with the tool catalog
// before sending.
//
// Switching providers means building and initializing a fresh adapter;
// adapters are never mutated into a different vendor in place.
func New(cfg *config.Config) (Adapter, error) {
	key := cfg.CurrentAPIKey()
	switch cfg.AIProvider {
	case "gemini":
		return NewGeminiAdapter(key, cfg.ModelName), nil
	case "claude":
		return NewClaudeAdapter(key, cfg.ModelName), nil
	case "openai":
		return NewOpenAIAdapter(key, cfg.ModelName), nil
	case "cohere":
		return NewCohereAdapter(key, cfg.ModelName), nil
	case "mistral":
		return NewMistralAdapter(key, cfg.ModelName), nil
	case "ollama":
		return NewOllamaAdapter(cfg.OllamaBaseURL, cfg.ModelName), nil
	case "perplexity":
		return NewPerplexityAdapter(key, cfg.ModelName), nil
	case "together":
		return NewTogetherAdapter(key, cfg.ModelName), nil
	default:
		return nil, fmt.Errorf("unknown AI provider: %s", cfg.AIProvider)
	}
}
