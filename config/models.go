package config

// RecommendedModel returns the suggested default model for a provider.
func RecommendedModel(provider string) string {
	recommendations := map[string]string{
		"gemini":     "gemini-2.5-pro",
		"claude":     "claude-3-5-sonnet-20241022",
		"openai":     "gpt-4o",
		"cohere":     "command-r-plus",
		"mistral":    "mistral-large-latest",
		"ollama":     "llama3.1:8b",
		"perplexity": "llama-3.1-sonar-large-128k-online",
		"together":   "meta-llama/Llama-3-70b-chat-hf",
	}
	if m, ok := recommendations[provider]; ok {
		return m
	}
	return "gemini-2.5-pro"
}

// AvailableModels returns the curated model catalog per provider. The
// lists are advisory; any model name the vendor accepts may be configured.
func AvailableModels() map[string][]string {
	return map[string][]string{
		"gemini": {
			"gemini-2.5-pro",
			"gemini-2.5-flash",
			"gemini-1.5-pro",
			"gemini-1.5-flash",
		},
		"claude": {
			"claude-3-5-sonnet-20241022",
			"claude-3-5-haiku-20241022",
			"claude-3-opus-20240229",
			"claude-3-sonnet-20240229",
			"claude-3-haiku-20240307",
		},
		"openai": {
			"gpt-4o",
			"gpt-4o-mini",
			"gpt-4-turbo",
			"gpt-4",
			"gpt-3.5-turbo",
		},
		"cohere": {
			"command-r-plus",
			"command-r",
			"command",
			"command-nightly",
			"command-light",
		},
		"mistral": {
			"mistral-large-latest",
			"mistral-medium-latest",
			"mistral-small-latest",
			"codestral-latest",
		},
		"ollama": {
			"llama3.1:70b",
			"llama3.1:8b",
			"llama3.1:405b",
			"codestral:22b",
			"gemma2:27b",
			"phi3:medium",
			"mistral:7b",
			"qwen2:72b",
		},
		"perplexity": {
			"llama-3.1-sonar-large-128k-online",
			"llama-3.1-sonar-small-128k-online",
			"llama-3.1-sonar-huge-128k-online",
			"llama-3.1-8b-instruct",
			"llama-3.1-70b-instruct",
		},
		"together": {
			"meta-llama/Llama-3-70b-chat-hf",
			"meta-llama/Llama-3-8b-chat-hf",
			"mistralai/Mixtral-8x7B-Instruct-v0.1",
			"NousResearch/Nous-Hermes-2-Mixtral-8x7B-DPO",
			"teknium/OpenHermes-2.5-Mistral-7B",
		},
	}
}
