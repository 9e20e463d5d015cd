// Package config loads, validates and persists the application
// configuration. The on-disk format is a flat JSON object; selected fields
// can be overridden through environment variables at load time.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"geode/util"
)

// ErrInvalid marks configuration validation failures. Use errors.Is to
// detect them.
var ErrInvalid = errors.New("invalid configuration")

// Providers lists every supported AI provider name, in display order.
var Providers = []string{
	"gemini", "claude", "openai", "cohere", "mistral", "ollama", "perplexity", "together",
}

type Config struct {
	// Per-provider credentials.
	GeminiAPIKey     string `json:"gemini_api_key"`
	ClaudeAPIKey     string `json:"claude_api_key"`
	OpenAIAPIKey     string `json:"openai_api_key"`
	CohereAPIKey     string `json:"cohere_api_key"`
	MistralAPIKey    string `json:"mistral_api_key"`
	PerplexityAPIKey string `json:"perplexity_api_key"`
	TogetherAPIKey   string `json:"together_api_key"`
	VaultAPIKey      string `json:"vault_api_key"`

	OllamaBaseURL string `json:"ollama_base_url"`

	AIProvider string `json:"ai_provider"`
	ModelName  string `json:"model_name"`

	// Vault connection settings.
	VaultHost      string `json:"vault_host"`
	VaultPort      int    `json:"vault_port"`
	RequestTimeout int    `json:"request_timeout"` // seconds

	// Application behavior.
	PluginDirectory string `json:"plugin_directory"`
	ChatHistoryFile string `json:"chat_history_file"`
	MaxChatHistory  int    `json:"max_chat_history"`

	// Optional extension servers.
	EnableMCP     bool   `json:"enable_mcp"`
	MCPConfigFile string `json:"mcp_config_file"`

	LogLevel string `json:"log_level"`

	path string
	mu   sync.Mutex
}

// Default returns a Config populated with sensible defaults. API keys are
// intentionally empty.
func Default() *Config {
	return &Config{
		OllamaBaseURL:   "http://localhost:11434",
		AIProvider:      "gemini",
		ModelName:       "gemini-2.5-pro",
		VaultHost:       "127.0.0.1",
		VaultPort:       27124,
		RequestTimeout:  30,
		PluginDirectory: "plugins",
		ChatHistoryFile: "chat_history.json",
		MaxChatHistory:  50,
		EnableMCP:       true,
		MCPConfigFile:   "mcp_servers.json",
		LogLevel:        "info",
	}
}

// Load reads the configuration file at path, then applies environment
// overrides. A missing file is not an error; defaults are used. A present
// but unparseable file is.
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.Debug("config file absent, using defaults", "path", path)
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		slog.Info("configuration loaded", "path", path)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides copies non-empty environment variables over the loaded
// values. Environment always wins over the file.
func (c *Config) applyEnvOverrides() {
	overrides := []struct {
		env    string
		target *string
	}{
		{"GEMINI_API_KEY", &c.GeminiAPIKey},
		{"CLAUDE_API_KEY", &c.ClaudeAPIKey},
		{"OPENAI_API_KEY", &c.OpenAIAPIKey},
		{"COHERE_API_KEY", &c.CohereAPIKey},
		{"MISTRAL_API_KEY", &c.MistralAPIKey},
		{"PERPLEXITY_API_KEY", &c.PerplexityAPIKey},
		{"TOGETHER_API_KEY", &c.TogetherAPIKey},
		{"VAULT_API_KEY", &c.VaultAPIKey},
		{"OLLAMA_BASE_URL", &c.OllamaBaseURL},
		{"AI_PROVIDER", &c.AIProvider},
		{"AI_MODEL", &c.ModelName},
		{"VAULT_HOST", &c.VaultHost},
	}

	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
			slog.Debug("environment override applied", "var", o.env)
		}
	}

	if v := os.Getenv("VAULT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("ignoring non-numeric VAULT_PORT", "value", v)
		} else {
			c.VaultPort = port
		}
	}
}

// Save persists the configuration back to the file it was loaded from.
// The write is mutex-guarded and atomic so a save racing another save or a
// crash never leaves a torn file.
func (c *Config) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.path == "" {
		c.path = "config.json"
	}

	data, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}

	if err := util.AtomicWriteFile(c.path, data, 0600); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	slog.Info("configuration saved", "path", c.path)
	return nil
}

// Validate checks every field the runtime depends on. The returned error
// wraps ErrInvalid and carries a user-presentable message.
func (c *Config) Validate() error {
	switch c.AIProvider {
	case "gemini", "claude", "openai", "cohere", "mistral", "perplexity", "together":
		if c.CurrentAPIKey() == "" {
			return fmt.Errorf("%w: %s API key cannot be empty when using the %s provider",
				ErrInvalid, c.AIProvider, c.AIProvider)
		}
	case "ollama":
		// Key-less local provider; only the base URL matters.
		if c.OllamaBaseURL == "" {
			return fmt.Errorf("%w: Ollama base URL cannot be empty when using the Ollama provider", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown AI provider %q", ErrInvalid, c.AIProvider)
	}

	if c.VaultAPIKey == "" {
		return fmt.Errorf("%w: vault API key cannot be empty", ErrInvalid)
	}
	if c.ModelName == "" {
		return fmt.Errorf("%w: model name cannot be empty", ErrInvalid)
	}
	if c.VaultHost == "" {
		return fmt.Errorf("%w: vault host cannot be empty", ErrInvalid)
	}
	if c.VaultPort < 1 || c.VaultPort > 65535 {
		return fmt.Errorf("%w: vault port must be between 1 and 65535", ErrInvalid)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request timeout must be positive", ErrInvalid)
	}
	if c.ChatHistoryFile == "" {
		return fmt.Errorf("%w: chat history file path cannot be empty", ErrInvalid)
	}
	if c.PluginDirectory == "" {
		return fmt.Errorf("%w: plugin directory cannot be empty", ErrInvalid)
	}
	return nil
}

// CurrentAPIKey returns the credential for the selected provider. Ollama
// has no key and returns "".
func (c *Config) CurrentAPIKey() string {
	switch c.AIProvider {
	case "gemini":
		return c.GeminiAPIKey
	case "claude":
		return c.ClaudeAPIKey
	case "openai":
		return c.OpenAIAPIKey
	case "cohere":
		return c.CohereAPIKey
	case "mistral":
		return c.MistralAPIKey
	case "perplexity":
		return c.PerplexityAPIKey
	case "together":
		return c.TogetherAPIKey
	default:
		return ""
	}
}

// VaultBaseURL builds the base URL of the local vault REST service.
func (c *Config) VaultBaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.VaultHost, c.VaultPort)
}
