// Package bridge is the orchestration engine: it wires configuration,
// the vault client, plugins, extension servers and the active provider
// adapter together, and runs the tool-calling conversation loop.
//
// One prompt flows through a bounded state machine: send to the model,
// extract tool calls, execute them, resubmit results, repeat. A round
// either completes fully or aborts the prompt; the session itself stays
// usable for the next prompt.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"geode/config"
	"geode/mcp"
	"geode/plugins"
	"geode/provider"
	"geode/tools"
	"geode/vault"
)

// AssistantSender is the sender name attached to final reply messages.
const AssistantSender = "Geode"

// maxToolRounds caps executed tool rounds per prompt. A response that
// still requests tools after the last executed round aborts the prompt
// with a distinct error instead of looping forever.
const maxToolRounds = 10

// noTextFallback is emitted when the model's final response carried no
// text parts.
const noTextFallback = "(No text response)"

type Bridge struct {
	cfg       *config.Config
	vault     *vault.Client
	plugins   *plugins.Manager
	extension *mcp.Client
	registry  *tools.Registry
	adapter   provider.Adapter

	// One in-flight prompt per bridge.
	mu sync.Mutex
}

// New assembles the full engine and initializes the provider adapter
// with the flattened tool catalog. An adapter credential failure is
// fatal and surfaces as *provider.AuthError.
//
// Switching providers means building a new bridge from updated config;
// a live bridge is never re-pointed at a different vendor.
func New(ctx context.Context, cfg *config.Config) (*Bridge, error) {
	b := &Bridge{
		cfg:   cfg,
		vault: vault.NewClient(cfg.VaultBaseURL(), cfg.VaultAPIKey, time.Duration(cfg.RequestTimeout)*time.Second),
	}

	b.plugins = plugins.NewManager(cfg.PluginDirectory)
	b.plugins.LoadAll()

	b.extension = mcp.NewClient(cfg.EnableMCP)
	if b.extension.Enabled() {
		if err := b.extension.LoadServerConfigs(cfg.MCPConfigFile); err != nil {
			slog.Warn("extension server config load failed", "error", err)
		}
		if err := mcp.WriteExampleConfig(cfg.MCPConfigFile + ".example"); err != nil {
			slog.Warn("could not write example extension config", "error", err)
		}
	}

	b.buildRegistry()

	adapter, err := provider.New(cfg)
	if err != nil {
		return nil, err
	}
	catalog := b.registry.Catalog()
	provider.WarnMissingSchemas(catalog)
	if err := adapter.Initialize(ctx, catalog); err != nil {
		return nil, err
	}
	b.adapter = adapter

	slog.Info("bridge initialized",
		"provider", adapter.Name(), "model", cfg.ModelName, "tools", b.registry.Len())
	return b, nil
}

// buildRegistry flattens the three tool sources in fixed precedence:
// vault built-ins first, plugin tools second, extension tools last.
// Name collisions keep the earlier registrant and are logged.
func (b *Bridge) buildRegistry() {
	registry := tools.NewRegistry()

	builtins := vault.Tools(b.vault)
	for _, t := range builtins {
		if err := registry.Register(t); err != nil {
			slog.Error("built-in tool registration failed", "tool", t.Name, "error", err)
		}
	}
	for _, t := range b.plugins.AllTools() {
		if err := registry.Register(t); err != nil {
			slog.Warn("plugin tool skipped", "tool", t.Name, "error", err)
		}
	}
	for _, t := range b.extension.AvailableTools() {
		if err := registry.Register(t); err != nil {
			slog.Warn("extension tool skipped", "tool", t.Name, "error", err)
		}
	}

	slog.Info("tool registry assembled",
		"builtin", len(builtins),
		"plugins", len(b.plugins.AllTools()),
		"extension", len(b.extension.AvailableTools()),
		"total", registry.Len())
	b.registry = registry
}

// ReloadPlugins rescans the plugin directory, rebuilds the registry and
// opens a fresh provider session carrying the new catalog.
func (b *Bridge) ReloadPlugins(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.plugins.Reload()
	b.buildRegistry()
	return b.adapter.CreateSession(ctx, b.registry.Catalog())
}

// Registry exposes the flattened tool set for inspection.
func (b *Bridge) Registry() *tools.Registry { return b.registry }

// Provider returns the active adapter's name.
func (b *Bridge) Provider() string { return b.adapter.Name() }

// TestConnection probes the vault first, then the provider.
func (b *Bridge) TestConnection(ctx context.Context) (bool, string) {
	ok, msg := b.vault.TestConnection(ctx)
	if !ok {
		return false, fmt.Sprintf("Vault Connection Failed: %s", msg)
	}
	ok, msg = b.adapter.TestConnection(ctx)
	if !ok {
		return false, fmt.Sprintf("AI Provider Connection Failed: %s", msg)
	}
	return true, fmt.Sprintf("All connections successful (Vault + %s).", titleCase(b.adapter.Name()))
}

// SendMessage runs one prompt through the conversation loop, emitting
// events as it goes. Finished always fires, exactly once, last.
func (b *Bridge) SendMessage(ctx context.Context, prompt string, ev Events) {
	b.mu.Lock()
	defer b.mu.Unlock()
	defer emit(func() { ev.Finished() })

	resp, err := b.adapter.Send(ctx, provider.Input{Prompt: prompt})
	if err != nil {
		slog.Error("provider send failed", "error", err)
		emit(func() { ev.Error(FormatUserError(err)) })
		return
	}

	for round := 0; ; round++ {
		calls := extractFunctionCalls(resp)
		if len(calls) == 0 {
			break
		}
		if round == maxToolRounds {
			slog.Warn("tool-use iteration ceiling reached", "rounds", round)
			emit(func() { ev.Error("Tool-use loop exceeded maximum iterations") })
			return
		}

		results, err := b.executeRound(ctx, calls, ev)
		if err != nil {
			slog.Error("tool execution failed", "error", err)
			emit(func() { ev.Error(fmt.Sprintf("Tool execution failed: %v", err)) })
			return
		}

		resp, err = b.adapter.Send(ctx, provider.Input{Results: results})
		if err != nil {
			slog.Error("error sending function responses", "error", err)
			emit(func() { ev.Error(fmt.Sprintf("Error sending function responses: %v", err)) })
			return
		}
	}

	finalText := extractFinalText(resp)
	if finalText == "" {
		finalText = noTextFallback
	}
	emit(func() { ev.Message(AssistantSender, finalText) })
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// executeRound runs every call of one round in provider order. Any
// failure aborts the round; zero results are resubmitted.
func (b *Bridge) executeRound(ctx context.Context, calls []provider.FunctionCall, ev Events) ([]provider.FunctionResponse, error) {
	results := make([]provider.FunctionResponse, 0, len(calls))
	for _, call := range calls {
		emit(func() { ev.ToolCall(describeCall(call)) })

		tool, err := b.registry.Lookup(call.Name)
		if err != nil {
			return nil, fmt.Errorf("unknown tool function requested: %s", call.Name)
		}

		slog.Debug("executing tool", "tool", call.Name)
		result, err := tool.Handler(ctx, call.Args)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", call.Name, err)
		}

		results = append(results, provider.FunctionResponse{
			Name:     call.Name,
			Response: coerceResult(result),
		})
	}
	return results, nil
}

// describeCall renders a call as name(k='v', ...) with sorted keys.
func describeCall(call provider.FunctionCall) string {
	keys := make([]string, 0, len(call.Args))
	for k := range call.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s='%v'", k, call.Args[k]))
	}
	return fmt.Sprintf("%s(%s)", call.Name, strings.Join(pairs, ", "))
}

// coerceResult guarantees a JSON-serializable tool result; anything
// outside the plain data kinds is stringified.
func coerceResult(v any) any {
	switch v.(type) {
	case nil, string, bool, int, int32, int64, float32, float64,
		map[string]any, []any, []string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// extractFunctionCalls walks the first candidate defensively; a missing
// candidate, content or parts list simply yields no calls.
func extractFunctionCalls(resp *provider.Response) []provider.FunctionCall {
	var calls []provider.FunctionCall
	if resp == nil || len(resp.Candidates) == 0 {
		return calls
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return calls
	}
	for _, part := range content.Parts {
		if part.FunctionCall != nil {
			calls = append(calls, *part.FunctionCall)
		}
	}
	return calls
}

// extractFinalText concatenates the text parts of the first candidate
// with the same tolerance.
func extractFinalText(resp *provider.Response) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String()
}

// FormatUserError maps internal failures to the user-facing message
// taxonomy. Provider and vault auth failures collapse into one generic
// credentials message.
func FormatUserError(err error) string {
	var providerAuth *provider.AuthError
	var vaultAuth *vault.AuthError
	if errors.As(err, &providerAuth) || errors.As(err, &vaultAuth) {
		return "Authentication Error: Please check your API keys in settings."
	}
	var vaultConn *vault.ConnectionError
	if errors.As(err, &vaultConn) {
		return "Vault Connection Error: Is the vault service running with the REST API plugin enabled?"
	}
	return fmt.Sprintf("An unexpected error occurred: %v", err)
}

// emit invokes an event callback, recovering a panicking handler so one
// broken listener cannot take down the loop or suppress Finished.
func emit(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked", "panic", r)
		}
	}()
	fn()
}
