package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
)

// OllamaAdapter drives a local Ollama server. Key-less; the only
// credential-equivalent is a reachable base URL. Client-stateless with a
// locally replayed transcript. Responses are requested unstreamed so one
// callback delivers the whole message.
type OllamaAdapter struct {
	baseURL  string
	model    string
	client   *api.Client
	tools    []api.Tool
	messages []api.Message
}

func NewOllamaAdapter(baseURL, model string) *OllamaAdapter {
	return &OllamaAdapter{baseURL: baseURL, model: model}
}

func (a *OllamaAdapter) Name() string   { return "ollama" }
func (a *OllamaAdapter) Stateful() bool { return false }

func (a *OllamaAdapter) Initialize(ctx context.Context, tools []mcptypes.Tool) error {
	if a.baseURL == "" {
		return &AuthError{Provider: a.Name(), Err: fmt.Errorf("base URL is required")}
	}

	parsed, err := url.Parse(a.baseURL)
	if err != nil {
		return &AuthError{Provider: a.Name(), Err: fmt.Errorf("invalid base URL %q: %w", a.baseURL, err)}
	}
	a.client = api.NewClient(parsed, http.DefaultClient)

	if err := a.CreateSession(ctx, tools); err != nil {
		a.client = nil
		return err
	}
	slog.Info("ollama client initialized", "base_url", a.baseURL, "model", a.model)
	return nil
}

func (a *OllamaAdapter) CreateSession(ctx context.Context, tools []mcptypes.Tool) error {
	if a.client == nil {
		return &APIError{Provider: a.Name(), Err: fmt.Errorf("client not initialized")}
	}
	a.tools = convertToolsToOllama(tools)
	a.messages = nil
	slog.Info("ollama chat session created", "model", a.model)
	return nil
}

func (a *OllamaAdapter) TestConnection(ctx context.Context) (bool, string) {
	if a.client == nil {
		return false, "Ollama Error: client not initialized"
	}
	if _, err := a.client.List(ctx); err != nil {
		slog.Error("ollama connection test failed", "error", err)
		return false, fmt.Sprintf("Ollama Error: %v", err)
	}
	return true, "Ollama connection successful."
}

func (a *OllamaAdapter) Send(ctx context.Context, in Input) (*Response, error) {
	if a.client == nil {
		return nil, fmt.Errorf("ollama: no active chat session")
	}

	if len(in.Results) > 0 {
		for _, result := range in.Results {
			a.messages = append(a.messages, api.Message{
				Role:    "tool",
				Content: stringifyResult(result.Response),
			})
		}
	} else {
		a.messages = append(a.messages, api.Message{Role: "user", Content: in.Prompt})
	}

	stream := false
	req := &api.ChatRequest{
		Model:    a.model,
		Messages: a.messages,
		Tools:    a.tools,
		Stream:   &stream,
	}

	var reply api.Message
	err := a.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		reply = resp.Message
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.messages = append(a.messages, reply)
	return normalizeOllama(reply), nil
}

func normalizeOllama(message api.Message) *Response {
	content := &Content{}
	if message.Content != "" {
		content.Parts = append(content.Parts, Part{Text: message.Content})
	}
	for _, call := range message.ToolCalls {
		content.Parts = append(content.Parts, Part{
			FunctionCall: &FunctionCall{
				Name: call.Function.Name,
				Args: map[string]any(call.Function.Arguments),
			},
		})
	}
	return &Response{Candidates: []Candidate{{Content: content}}}
}
