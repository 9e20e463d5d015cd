package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAICompatAdapter serves every vendor speaking the OpenAI chat
// completions dialect: OpenAI itself plus Perplexity, Together and
// Mistral, which differ only in base URL. Client-stateless with a
// locally replayed transcript; tool results are correlated back to the
// vendor's tool_call IDs recorded from the previous response.
type OpenAICompatAdapter struct {
	name     string
	baseURL  string
	apiKey   string
	model    string
	client   *openai.Client
	tools    []openai.ChatCompletionToolUnionParam
	messages []openai.ChatCompletionMessageParamUnion
	pending  map[string][]string
}

func NewOpenAIAdapter(apiKey, model string) *OpenAICompatAdapter {
	return &OpenAICompatAdapter{name: "openai", apiKey: apiKey, model: model}
}

func NewPerplexityAdapter(apiKey, model string) *OpenAICompatAdapter {
	return &OpenAICompatAdapter{name: "perplexity", baseURL: "https://api.perplexity.ai", apiKey: apiKey, model: model}
}

func NewTogetherAdapter(apiKey, model string) *OpenAICompatAdapter {
	return &OpenAICompatAdapter{name: "together", baseURL: "https://api.together.xyz/v1", apiKey: apiKey, model: model}
}

func NewMistralAdapter(apiKey, model string) *OpenAICompatAdapter {
	return &OpenAICompatAdapter{name: "mistral", baseURL: "https://api.mistral.ai/v1", apiKey: apiKey, model: model}
}

func (a *OpenAICompatAdapter) Name() string   { return a.name }
func (a *OpenAICompatAdapter) Stateful() bool { return false }

func (a *OpenAICompatAdapter) Initialize(ctx context.Context, tools []mcptypes.Tool) error {
	if a.apiKey == "" {
		return &AuthError{Provider: a.name, Err: fmt.Errorf("API key is required")}
	}

	opts := []option.RequestOption{option.WithAPIKey(a.apiKey)}
	if a.baseURL != "" {
		opts = append(opts, option.WithBaseURL(a.baseURL))
	}
	client := openai.NewClient(opts...)
	a.client = &client

	if err := a.CreateSession(ctx, tools); err != nil {
		a.client = nil
		return err
	}
	slog.Info("openai-compatible client initialized", "provider", a.name, "model", a.model)
	return nil
}

func (a *OpenAICompatAdapter) CreateSession(ctx context.Context, tools []mcptypes.Tool) error {
	if a.client == nil {
		return &APIError{Provider: a.name, Err: fmt.Errorf("client not initialized")}
	}
	a.tools = convertToolsToOpenAI(tools)
	a.messages = nil
	a.pending = make(map[string][]string)
	slog.Info("chat session created", "provider", a.name, "model", a.model)
	return nil
}

func (a *OpenAICompatAdapter) TestConnection(ctx context.Context) (bool, string) {
	if a.client == nil {
		return false, fmt.Sprintf("%s Error: client not initialized", a.name)
	}
	completion, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(a.model),
		Messages:  []openai.ChatCompletionMessageParamUnion{openai.UserMessage("Hello")},
		MaxTokens: openai.Int(10),
	})
	if err != nil {
		slog.Error("connection test failed", "provider", a.name, "error", err)
		return false, fmt.Sprintf("%s Error: %v", a.name, err)
	}
	if completion == nil || len(completion.Choices) == 0 {
		return false, fmt.Sprintf("%s: Failed to get a valid response.", a.name)
	}
	return true, fmt.Sprintf("%s connection successful.", a.name)
}

func (a *OpenAICompatAdapter) Send(ctx context.Context, in Input) (*Response, error) {
	if a.client == nil || a.pending == nil {
		return nil, fmt.Errorf("%s: no active chat session", a.name)
	}

	if len(in.Results) > 0 {
		for _, result := range in.Results {
			a.messages = append(a.messages, openai.ToolMessage(
				stringifyResult(result.Response),
				a.takeToolCallID(result.Name),
			))
		}
	} else {
		a.messages = append(a.messages, openai.UserMessage(in.Prompt))
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(a.model),
		Messages: a.messages,
	}
	if len(a.tools) > 0 {
		params.Tools = a.tools
	}

	completion, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(completion.Choices) == 0 {
		return &Response{}, nil
	}

	message := completion.Choices[0].Message
	a.messages = append(a.messages, message.ToParam())
	return a.normalize(message), nil
}

func (a *OpenAICompatAdapter) takeToolCallID(name string) string {
	ids := a.pending[name]
	if len(ids) == 0 {
		return name
	}
	id := ids[0]
	a.pending[name] = ids[1:]
	return id
}

func (a *OpenAICompatAdapter) normalize(message openai.ChatCompletionMessage) *Response {
	content := &Content{}
	a.pending = make(map[string][]string)

	if message.Content != "" {
		content.Parts = append(content.Parts, Part{Text: message.Content})
	}
	for _, call := range message.ToolCalls {
		args := map[string]any{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				slog.Warn("tool arguments are not a JSON object",
					"provider", a.name, "tool", call.Function.Name, "error", err)
			}
		}
		a.pending[call.Function.Name] = append(a.pending[call.Function.Name], call.ID)
		content.Parts = append(content.Parts, Part{
			FunctionCall: &FunctionCall{Name: call.Function.Name, Args: args},
		})
	}

	return &Response{Candidates: []Candidate{{Content: content}}}
}
