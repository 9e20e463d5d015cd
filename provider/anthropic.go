package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// ClaudeAdapter talks to Anthropic's Messages API. Client-stateless: the
// full transcript is retained locally and replayed on every call.
//
// Anthropic correlates tool results by tool_use_id while the orchestrator
// keys results by tool name, so the adapter records the IDs of the last
// response's tool_use blocks (FIFO per name) and reattaches them on
// resubmission.
type ClaudeAdapter struct {
	apiKey   string
	model    string
	client   *anthropic.Client
	tools    []anthropic.ToolUnionParam
	messages []anthropic.MessageParam
	pending  map[string][]string
}

func NewClaudeAdapter(apiKey, model string) *ClaudeAdapter {
	return &ClaudeAdapter{apiKey: apiKey, model: model}
}

func (a *ClaudeAdapter) Name() string   { return "claude" }
func (a *ClaudeAdapter) Stateful() bool { return false }

func (a *ClaudeAdapter) Initialize(ctx context.Context, tools []mcptypes.Tool) error {
	if a.apiKey == "" {
		return &AuthError{Provider: a.Name(), Err: fmt.Errorf("API key is required")}
	}

	client := anthropic.NewClient(option.WithAPIKey(a.apiKey))
	a.client = &client

	if err := a.CreateSession(ctx, tools); err != nil {
		a.client = nil
		return err
	}
	slog.Info("claude client initialized", "model", a.model)
	return nil
}

func (a *ClaudeAdapter) CreateSession(ctx context.Context, tools []mcptypes.Tool) error {
	if a.client == nil {
		return &APIError{Provider: a.Name(), Err: fmt.Errorf("client not initialized")}
	}
	a.tools = convertToolsToAnthropic(tools)
	a.messages = nil
	a.pending = make(map[string][]string)
	slog.Info("claude chat session created", "model", a.model)
	return nil
}

func (a *ClaudeAdapter) TestConnection(ctx context.Context) (bool, string) {
	if a.client == nil {
		return false, "Claude Error: client not initialized"
	}
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 10,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("Hello")),
		},
	})
	if err != nil {
		slog.Error("claude connection test failed", "error", err)
		return false, fmt.Sprintf("Claude Error: %v", err)
	}
	if msg == nil || len(msg.Content) == 0 {
		return false, "Claude: Failed to get a valid response."
	}
	return true, "Claude connection successful."
}

func (a *ClaudeAdapter) Send(ctx context.Context, in Input) (*Response, error) {
	if a.client == nil || a.pending == nil {
		return nil, fmt.Errorf("claude: no active chat session")
	}

	if len(in.Results) > 0 {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(in.Results))
		for _, result := range in.Results {
			blocks = append(blocks, anthropic.NewToolResultBlock(
				a.takeToolUseID(result.Name),
				stringifyResult(result.Response),
				false,
			))
		}
		a.messages = append(a.messages, anthropic.NewUserMessage(blocks...))
	} else {
		a.messages = append(a.messages, anthropic.NewUserMessage(anthropic.NewTextBlock(in.Prompt)))
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 4096,
		Messages:  a.messages,
	}
	if len(a.tools) > 0 {
		params.Tools = a.tools
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}

	a.messages = append(a.messages, msg.ToParam())
	return a.normalize(msg), nil
}

// takeToolUseID pops the oldest recorded tool_use ID for name. Falls back
// to the name itself if the model produced a call the adapter never saw.
func (a *ClaudeAdapter) takeToolUseID(name string) string {
	ids := a.pending[name]
	if len(ids) == 0 {
		return name
	}
	id := ids[0]
	a.pending[name] = ids[1:]
	return id
}

func (a *ClaudeAdapter) normalize(msg *anthropic.Message) *Response {
	content := &Content{}
	a.pending = make(map[string][]string)

	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			content.Parts = append(content.Parts, Part{Text: b.Text})
		case anthropic.ToolUseBlock:
			args := map[string]any{}
			if len(b.Input) > 0 {
				if err := json.Unmarshal(b.Input, &args); err != nil {
					slog.Warn("claude tool input is not a JSON object", "tool", b.Name, "error", err)
				}
			}
			a.pending[b.Name] = append(a.pending[b.Name], b.ID)
			content.Parts = append(content.Parts, Part{
				FunctionCall: &FunctionCall{Name: b.Name, Args: args},
			})
		}
	}

	return &Response{Candidates: []Candidate{{Content: content}}}
}

// stringifyResult renders a tool result as the text payload Anthropic's
// tool_result blocks carry.
func stringifyResult(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
