package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

const cohereDefaultBaseURL = "https://api.cohere.com"

// CohereAdapter is a hand-rolled client for Cohere's v1 chat API; no Go
// SDK is carried for it. Client-stateless: chat history accumulates
// locally in Cohere's USER/CHATBOT role format and is replayed per call.
type CohereAdapter struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
	tools   []cohereTool
	history []cohereChatMessage
	active  bool
}

type cohereChatMessage struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

type cohereTool struct {
	Name                 string                         `json:"name"`
	Description          string                         `json:"description"`
	ParameterDefinitions map[string]cohereParameterSpec `json:"parameter_definitions"`
}

type cohereParameterSpec struct {
	Description string `json:"description,omitempty"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
}

type cohereToolCall struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

type cohereToolResult struct {
	Call    cohereToolCall   `json:"call"`
	Outputs []map[string]any `json:"outputs"`
}

type cohereChatRequest struct {
	Model       string              `json:"model"`
	Message     string              `json:"message,omitempty"`
	ChatHistory []cohereChatMessage `json:"chat_history,omitempty"`
	Tools       []cohereTool        `json:"tools,omitempty"`
	ToolResults []cohereToolResult  `json:"tool_results,omitempty"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
}

type cohereChatResponse struct {
	Text      string           `json:"text"`
	ToolCalls []cohereToolCall `json:"tool_calls"`
}

func NewCohereAdapter(apiKey, model string) *CohereAdapter {
	return &CohereAdapter{
		apiKey:  apiKey,
		model:   model,
		baseURL: cohereDefaultBaseURL,
		http:    &http.Client{Timeout: 120 * time.Second},
	}
}

// SetBaseURL points the adapter at a different endpoint. Used by tests.
func (a *CohereAdapter) SetBaseURL(u string) { a.baseURL = u }

func (a *CohereAdapter) Name() string   { return "cohere" }
func (a *CohereAdapter) Stateful() bool { return false }

func (a *CohereAdapter) Initialize(ctx context.Context, tools []mcptypes.Tool) error {
	if a.apiKey == "" {
		return &AuthError{Provider: a.Name(), Err: fmt.Errorf("API key is required")}
	}
	if err := a.CreateSession(ctx, tools); err != nil {
		return err
	}
	slog.Info("cohere client initialized", "model", a.model)
	return nil
}

func (a *CohereAdapter) CreateSession(ctx context.Context, tools []mcptypes.Tool) error {
	a.tools = convertToolsToCohere(tools)
	a.history = nil
	a.active = true
	slog.Info("cohere chat session created", "model", a.model)
	return nil
}

func (a *CohereAdapter) TestConnection(ctx context.Context) (bool, string) {
	resp, err := a.chat(ctx, cohereChatRequest{
		Model:     a.model,
		Message:   "Hello",
		MaxTokens: 10,
	})
	if err != nil {
		slog.Error("cohere connection test failed", "error", err)
		return false, fmt.Sprintf("Cohere Error: %v", err)
	}
	if resp.Text == "" {
		return false, "Cohere: Failed to get a valid response."
	}
	return true, "Cohere connection successful."
}

func (a *CohereAdapter) Send(ctx context.Context, in Input) (*Response, error) {
	if !a.active {
		return nil, fmt.Errorf("cohere: no active chat session")
	}

	req := cohereChatRequest{
		Model:       a.model,
		ChatHistory: a.history,
		Tools:       a.tools,
		MaxTokens:   4096,
	}
	if len(in.Results) > 0 {
		for _, result := range in.Results {
			req.ToolResults = append(req.ToolResults, cohereToolResult{
				Call:    cohereToolCall{Name: result.Name, Parameters: map[string]any{}},
				Outputs: []map[string]any{wrapFunctionResult(result.Response)},
			})
		}
	} else {
		req.Message = in.Prompt
	}

	resp, err := a.chat(ctx, req)
	if err != nil {
		return nil, err
	}

	if in.Prompt != "" {
		a.history = append(a.history, cohereChatMessage{Role: "USER", Message: in.Prompt})
	}
	if resp.Text != "" {
		a.history = append(a.history, cohereChatMessage{Role: "CHATBOT", Message: resp.Text})
	}

	return normalizeCohere(resp), nil
}

func (a *CohereAdapter) chat(ctx context.Context, req cohereChatRequest) (*cohereChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := a.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cohere API returned %d: %s", httpResp.StatusCode, data)
	}

	var resp cohereChatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

func normalizeCohere(resp *cohereChatResponse) *Response {
	content := &Content{}
	if resp.Text != "" {
		content.Parts = append(content.Parts, Part{Text: resp.Text})
	}
	for _, call := range resp.ToolCalls {
		args := call.Parameters
		if args == nil {
			args = map[string]any{}
		}
		content.Parts = append(content.Parts, Part{
			FunctionCall: &FunctionCall{Name: call.Name, Args: args},
		})
	}
	return &Response{Candidates: []Candidate{{Content: content}}}
}

// convertToolsToCohere converts the neutral catalog to Cohere's
// parameter_definitions format.
func convertToolsToCohere(catalog []mcptypes.Tool) []cohereTool {
	if len(catalog) == 0 {
		return nil
	}

	out := make([]cohereTool, 0, len(catalog))
	for _, t := range catalog {
		schema := schemaOrPlaceholder(t)
		required := make(map[string]bool, len(schema.Required))
		for _, r := range schema.Required {
			required[r] = true
		}

		defs := make(map[string]cohereParameterSpec, len(schema.Properties))
		for name, value := range schema.Properties {
			spec := cohereParameterSpec{Type: "str", Required: required[name]}
			if propMap, ok := value.(map[string]any); ok {
				if desc, ok := propMap["description"].(string); ok {
					spec.Description = desc
				}
				if typeVal, ok := propMap["type"].(string); ok {
					spec.Type = cohereParamType(typeVal)
				}
			}
			defs[name] = spec
		}

		out = append(out, cohereTool{
			Name:                 t.Name,
			Description:          t.Description,
			ParameterDefinitions: defs,
		})
	}
	return out
}

func cohereParamType(jsonType string) string {
	switch jsonType {
	case "integer":
		return "int"
	case "number":
		return "float"
	case "boolean":
		return "bool"
	case "array":
		return "list"
	case "object":
		return "dict"
	default:
		return "str"
	}
}
