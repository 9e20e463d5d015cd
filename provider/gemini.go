package provider

import (
	"context"
	"fmt"
	"log/slog"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"google.golang.org/genai"
)

// GeminiAdapter is the one server-stateful adapter: the conversation
// lives in a remote chat handle, so Send transmits only the new turn and
// never replays the transcript.
type GeminiAdapter struct {
	apiKey string
	model  string
	client *genai.Client
	chat   *genai.Chat
	tools  []*genai.Tool
}

func NewGeminiAdapter(apiKey, model string) *GeminiAdapter {
	return &GeminiAdapter{apiKey: apiKey, model: model}
}

func (a *GeminiAdapter) Name() string   { return "gemini" }
func (a *GeminiAdapter) Stateful() bool { return true }

func (a *GeminiAdapter) Initialize(ctx context.Context, tools []mcptypes.Tool) error {
	if a.apiKey == "" {
		return &AuthError{Provider: a.Name(), Err: fmt.Errorf("API key is required")}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  a.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return &AuthError{Provider: a.Name(), Err: fmt.Errorf("failed to create client: %w", err)}
	}
	a.client = client

	if err := a.CreateSession(ctx, tools); err != nil {
		a.client = nil
		return err
	}
	slog.Info("gemini client initialized", "model", a.model)
	return nil
}

func (a *GeminiAdapter) CreateSession(ctx context.Context, tools []mcptypes.Tool) error {
	if a.client == nil {
		return &APIError{Provider: a.Name(), Err: fmt.Errorf("client not initialized")}
	}

	a.tools = convertToolsToGemini(tools)
	var cfg *genai.GenerateContentConfig
	if len(a.tools) > 0 {
		cfg = &genai.GenerateContentConfig{Tools: a.tools}
	}

	chat, err := a.client.Chats.Create(ctx, a.model, cfg, nil)
	if err != nil {
		return &APIError{Provider: a.Name(), Err: fmt.Errorf("failed to create chat session with model %q: %w", a.model, err)}
	}
	a.chat = chat
	slog.Info("gemini chat session created", "model", a.model)
	return nil
}

func (a *GeminiAdapter) TestConnection(ctx context.Context) (bool, string) {
	if a.client == nil {
		return false, "Gemini Error: client not initialized"
	}
	resp, err := a.client.Models.GenerateContent(ctx, a.model, genai.Text("Hello"), nil)
	if err != nil {
		slog.Error("gemini connection test failed", "error", err)
		return false, fmt.Sprintf("Gemini Error: %v", err)
	}
	if resp == nil || resp.Text() == "" {
		return false, "Gemini: Failed to get a valid response."
	}
	return true, "Gemini connection successful."
}

func (a *GeminiAdapter) Send(ctx context.Context, in Input) (*Response, error) {
	if a.chat == nil {
		return nil, fmt.Errorf("gemini: no active chat session")
	}

	var parts []genai.Part
	if len(in.Results) > 0 {
		for _, result := range in.Results {
			parts = append(parts, genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					Name:     result.Name,
					Response: wrapFunctionResult(result.Response),
				},
			})
		}
	} else {
		parts = []genai.Part{{Text: in.Prompt}}
	}

	resp, err := a.chat.SendMessage(ctx, parts...)
	if err != nil {
		return nil, err
	}
	return normalizeGemini(resp), nil
}

// wrapFunctionResult fits an arbitrary serializable tool result into the
// map shape Gemini requires for function responses.
func wrapFunctionResult(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{"result": v}
}

func normalizeGemini(resp *genai.GenerateContentResponse) *Response {
	out := &Response{}
	if resp == nil {
		return out
	}
	for _, cand := range resp.Candidates {
		candidate := Candidate{}
		if cand != nil && cand.Content != nil {
			content := &Content{}
			for _, part := range cand.Content.Parts {
				if part == nil {
					continue
				}
				p := Part{Text: part.Text}
				if part.FunctionCall != nil {
					p.FunctionCall = &FunctionCall{
						Name: part.FunctionCall.Name,
						Args: part.FunctionCall.Args,
					}
				}
				content.Parts = append(content.Parts, p)
			}
			candidate.Content = content
		}
		out.Candidates = append(out.Candidates, candidate)
	}
	return out
}
