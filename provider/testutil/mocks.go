// Package testutil provides mock implementations of the provider
// interfaces for testing. Function fields override behavior per test;
// unset fields fall back to benign defaults.
package testutil

import (
	"context"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"geode/provider"
)

// MockAdapter implements provider.Adapter with overridable behavior.
type MockAdapter struct {
	NameValue     string
	StatefulValue bool

	InitializeFunc     func(ctx context.Context, tools []mcptypes.Tool) error
	CreateSessionFunc  func(ctx context.Context, tools []mcptypes.Tool) error
	TestConnectionFunc func(ctx context.Context) (bool, string)
	SendFunc           func(ctx context.Context, in provider.Input) (*provider.Response, error)

	// SendCalls records every Send input for assertions.
	SendCalls []provider.Input
}

func (m *MockAdapter) Name() string {
	if m.NameValue == "" {
		return "mock"
	}
	return m.NameValue
}

func (m *MockAdapter) Stateful() bool { return m.StatefulValue }

func (m *MockAdapter) Initialize(ctx context.Context, tools []mcptypes.Tool) error {
	if m.InitializeFunc != nil {
		return m.InitializeFunc(ctx, tools)
	}
	return nil
}

func (m *MockAdapter) CreateSession(ctx context.Context, tools []mcptypes.Tool) error {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, tools)
	}
	return nil
}

func (m *MockAdapter) TestConnection(ctx context.Context) (bool, string) {
	if m.TestConnectionFunc != nil {
		return m.TestConnectionFunc(ctx)
	}
	return true, "mock connection successful."
}

func (m *MockAdapter) Send(ctx context.Context, in provider.Input) (*provider.Response, error) {
	m.SendCalls = append(m.SendCalls, in)
	if m.SendFunc != nil {
		return m.SendFunc(ctx, in)
	}
	return TextResponse("mock response"), nil
}

// TextResponse builds a single-candidate response holding only text.
func TextResponse(text string) *provider.Response {
	return &provider.Response{Candidates: []provider.Candidate{{
		Content: &provider.Content{Parts: []provider.Part{{Text: text}}},
	}}}
}

// ToolCallResponse builds a single-candidate response requesting the
// given tool calls.
func ToolCallResponse(calls ...provider.FunctionCall) *provider.Response {
	content := &provider.Content{}
	for i := range calls {
		call := calls[i]
		content.Parts = append(content.Parts, provider.Part{FunctionCall: &call})
	}
	return &provider.Response{Candidates: []provider.Candidate{{Content: content}}}
}
