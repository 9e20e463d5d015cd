// Package provider defines the abstract interface over the supported LLM
// vendors.
//
// Eight providers are supported (gemini, claude, openai, cohere, mistral,
// ollama, perplexity, together) behind one Adapter interface, so the
// orchestration loop stays vendor-agnostic. Each adapter translates its
// vendor's wire format into one normalized Response shape: candidates
// containing content parts, where a part is either text or a function
// call. The orchestrator walks that shape; it never sees vendor types.
//
// Session statefulness differs by vendor. Gemini holds a server-side chat
// handle, so resubmitted tool results reference remote state. Every other
// vendor is client-stateless: the adapter retains the accumulated message
// transcript locally and replays it on each call.
package provider

import (
	"context"
	"fmt"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// Input carries one turn to Send: either a fresh user prompt or the
// batch of tool results answering the previous response's function
// calls. Exactly one of the two fields is set.
type Input struct {
	Prompt  string
	Results []FunctionResponse
}

// FunctionResponse is one executed tool result keyed by the tool name
// the model requested. Response must be JSON-serializable.
type FunctionResponse struct {
	Name     string
	Response any
}

// FunctionCall is a tool invocation requested by the model.
type FunctionCall struct {
	Name string
	Args map[string]any
}

// Part is one piece of model output: text, a function call, or both
// empty (vendors emit empty parts; extraction tolerates them).
type Part struct {
	Text         string
	FunctionCall *FunctionCall
}

type Content struct {
	Parts []Part
}

type Candidate struct {
	Content *Content
}

// Response is the normalized model reply. Adapters guarantee nothing
// about candidate count or content presence; consumers must walk it
// defensively.
type Response struct {
	Candidates []Candidate
}

// textResponse wraps plain text in the normalized shape.
func textResponse(text string) *Response {
	return &Response{Candidates: []Candidate{{Content: &Content{Parts: []Part{{Text: text}}}}}}
}

// Adapter is the contract every vendor client implements.
//
// Initialize builds the underlying client from credentials and opens the
// initial session; a credential or construction failure surfaces as
// *AuthError and leaves no session reachable by Send. CreateSession
// resets the conversation (stateful vendors open a fresh remote handle,
// stateless ones clear the local transcript). TestConnection performs
// one minimal "Hello" round-trip and never returns an error value.
type Adapter interface {
	Initialize(ctx context.Context, tools []mcptypes.Tool) error
	CreateSession(ctx context.Context, tools []mcptypes.Tool) error
	TestConnection(ctx context.Context) (bool, string)
	Send(ctx context.Context, in Input) (*Response, error)
	Name() string
	Stateful() bool
}

// AuthError marks credential problems and client-construction failures
// at initialization. Fatal: the chat cannot start.
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s authentication failed: %v", e.Provider, e.Err)
}
func (e *AuthError) Unwrap() error { return e.Err }

// APIError marks failures during session creation.
type APIError struct {
	Provider string
	Err      error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error: %v", e.Provider, e.Err)
}
func (e *APIError) Unwrap() error { return e.Err }
