// Package tools defines the callable-tool descriptor and the flattened
// registry the orchestrator dispatches through. Tools come from three
// sources registered in order: built-in vault operations, discovered
// plugins, and optional extension servers.
package tools

import (
	"context"
	"fmt"
	"sync"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// Tool is one callable capability offered to the model.
//
// Schema describes the tool's arguments in provider-neutral form. A zero
// Schema is allowed; the provider layer degrades it to a placeholder
// object schema, which vendors accept but gives the model no argument
// guidance.
type Tool struct {
	Name        string
	Description string
	Schema      mcptypes.ToolInputSchema
	Handler     func(ctx context.Context, args map[string]any) (any, error)
}

// ErrDuplicate is returned by Register when a tool name is already taken.
// The first registrant stays callable.
type ErrDuplicate struct {
	ToolName string
}

func (e *ErrDuplicate) Error() string {
	return fmt.Sprintf("tool %q is already registered", e.ToolName)
}

// ErrUnknownTool is returned by Lookup for a name no registrant claimed.
// Callers should abort the round rather than retry.
type ErrUnknownTool struct {
	ToolName string
}

func (e *ErrUnknownTool) Error() string {
	return fmt.Sprintf("tool %q is not registered", e.ToolName)
}

// Registry is the flattened name→tool map. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool. Duplicate names are rejected with *ErrDuplicate
// and the existing registration is left untouched.
func (r *Registry) Register(t *Tool) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("tool must have a name")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %q has no handler", t.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name]; exists {
		return &ErrDuplicate{ToolName: t.Name}
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// Lookup returns the tool for name or *ErrUnknownTool.
func (r *Registry) Lookup(name string) (*Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, &ErrUnknownTool{ToolName: name}
	}
	return t, nil
}

// Catalog returns the registered tools as provider-neutral descriptors in
// registration order. The returned slice is a snapshot; later Register
// calls do not affect holders.
func (r *Registry) Catalog() []mcptypes.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	catalog := make([]mcptypes.Tool, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		catalog = append(catalog, mcptypes.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Schema,
		})
	}
	return catalog
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
