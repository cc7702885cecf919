// Package tools holds the tool registry, the built-in tool
// implementations, and the dispatcher that routes every call through the
// safety gates in a fixed order.
package tools

import (
	"context"
	"sort"
	"sync"
)

// Handler executes one tool call. Input is the raw tool input string;
// structured tools split it on newlines into sub-fields.
type Handler func(ctx context.Context, input string) (string, error)

// Tool is one registered capability.
type Tool struct {
	Name        string
	Description string
	// Write marks tools that mutate state. Write tools are unreachable
	// below the workspace level and are subject to the write cooldown.
	Write   bool
	Handler Handler
}

// writeTools classifies the built-in tool names that mutate state. The
// shell is classified as a write tool: it can mutate even when the
// command looks read-only, and the finer-grained shell gate decides the
// rest.
var writeTools = map[string]bool{
	"write_file":  true,
	"append_file": true,
	"delete_file": true,
	"make_dir":    true,
	"move_path":   true,
	"git_add":     true,
	"git_commit":  true,
	"shell":       true,
}

// IsWriteTool reports whether name is classified as mutating.
func IsWriteTool(name string) bool { return writeTools[name] }

// Registry maps tool names to implementations. Registration overwrites
// in place, so a plugin manifest can shadow a built-in.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool. The write classification table
// overrides the flag for known mutating names so a plugin cannot
// re-register shell as read-only.
func (r *Registry) Register(t Tool) {
	if writeTools[t.Name] {
		t.Write = true
	}
	r.mu.Lock()
	r.tools[t.Name] = t
	r.mu.Unlock()
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
