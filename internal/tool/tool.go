// Package tool defines the kernel's Tool boundary and a registry of the
// built-ins the core dispatches by name: write_file, edit_file, read_file,
// codebase_search, and shell invocations. Each built-in's description and
// JSON schema are generated at load time from its schemas/<name>.toml file
// (see schemas.go) rather than hand-written as Go map literals, so adding
// an argument to a tool's declared shape never touches its Go code.
//
// The registry-built-at-startup shape, and its switch-on-name dispatch,
// follows the executor pattern observed in the retrieved Pulse
// internal/ai/tools executor (ExecuteTool switching on tool name against a
// registered handler set) — replacing Python's decorator-based tool
// registration with an explicit Go map built in Register.
package tool

import (
	"context"
	"fmt"

	"github.com/sunwell-ai/sunwell/internal/kernelerr"
)

// Call is one tool invocation a model requested.
type Call struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Result is what a Tool.Execute returns.
type Result struct {
	Success   bool
	Output    string
	Artifacts []string // paths written/modified/read, for lineage recording
}

// Tool is the boundary every built-in and user-declared tool implements.
type Tool interface {
	Name() string
	Description() string
	Schema() map[string]any // JSON schema for Arguments, shown to the model
	Execute(ctx context.Context, call Call) (Result, error)
}

// Registry holds every tool available to a run, keyed by name.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds t to the registry, replacing the current tool for t.Name().
func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// Get returns the tool registered under name, or (nil, false).
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Execute dispatches call to its named tool.
func (r *Registry) Execute(ctx context.Context, call Call) (Result, error) {
	t, ok := r.tools[call.Name]
	if !ok {
		return Result{}, kernelerr.New(kernelerr.ToolNotFound, fmt.Sprintf("no tool registered for %q", call.Name), nil).
			WithContext("call_id", call.ID)
	}
	return t.Execute(ctx, call)
}

// Specs returns the declarative {name, description, schema} for every
// registered tool, the shape model.ToolSpec expects when offering tools to
// a model.
func (r *Registry) Specs() []Spec {
	specs := make([]Spec, 0, len(r.tools))
	for _, t := range r.tools {
		specs = append(specs, Spec{Name: t.Name(), Description: t.Description(), Schema: t.Schema()})
	}
	return specs
}

// Spec is a tool's declarative shape, independent of model package to avoid
// an import cycle between tool and model.
type Spec struct {
	Name        string
	Description string
	Schema      map[string]any
}
