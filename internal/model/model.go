// Package model defines the kernel's external-model boundary
// and a concrete binding to Anthropic's API.
package model

import (
	"context"
)

// ToolChoice constrains how a model may use the tools it was offered.
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceRequired ToolChoice = "required"
	ToolChoiceNone     ToolChoice = "none"
)

// Options configures one generate call.
type Options struct {
	Temperature float64 // [0, 2]
	MaxTokens   int
	ToolChoice  ToolChoice
	Tools       []ToolSpec // empty means no tool use offered
	SystemPrompt string
}

// ToolSpec is the declarative shape of a tool a model may call, mirroring
// the registry entries internal/tool builds at startup.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any // JSON schema for arguments
}

// Message is one turn in a conversation, role "user"/"assistant"/"tool".
type Message struct {
	Role       string
	Content    string
	ToolCallID string // set on role "tool": which call this responds to
}

// ToolCall is a model-issued request to invoke a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Usage reports token accounting for one generate call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is what Model.Generate returns.
type Response struct {
	Text      string
	Usage     Usage
	ToolCalls []ToolCall
}

// Model is the opaque async completion boundary every call in the kernel
// goes through. Errors surface as *kernelerr.Error using the model.* codes.
type Model interface {
	Generate(ctx context.Context, messages []Message, opts Options) (Response, error)
	Name() string
	SupportsTools() bool
}
