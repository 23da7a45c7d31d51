package model

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sunwell-ai/sunwell/internal/kernelerr"
)

// AnthropicModel binds Model to Anthropic's Messages API.
//
// Grounded on the anthropic-sdk-go dependency declared (but left unexercised)
// in jordigilh-kubernaut's go.mod — this binding is the concrete component
// SPEC_FULL.md §3 gives that dependency a home in, implemented against the
// SDK's public client/option surface since the pack carries no call sites
// to imitate directly.
type AnthropicModel struct {
	client    anthropic.Client
	modelName string
}

// NewAnthropicModel builds a binding for modelName (e.g. "claude-opus-4-20250514").
func NewAnthropicModel(apiKey, modelName string) *AnthropicModel {
	return &AnthropicModel{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		modelName: modelName,
	}
}

func (m *AnthropicModel) Name() string         { return m.modelName }
func (m *AnthropicModel) SupportsTools() bool   { return true }

func (m *AnthropicModel) Generate(ctx context.Context, messages []Message, opts Options) (Response, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.modelName),
		MaxTokens: int64(opts.MaxTokens),
	}
	if opts.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: opts.SystemPrompt}}
	}
	for _, msg := range messages {
		role := anthropic.MessageParamRoleUser
		if msg.Role == "assistant" {
			role = anthropic.MessageParamRoleAssistant
		}
		params.Messages = append(params.Messages, anthropic.MessageParam{
			Role:    role,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)},
		})
	}
	for _, t := range opts.Tools {
		schema, _ := json.Marshal(t.Schema)
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{ExtraFields: map[string]any{"raw": json.RawMessage(schema)}},
			},
		})
	}

	msg, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, translateAnthropicError(err)
	}

	resp := Response{
		Usage: Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Text += b.Text
		case anthropic.ToolUseBlock:
			var args map[string]any
			_ = json.Unmarshal(b.Input, &args)
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{ID: b.ID, Name: b.Name, Arguments: args})
		}
	}
	return resp, nil
}

// translateAnthropicError maps SDK failures onto the kernel's structured
// taxonomy so callers never branch on SDK-specific error types.
func translateAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if ok := anthropicAs(err, &apiErr); ok {
		switch apiErr.StatusCode {
		case 401, 403:
			return kernelerr.New(kernelerr.ModelAuthFailed, "anthropic authentication failed", err)
		case 429:
			return kernelerr.New(kernelerr.ModelRateLimited, "anthropic rate limited", err)
		case 408:
			return kernelerr.New(kernelerr.ModelTimeout, "anthropic request timed out", err)
		case 500, 502, 503, 504:
			return kernelerr.New(kernelerr.ModelProviderUnavail, "anthropic provider unavailable", err)
		}
	}
	return kernelerr.New(kernelerr.ModelResponseInvalid, "anthropic request failed", err)
}

func anthropicAs(err error, target **anthropic.Error) bool {
	for err != nil {
		if ae, ok := err.(*anthropic.Error); ok {
			*target = ae
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return false
}
