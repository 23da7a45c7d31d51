package exec

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sunwell-ai/sunwell/internal/events"
	"github.com/sunwell-ai/sunwell/internal/kernelerr"
	"github.com/sunwell-ai/sunwell/internal/model"
	"github.com/sunwell-ai/sunwell/internal/task"
	"github.com/sunwell-ai/sunwell/internal/tool"
)

// dispatch routes t to its mode-specific handler.
func (c *Coordinator) dispatch(ctx context.Context, t *task.Task) DispatchResult {
	switch t.Mode {
	case task.ModeResearch:
		return c.dispatchResearch(ctx, t)
	case task.ModeCommand:
		return c.dispatchCommand(ctx, t)
	case task.ModeGenerate:
		return c.dispatchGenerate(ctx, t)
	case task.ModeVerify:
		return c.dispatchVerify(ctx, t)
	case task.ModeSelfImprove:
		// Delegated to the outer loop: a no-op here, surfaced to the caller
		// as skipped (which still counts as done) so the graph can proceed past it.
		return DispatchResult{Status: task.StatusSkipped, Output: "self-improvement delegated to the outer loop"}
	default:
		return DispatchResult{Status: task.StatusFailed, Err: fmt.Errorf("unhandled mode %q", t.Mode)}
	}
}

func (c *Coordinator) dispatchResearch(ctx context.Context, t *task.Task) DispatchResult {
	c.emit(events.ToolStart, t, map[string]any{"tool": "codebase_search"})
	result, err := c.Tools.Execute(ctx, tool.Call{Name: "codebase_search", Arguments: map[string]any{"query": t.Description}})
	if err != nil {
		c.emit(events.ToolError, t, map[string]any{"error": err.Error()})
		return DispatchResult{Status: task.StatusFailed, Err: err}
	}
	c.emit(events.ToolComplete, t, nil)
	if strings.TrimSpace(result.Output) == "" {
		return DispatchResult{Status: task.StatusFailed, Err: fmt.Errorf("research produced no results")}
	}
	return DispatchResult{Status: task.StatusCompleted, Output: result.Output}
}

func (c *Coordinator) dispatchCommand(ctx context.Context, t *task.Task) DispatchResult {
	c.emit(events.ToolStart, t, map[string]any{"tool": "shell"})
	result, err := c.Tools.Execute(ctx, tool.Call{Name: "shell", Arguments: map[string]any{"command": t.Description}})
	if err != nil {
		c.emit(events.ToolError, t, map[string]any{"error": err.Error()})
		return DispatchResult{Status: task.StatusFailed, Err: err}
	}
	c.emit(events.ToolComplete, t, nil)
	return DispatchResult{Status: task.StatusCompleted, Output: result.Output, Artifacts: result.Artifacts}
}

func (c *Coordinator) dispatchVerify(ctx context.Context, t *task.Task) DispatchResult {
	if err := c.checkBudget(); err != nil {
		return DispatchResult{Status: task.StatusFailed, Err: err}
	}
	resp, err := c.generate(ctx, []model.Message{{Role: "user", Content: t.Description}}, model.Options{MaxTokens: 256})
	if err != nil {
		return DispatchResult{Status: task.StatusFailed, Err: err}
	}
	verdict := strings.TrimSpace(resp.Text)
	if strings.HasPrefix(strings.ToUpper(verdict), "PASS") {
		return DispatchResult{Status: task.StatusCompleted, Output: verdict}
	}
	return DispatchResult{Status: task.StatusFailed, Err: fmt.Errorf("verify failed: %s", verdict)}
}

// dispatchGenerate is the interesting case: prefer the
// model's agentic tool loop; fall back to text generation with a
// markdown-fence strip and a judge-model approve/reject pass when the
// model doesn't support tools.
func (c *Coordinator) dispatchGenerate(ctx context.Context, t *task.Task) DispatchResult {
	if err := c.checkBudget(); err != nil {
		return DispatchResult{Status: task.StatusFailed, Err: err}
	}

	if c.Model.SupportsTools() {
		return c.generateViaToolLoop(ctx, t)
	}
	return c.generateViaTextFallback(ctx, t)
}

func (c *Coordinator) generateViaToolLoop(ctx context.Context, t *task.Task) DispatchResult {
	maxTurns := c.MaxToolTurns
	if maxTurns <= 0 {
		maxTurns = 10
	}

	systemPrompt := "You must make changes using the write_file and edit_file tools. " +
		"Never place source code directly in your response text."
	messages := []model.Message{{Role: "user", Content: t.Description}}

	var artifacts []string
	for turn := 0; turn < maxTurns; turn++ {
		resp, err := c.generate(ctx, messages, model.Options{
			SystemPrompt: systemPrompt,
			MaxTokens:    4096,
			ToolChoice:   model.ToolChoiceAuto,
			Tools:        toolSpecs(c.Tools),
		})
		if err != nil {
			return DispatchResult{Status: task.StatusFailed, Err: err}
		}
		if len(resp.ToolCalls) == 0 {
			// No more tool calls: treat produces as whatever was written
			// across the loop's turns so far.
			return DispatchResult{Status: task.StatusCompleted, Output: resp.Text, Artifacts: artifacts}
		}

		messages = append(messages, model.Message{Role: "assistant", Content: resp.Text})
		for _, tc := range resp.ToolCalls {
			c.emit(events.ToolStart, t, map[string]any{"tool": tc.Name})
			result, err := c.Tools.Execute(ctx, tool.Call{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
			if err != nil {
				c.emit(events.ToolError, t, map[string]any{"error": err.Error()})
				messages = append(messages, model.Message{Role: "tool", ToolCallID: tc.ID, Content: "error: " + err.Error()})
				continue
			}
			c.emit(events.ToolComplete, t, map[string]any{"tool": tc.Name})
			artifacts = append(artifacts, result.Artifacts...)
			messages = append(messages, model.Message{Role: "tool", ToolCallID: tc.ID, Content: result.Output})
		}
	}
	return DispatchResult{Status: task.StatusCompleted, Output: "tool loop reached its turn limit", Artifacts: artifacts}
}

var fenceRe = regexp.MustCompile("(?s)^\\s*```[a-zA-Z0-9]*\\n(.*)```\\s*$")

// stripMarkdownFences best-effort removes a single leading/trailing code
// fence from a text response, only when the response both starts and ends
// with one. This is explicitly a non-guarantee: text outside the fence or a
// missing closing delimiter means the response passes through unchanged.
func stripMarkdownFences(text string) string {
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

func (c *Coordinator) generateViaTextFallback(ctx context.Context, t *task.Task) DispatchResult {
	resp, err := c.generate(ctx, []model.Message{{Role: "user", Content: t.Description}}, model.Options{MaxTokens: 4096})
	if err != nil {
		return DispatchResult{Status: task.StatusFailed, Err: err}
	}
	content := stripMarkdownFences(resp.Text)

	approved, err := c.judge(ctx, t, content)
	if err != nil {
		return DispatchResult{Status: task.StatusFailed, Err: err}
	}
	if !approved {
		// One regeneration attempt on rejection.
		resp, err = c.generate(ctx, []model.Message{
			{Role: "user", Content: t.Description},
			{Role: "assistant", Content: resp.Text},
			{Role: "user", Content: "That was rejected by review. Try again."},
		}, model.Options{MaxTokens: 4096})
		if err != nil {
			return DispatchResult{Status: task.StatusFailed, Err: err}
		}
		content = stripMarkdownFences(resp.Text)
		approved, err = c.judge(ctx, t, content)
		if err != nil {
			return DispatchResult{Status: task.StatusFailed, Err: err}
		}
		if !approved {
			return DispatchResult{Status: task.StatusFailed, Err: kernelerr.New(kernelerr.ValidationInvalidOutput, "generated content rejected twice", nil)}
		}
	}

	var artifacts []string
	for _, path := range t.Produces {
		if _, err := c.Tools.Execute(ctx, tool.Call{Name: "write_file", Arguments: map[string]any{"path": path, "content": content}}); err != nil {
			return DispatchResult{Status: task.StatusFailed, Err: err}
		}
		artifacts = append(artifacts, path)
	}
	return DispatchResult{Status: task.StatusCompleted, Output: content, Artifacts: artifacts}
}

func (c *Coordinator) judge(ctx context.Context, t *task.Task, content string) (bool, error) {
	prompt := fmt.Sprintf("Task: %s\n\nGenerated content:\n%s\n\nRespond with exactly APPROVE or REJECT.", t.Description, content)
	resp, err := c.generate(ctx, []model.Message{{Role: "user", Content: prompt}}, model.Options{MaxTokens: 16})
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToUpper(resp.Text), "APPROVE"), nil
}

// checkBudget fails fast, before any model call, when the run's token/dollar
// ceiling is already exhausted. Budget is checked ahead of the breaker
// (see reliability's package doc) so a budget stop never counts against the
// breaker's consecutive-failure trip threshold.
func (c *Coordinator) checkBudget() error {
	if c.Budget == nil {
		return nil
	}
	return c.Budget.Check()
}

// generate runs one model call through the circuit breaker, so a failing
// provider trips the breaker and surfaces as a structured, recoverable error
// instead of reaching the caller raw.
func (c *Coordinator) generate(ctx context.Context, messages []model.Message, opts model.Options) (model.Response, error) {
	if c.Breaker == nil {
		return c.Model.Generate(ctx, messages, opts)
	}
	var resp model.Response
	err := c.Breaker.Call(ctx, func(ctx context.Context) error {
		var callErr error
		resp, callErr = c.Model.Generate(ctx, messages, opts)
		return callErr
	})
	if err != nil {
		return model.Response{}, err
	}
	return resp, nil
}

func toolSpecs(r *tool.Registry) []model.ToolSpec {
	specs := r.Specs()
	out := make([]model.ToolSpec, 0, len(specs))
	for _, s := range specs {
		out = append(out, model.ToolSpec{Name: s.Name, Description: s.Description, Schema: s.Schema})
	}
	return out
}
