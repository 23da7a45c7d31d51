package exec

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sunwell-ai/sunwell/internal/model"
	"github.com/sunwell-ai/sunwell/internal/task"
	"github.com/sunwell-ai/sunwell/internal/tool"
)

func newTestCoordinator(t *testing.T, m *fakeModel) (*Coordinator, string) {
	t.Helper()
	root := t.TempDir()
	reg := tool.NewRegistry()
	tool.RegisterBuiltins(reg, root)
	return &Coordinator{Tools: reg, Model: m}, root
}

func TestDispatchResearchSucceedsOnNonEmptyResult(t *testing.T) {
	c, root := newTestCoordinator(t, &fakeModel{})
	if err := os.WriteFile(filepath.Join(root, "note.txt"), []byte("the orb of frost"), 0644); err != nil {
		t.Fatal(err)
	}
	res := c.dispatch(context.Background(), &task.Task{ID: "t1", Mode: task.ModeResearch, Description: "orb of frost"})
	if res.Status != task.StatusCompleted {
		t.Fatalf("expected completed, got %v (%v)", res.Status, res.Err)
	}
}

func TestDispatchResearchFailsOnEmptyResult(t *testing.T) {
	c, _ := newTestCoordinator(t, &fakeModel{})
	res := c.dispatch(context.Background(), &task.Task{ID: "t1", Mode: task.ModeResearch, Description: "nothing matches this"})
	if res.Status == task.StatusCompleted {
		t.Fatal("expected research with no matches to fail")
	}
}

func TestDispatchCommandRunsShellAndCollectsOutput(t *testing.T) {
	c, _ := newTestCoordinator(t, &fakeModel{})
	res := c.dispatch(context.Background(), &task.Task{ID: "t2", Mode: task.ModeCommand, Description: "echo hello"})
	if res.Status != task.StatusCompleted {
		t.Fatalf("expected completed, got %v (%v)", res.Status, res.Err)
	}
}

func TestDispatchVerifyPassesOnPassVerdict(t *testing.T) {
	c, _ := newTestCoordinator(t, &fakeModel{responses: []model.Response{{Text: "PASS: looks correct"}}})
	res := c.dispatch(context.Background(), &task.Task{ID: "t3", Mode: task.ModeVerify, Description: "check the output"})
	if res.Status != task.StatusCompleted {
		t.Fatalf("expected completed, got %v (%v)", res.Status, res.Err)
	}
}

func TestDispatchVerifyFailsOnFailVerdict(t *testing.T) {
	c, _ := newTestCoordinator(t, &fakeModel{responses: []model.Response{{Text: "FAIL: missing case"}}})
	res := c.dispatch(context.Background(), &task.Task{ID: "t3", Mode: task.ModeVerify, Description: "check the output"})
	if res.Status == task.StatusCompleted {
		t.Fatal("expected a FAIL verdict to fail the task")
	}
}

func TestDispatchGenerateToolLoopWritesFileAndStops(t *testing.T) {
	c, root := newTestCoordinator(t, &fakeModel{
		tools: true,
		responses: []model.Response{
			{ToolCalls: []model.ToolCall{{ID: "call1", Name: "write_file", Arguments: map[string]any{"path": "out.txt", "content": "hi"}}}},
			{Text: "done"},
		},
	})
	res := c.dispatch(context.Background(), &task.Task{ID: "t4", Mode: task.ModeGenerate, Description: "write a greeting", Produces: []string{"out.txt"}})
	if res.Status != task.StatusCompleted {
		t.Fatalf("expected completed, got %v (%v)", res.Status, res.Err)
	}
	if len(res.Artifacts) != 1 || res.Artifacts[0] != "out.txt" {
		t.Fatalf("expected out.txt as the only artifact, got %v", res.Artifacts)
	}
	data, err := os.ReadFile(filepath.Join(root, "out.txt"))
	if err != nil || string(data) != "hi" {
		t.Fatalf("expected out.txt to contain 'hi', got %q (%v)", string(data), err)
	}
}

func TestDispatchGenerateTextFallbackApprovedOnFirstTry(t *testing.T) {
	c, root := newTestCoordinator(t, &fakeModel{
		responses: []model.Response{
			{Text: "```go\npackage main\n```"},
			{Text: "APPROVE"},
		},
	})
	res := c.dispatch(context.Background(), &task.Task{ID: "t5", Mode: task.ModeGenerate, Description: "write main.go", Produces: []string{"main.go"}})
	if res.Status != task.StatusCompleted {
		t.Fatalf("expected completed, got %v (%v)", res.Status, res.Err)
	}
	data, err := os.ReadFile(filepath.Join(root, "main.go"))
	if err != nil || string(data) != "package main" {
		t.Fatalf("expected stripped fence content, got %q (%v)", string(data), err)
	}
}

func TestDispatchGenerateTextFallbackFailsAfterSecondRejection(t *testing.T) {
	c, _ := newTestCoordinator(t, &fakeModel{
		responses: []model.Response{
			{Text: "first attempt"},
			{Text: "REJECT"},
			{Text: "second attempt"},
			{Text: "REJECT"},
		},
	})
	res := c.dispatch(context.Background(), &task.Task{ID: "t6", Mode: task.ModeGenerate, Description: "write something", Produces: []string{"x.txt"}})
	if res.Status == task.StatusCompleted {
		t.Fatal("expected two rejections to fail the task")
	}
}

func TestDispatchSelfImproveIsANoOp(t *testing.T) {
	c, _ := newTestCoordinator(t, &fakeModel{})
	res := c.dispatch(context.Background(), &task.Task{ID: "t7", Mode: task.ModeSelfImprove, Description: "improve yourself"})
	if res.Status != task.StatusSkipped {
		t.Fatalf("expected skipped, got %v", res.Status)
	}
}

func TestStripMarkdownFencesRemovesOneFence(t *testing.T) {
	got := stripMarkdownFences("```python\nprint(1)\n```")
	if got != "print(1)" {
		t.Fatalf("expected fence stripped, got %q", got)
	}
}

func TestStripMarkdownFencesPassesThroughUnfenced(t *testing.T) {
	got := stripMarkdownFences("plain text")
	if got != "plain text" {
		t.Fatalf("expected passthrough, got %q", got)
	}
}
