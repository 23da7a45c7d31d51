package graph

import (
	"testing"

	"github.com/sunwell-ai/sunwell/internal/task"
)

func mkTask(id string, deps ...string) *task.Task {
	return &task.Task{ID: id, Mode: task.ModeCommand, DependsOn: deps, Status: task.StatusPending}
}

func TestNewRejectsCycle(t *testing.T) {
	a := mkTask("a", "b")
	b := mkTask("b", "a")
	if _, err := New([]*task.Task{a, b}); err == nil {
		t.Fatal("expected cycle to be rejected")
	}
}

func TestNewRejectsUnknownDependency(t *testing.T) {
	a := mkTask("a", "ghost")
	if _, err := New([]*task.Task{a}); err == nil {
		t.Fatal("expected unknown dependency to be rejected")
	}
}

func TestNewRejectsProducesCollision(t *testing.T) {
	a := &task.Task{ID: "a", Mode: task.ModeGenerate, Produces: []string{"x"}, Status: task.StatusPending}
	b := &task.Task{ID: "b", Mode: task.ModeGenerate, Produces: []string{"x"}, Status: task.StatusPending}
	if _, err := New([]*task.Task{a, b}); err == nil {
		t.Fatal("expected produces collision to be rejected")
	}
}

func TestNewRejectsDanglingRequires(t *testing.T) {
	a := &task.Task{ID: "a", Mode: task.ModeGenerate, Requires: []string{"missing"}, Status: task.StatusPending}
	if _, err := New([]*task.Task{a}); err == nil {
		t.Fatal("expected dangling requires to be rejected")
	}
}

func TestScenarioAContractFirst(t *testing.T) {
	proto := &task.Task{ID: "proto", Mode: task.ModeGenerate, IsContract: true, Produces: []string{"UserProtocol"}, Modifies: []string{"protocols.py"}, Status: task.StatusPending}
	impl := &task.Task{ID: "impl", Mode: task.ModeGenerate, DependsOn: []string{"proto"}, Contract: "UserProtocol", Modifies: []string{"user.py"}, Status: task.StatusPending}
	g, err := New([]*task.Task{proto, impl})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	completedIDs := map[string]struct{}{}
	completedArtifacts := map[string]struct{}{}
	ready := g.Ready(completedIDs, completedArtifacts)
	if len(ready) != 1 || ready[0].ID != "proto" {
		t.Fatalf("expected only proto ready, got %v", ready)
	}

	proto.Status = task.StatusCompleted
	completedIDs["proto"] = struct{}{}
	completedArtifacts["UserProtocol"] = struct{}{}
	ready = g.Ready(completedIDs, completedArtifacts)
	if len(ready) != 1 || ready[0].ID != "impl" {
		t.Fatalf("expected impl ready after proto completes, got %v", ready)
	}
}

func TestScenarioBConflictingParallelGroupSplits(t *testing.T) {
	t1 := &task.Task{ID: "t1", Mode: task.ModeGenerate, ParallelGroup: "G", Modifies: []string{"a.py"}, Status: task.StatusPending}
	t2 := &task.Task{ID: "t2", Mode: task.ModeGenerate, ParallelGroup: "G", Modifies: []string{"a.py"}, Status: task.StatusPending}
	batches := GroupParallel([]*task.Task{t1, t2})
	if len(batches) != 2 {
		t.Fatalf("expected conflicting group to split into 2 singleton batches, got %d", len(batches))
	}
	for _, b := range batches {
		if len(b) != 1 {
			t.Fatalf("expected singleton batches, got batch of size %d", len(b))
		}
	}
}

func TestGroupParallelKeepsDisjointGroupTogether(t *testing.T) {
	t1 := &task.Task{ID: "t1", ParallelGroup: "G", Modifies: []string{"a.py"}, Status: task.StatusPending}
	t2 := &task.Task{ID: "t2", ParallelGroup: "G", Modifies: []string{"b.py"}, Status: task.StatusPending}
	batches := GroupParallel([]*task.Task{t1, t2})
	if len(batches) != 1 || len(batches[0]) != 2 {
		t.Fatalf("expected one batch of 2, got %v", batches)
	}
}

func TestScenarioFDeadlockRejectedAtConstruction(t *testing.T) {
	t1 := &task.Task{ID: "t1", Requires: []string{"art_from_t2"}, Status: task.StatusPending}
	t2 := &task.Task{ID: "t2", Requires: []string{"art_from_t1"}, Status: task.StatusPending}
	if _, err := New([]*task.Task{t1, t2}); err == nil {
		t.Fatal("expected mutual requires with no producer to be rejected at construction")
	}
}

func TestDetectDeadlockOnConstructedGraph(t *testing.T) {
	a := &task.Task{ID: "a", Produces: []string{"art_a"}, Status: task.StatusPending}
	b := &task.Task{ID: "b", Requires: []string{"art_a"}, Status: task.StatusRunning}
	g, err := New([]*task.Task{a, b})
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	a.Status = task.StatusFailed
	pending := []*task.Task{b}
	if !g.DetectDeadlock(pending, map[string]struct{}{}, map[string]struct{}{}) {
		t.Fatal("expected deadlock: b can never become ready since a failed without producing art_a")
	}
}

func TestAnalytics(t *testing.T) {
	a := mkTask("a")
	b := mkTask("b", "a")
	c := mkTask("c", "a")
	d := mkTask("d", "b", "c")
	g, err := New([]*task.Task{a, b, c, d})
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if cp := g.CriticalPathLength(); cp != 3 {
		t.Errorf("expected critical path 3, got %d", cp)
	}
	if w := g.MaxParallelWidth(); w != 2 {
		t.Errorf("expected max width 2, got %d", w)
	}
	if r := g.ParallelizationRatio(); r != 4.0/3.0 {
		t.Errorf("expected ratio 4/3, got %f", r)
	}
}
