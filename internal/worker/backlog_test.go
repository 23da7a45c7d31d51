package worker

import (
	"path/filepath"
	"testing"

	"github.com/sunwell-ai/sunwell/internal/task"
)

func TestClaimNextOnlyReturnsReadyUnclaimedGoals(t *testing.T) {
	goals := []*task.Task{
		{ID: "a", Mode: task.ModeCommand, Description: "echo a"},
		{ID: "b", Mode: task.ModeCommand, Description: "echo b", DependsOn: []string{"a"}},
	}
	b, err := NewBacklog(filepath.Join(t.TempDir(), "backlog.json"), goals)
	if err != nil {
		t.Fatal(err)
	}

	goal, ok, err := b.ClaimNext("w1")
	if err != nil || !ok || goal.ID != "a" {
		t.Fatalf("expected to claim a, got %v ok=%v err=%v", goal, ok, err)
	}

	// b depends on a, which isn't complete yet (only claimed): not ready.
	_, ok, err = b.ClaimNext("w2")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected nothing claimable while a is only claimed, not completed")
	}

	if err := b.Complete("a", "done"); err != nil {
		t.Fatal(err)
	}
	goal, ok, err = b.ClaimNext("w2")
	if err != nil || !ok || goal.ID != "b" {
		t.Fatalf("expected to claim b once a completed, got %v ok=%v err=%v", goal, ok, err)
	}
}

func TestClaimNextExcludesAlreadyClaimedGoal(t *testing.T) {
	goals := []*task.Task{
		{ID: "a", Mode: task.ModeCommand, Description: "echo a"},
		{ID: "b", Mode: task.ModeCommand, Description: "echo b"},
	}
	b, err := NewBacklog(filepath.Join(t.TempDir(), "backlog.json"), goals)
	if err != nil {
		t.Fatal(err)
	}

	first, ok, err := b.ClaimNext("w1")
	if err != nil || !ok {
		t.Fatal(err)
	}
	second, ok, err := b.ClaimNext("w2")
	if err != nil || !ok {
		t.Fatal(err)
	}
	if first.ID == second.ID {
		t.Fatal("expected two workers to claim two distinct goals")
	}

	_, ok, err = b.ClaimNext("w3")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected no goal left to claim once both are claimed")
	}
}

func TestFailMarksGoalTerminalAndUnblocksDependents(t *testing.T) {
	goals := []*task.Task{
		{ID: "a", Mode: task.ModeCommand, Description: "echo a"},
		{ID: "b", Mode: task.ModeCommand, Description: "echo b", DependsOn: []string{"a"}},
	}
	b, err := NewBacklog(filepath.Join(t.TempDir(), "backlog.json"), goals)
	if err != nil {
		t.Fatal(err)
	}
	goal, _, err := b.ClaimNext("w1")
	if err != nil || goal.ID != "a" {
		t.Fatal(err)
	}
	if err := b.Fail("a", "boom"); err != nil {
		t.Fatal(err)
	}

	// b's only dependency failed; it still becomes claimable since failed
	// tasks are terminal (mirrors exec.Coordinator's completeAsFailed).
	next, ok, err := b.ClaimNext("w2")
	if err != nil || !ok || next.ID != "b" {
		t.Fatalf("expected b claimable after a's terminal failure, got %v ok=%v err=%v", next, ok, err)
	}
}

func TestReleaseAllForReturnsClaimsToThePool(t *testing.T) {
	goals := []*task.Task{
		{ID: "a", Mode: task.ModeCommand, Description: "echo a"},
		{ID: "b", Mode: task.ModeCommand, Description: "echo b"},
	}
	b, err := NewBacklog(filepath.Join(t.TempDir(), "backlog.json"), goals)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := b.ClaimNext("crashed-worker"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := b.ClaimNext("crashed-worker"); err != nil {
		t.Fatal(err)
	}
	claims, err := b.ClaimsFor("crashed-worker")
	if err != nil || len(claims) != 2 {
		t.Fatalf("expected 2 claims, got %v (%v)", claims, err)
	}

	if err := b.ReleaseAllFor("crashed-worker"); err != nil {
		t.Fatal(err)
	}
	claims, err = b.ClaimsFor("crashed-worker")
	if err != nil || len(claims) != 0 {
		t.Fatalf("expected claims released, got %v", claims)
	}

	goal, ok, err := b.ClaimNext("w2")
	if err != nil || !ok || goal == nil {
		t.Fatalf("expected released goals to be reclaimable, got ok=%v err=%v", ok, err)
	}
}

func TestDoneReportsFalseUntilEveryGoalIsTerminal(t *testing.T) {
	goals := []*task.Task{
		{ID: "a", Mode: task.ModeCommand, Description: "echo a"},
		{ID: "b", Mode: task.ModeCommand, Description: "echo b"},
	}
	b, err := NewBacklog(filepath.Join(t.TempDir(), "backlog.json"), goals)
	if err != nil {
		t.Fatal(err)
	}
	if done, _ := b.Done(); done {
		t.Fatal("expected not done with two pending goals")
	}
	_ = b.Complete("a", "ok")
	if done, _ := b.Done(); done {
		t.Fatal("expected not done with one goal still pending")
	}
	_ = b.Fail("b", "nope")
	done, err := b.Done()
	if err != nil || !done {
		t.Fatalf("expected done once every goal is terminal, got %v (%v)", done, err)
	}
}
