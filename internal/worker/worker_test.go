package worker

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/sunwell-ai/sunwell/internal/task"
)

func gitOut(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
	return string(out)
}

func TestWorkerClaimExecuteCommitLoopCompletesAllGoals(t *testing.T) {
	base := initTestRepo(t)
	run := filepath.Join(base, ".sunwell-run")

	goals := []*task.Task{
		{ID: "g1", Mode: task.ModeCommand, Description: "echo one > one.txt"},
		{ID: "g2", Mode: task.ModeCommand, Description: "echo two > two.txt"},
	}
	backlog, err := NewBacklog(filepath.Join(run, "backlog.json"), goals)
	if err != nil {
		t.Fatal(err)
	}

	w := &Worker{
		ID:          "1",
		Branch:      "sunwell/worker-1",
		BaseBranch:  "main",
		WorkDir:     filepath.Join(run, "worktrees", "1"),
		BaseRepoDir: base,
		Backlog:     backlog,
	}

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	done, err := backlog.Done()
	if err != nil || !done {
		t.Fatalf("expected backlog done, got %v (%v)", done, err)
	}
	completed, failed, outstanding, err := backlog.Counts()
	if err != nil || completed != 2 || failed != 0 || outstanding != 0 {
		t.Fatalf("expected 2 completed 0 failed, got completed=%d failed=%d outstanding=%d err=%v", completed, failed, outstanding, err)
	}

	if _, err := os.Stat(filepath.Join(w.WorkDir, "one.txt")); err != nil {
		t.Fatalf("expected one.txt to exist in the worktree: %v", err)
	}

	log := gitOut(t, w.WorkDir, "log", "--oneline", "sunwell/worker-1")
	if log == "" {
		t.Fatal("expected commits on the worker branch")
	}
}

func TestWorkerRecordsGoalFailureOnNonZeroExit(t *testing.T) {
	base := initTestRepo(t)
	run := filepath.Join(base, ".sunwell-run")

	goals := []*task.Task{
		{ID: "bad", Mode: task.ModeCommand, Description: "exit 7"},
	}
	backlog, err := NewBacklog(filepath.Join(run, "backlog.json"), goals)
	if err != nil {
		t.Fatal(err)
	}

	w := &Worker{
		ID:          "1",
		Branch:      "sunwell/worker-1",
		BaseBranch:  "main",
		WorkDir:     filepath.Join(run, "worktrees", "1"),
		BaseRepoDir: base,
		Backlog:     backlog,
	}

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	completed, failed, _, err := backlog.Counts()
	if err != nil || failed != 1 || completed != 0 {
		t.Fatalf("expected the goal recorded failed, got completed=%d failed=%d err=%v", completed, failed, err)
	}
}
