package worker

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/sunwell-ai/sunwell/internal/git"
	"github.com/sunwell-ai/sunwell/internal/task"
)

// fakeProcess lets the monitor-loop tests control liveness/exit without a
// real subprocess.
type fakeProcess struct {
	alive    bool
	exitCode int
	killed   bool
}

func (p *fakeProcess) Pid() int      { return 1 }
func (p *fakeProcess) Alive() bool   { return p.alive }
func (p *fakeProcess) ExitCode() int {
	if p.alive {
		return -1
	}
	return p.exitCode
}
func (p *fakeProcess) Terminate() error { p.alive = false; return nil }
func (p *fakeProcess) Kill() error      { p.killed = true; p.alive = false; return nil }

func commitWithDate(t *testing.T, dir, message, date string) {
	t.Helper()
	cmd := exec.Command("git", "commit", "--allow-empty", "-m", message)
	cmd.Dir = dir
	cmd.Env = append(cmd.Environ(), "GIT_COMMITTER_DATE="+date, "GIT_AUTHOR_DATE="+date)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git commit: %v\n%s", err, out)
	}
}

func checkoutNewBranch(t *testing.T, dir, branch string) {
	t.Helper()
	cmd := exec.Command("git", "checkout", "-b", branch)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git checkout -b %s: %v\n%s", branch, err, out)
	}
}

func checkout(t *testing.T, dir, ref string) {
	t.Helper()
	cmd := exec.Command("git", "checkout", ref)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git checkout %s: %v\n%s", ref, err, out)
	}
}

func TestMergePhaseOrdersByFirstCommitTimeAndFastForwards(t *testing.T) {
	base := initTestRepo(t)

	checkoutNewBranch(t, base, "sunwell/worker-2")
	commitWithDate(t, base, "worker 2's change", "2025-01-02T00:00:00Z")

	checkout(t, base, "main")
	checkoutNewBranch(t, base, "sunwell/worker-1")
	commitWithDate(t, base, "worker 1's change", "2025-01-01T00:00:00Z")

	checkout(t, base, "main")

	g := git.NewGit(base)
	result, err := mergePhase(g, "main", []string{"sunwell/worker-2", "sunwell/worker-1"})
	if err != nil {
		t.Fatalf("mergePhase: %v", err)
	}
	if len(result.Conflicts) != 0 {
		t.Fatalf("expected no conflicts, got %v", result.Conflicts)
	}
	if len(result.Merged) != 2 || result.Merged[0] != "sunwell/worker-1" || result.Merged[1] != "sunwell/worker-2" {
		t.Fatalf("expected worker-1 merged before worker-2 (earlier first commit), got %v", result.Merged)
	}

	current, err := g.CurrentBranch()
	if err != nil || current != "main" {
		t.Fatalf("expected to end on main, got %q (%v)", current, err)
	}
}

func TestMergePhaseMarksConflictedBranchAndContinues(t *testing.T) {
	base := initTestRepo(t)

	checkoutNewBranch(t, base, "sunwell/worker-1")
	if err := writeAndCommit(base, "shared.txt", "from worker\n", "worker edit"); err != nil {
		t.Fatal(err)
	}

	checkout(t, base, "main")
	if err := writeAndCommit(base, "shared.txt", "from main\n", "main edit"); err != nil {
		t.Fatal(err)
	}

	g := git.NewGit(base)
	result, err := mergePhase(g, "main", []string{"sunwell/worker-1"})
	if err != nil {
		t.Fatalf("mergePhase: %v", err)
	}
	if len(result.Merged) != 0 || len(result.Conflicts) != 1 || result.Conflicts[0] != "sunwell/worker-1" {
		t.Fatalf("expected worker-1 reported conflicted, got merged=%v conflicts=%v", result.Merged, result.Conflicts)
	}

	current, err := g.CurrentBranch()
	if err != nil || current != "main" {
		t.Fatalf("expected to be restored to main after conflict, got %q (%v)", current, err)
	}
}

func writeAndCommit(dir, name, content, message string) error {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return err
	}
	if err := runGit(dir, "add", "."); err != nil {
		return err
	}
	return runGit(dir, "commit", "-m", message)
}

func runGit(dir string, args ...string) error {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	return cmd.Run()
}

func TestMonitorRecoversCrashedWorkerClaims(t *testing.T) {
	base := initTestRepo(t)
	run := filepath.Join(base, ".sunwell-run")

	goals := []*task.Task{{ID: "g1", Mode: task.ModeCommand, Description: "echo hi"}}
	backlog, err := NewBacklog(filepath.Join(run, "backlog.json"), goals)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := backlog.ClaimNext("1"); err != nil {
		t.Fatal(err)
	}

	crashed := &fakeProcess{alive: false, exitCode: 1}
	c := &Coordinator{
		Root:    base,
		RunRoot: run,
		Config:  Config{NumWorkers: 1, HeartbeatInterval: 20 * time.Millisecond},
		backlog: backlog,
	}
	c.Config.defaults()
	c.processes = map[string]Process{"1": crashed}

	if err := c.monitor(context.Background()); err != nil {
		t.Fatalf("monitor: %v", err)
	}

	claims, err := backlog.ClaimsFor("1")
	if err != nil || len(claims) != 0 {
		t.Fatalf("expected crashed worker's claims released, got %v (%v)", claims, err)
	}
}
