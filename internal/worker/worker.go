package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sunwell-ai/sunwell/internal/events"
	"github.com/sunwell-ai/sunwell/internal/exec"
	"github.com/sunwell-ai/sunwell/internal/gate"
	"github.com/sunwell-ai/sunwell/internal/git"
	"github.com/sunwell-ai/sunwell/internal/klog"
	"github.com/sunwell-ai/sunwell/internal/lineage"
	"github.com/sunwell-ai/sunwell/internal/model"
	"github.com/sunwell-ai/sunwell/internal/reliability"
	"github.com/sunwell-ai/sunwell/internal/task"
	"github.com/sunwell-ai/sunwell/internal/tool"
)

// Worker runs one branch's claim–execute–commit loop against a shared
// Backlog: claim a goal under exclusive access, execute it via the
// Execution Coordinator on its own branch, commit, release, repeat until
// the backlog is exhausted.
type Worker struct {
	ID         string
	Branch     string
	BaseBranch string
	WorkDir    string // the worker's own worktree

	Backlog       *Backlog
	HeartbeatDir  string
	PollInterval  time.Duration // how often to re-check the backlog when idle
	HeartbeatEvery time.Duration

	Model   model.Model
	Lineage *lineage.Store
	Bus     *events.Bus
	Budget  *reliability.Budget
	Breaker *reliability.Breaker
	GateSeq *gate.Sequence
	MaxToolTurns int
	Logger  *klog.Logger
	// BaseRepoDir is the base checkout the worker's own worktree branches
	// off of; defaults to "." (the process's working directory).
	BaseRepoDir string

	mu        sync.Mutex
	completed int
	failed    int
}

func (w *Worker) defaults() {
	if w.PollInterval <= 0 {
		w.PollInterval = 500 * time.Millisecond
	}
	if w.HeartbeatEvery <= 0 {
		w.HeartbeatEvery = 5 * time.Second
	}
	if w.BaseRepoDir == "" {
		w.BaseRepoDir = "."
	}
	if w.Logger == nil {
		l := klog.Default()
		w.Logger = &l
	}
}

// Run checks out the worker's branch (creating it off BaseBranch if
// absent) and drives the claim-execute-commit loop until the backlog is
// exhausted or ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.defaults()
	if err := w.ensureBranch(); err != nil {
		return err
	}

	stopHeartbeat := w.startHeartbeatLoop(ctx)
	defer stopHeartbeat()

	repoGit := git.NewGit(w.WorkDir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		goal, ok, err := w.Backlog.ClaimNext(w.ID)
		if err != nil {
			return err
		}
		if !ok {
			done, err := w.Backlog.Done()
			if err != nil {
				return err
			}
			if done {
				w.writeHeartbeat(StateDone, "")
				return nil
			}
			time.Sleep(w.PollInterval)
			continue
		}

		w.writeHeartbeat(StateWorking, goal.ID)
		w.runGoal(ctx, repoGit, goal)
	}
}

func (w *Worker) ensureBranch() error {
	if _, err := os.Stat(w.WorkDir); err == nil {
		return nil // worktree already exists (resumed after a crash)
	}
	baseGit := git.NewGit(w.BaseRepoDir)
	if exists, _ := baseGit.BranchExists(w.Branch); exists {
		if err := baseGit.WorktreeAddExisting(w.WorkDir, w.Branch); err != nil {
			return fmt.Errorf("adding worktree for existing branch %s: %w", w.Branch, err)
		}
		return nil
	}
	if err := baseGit.WorktreeAddFromRef(w.WorkDir, w.Branch, w.BaseBranch); err != nil {
		return fmt.Errorf("creating worktree branch %s from %s: %w", w.Branch, w.BaseBranch, err)
	}
	return nil
}

// runGoal executes one claimed goal to completion, commits the result on
// its own branch, and reports the outcome back to the backlog. All side
// effects of a goal happen before its status becomes terminal.
func (w *Worker) runGoal(ctx context.Context, g *git.Git, goal *task.Task) {
	reg := tool.NewRegistry()
	tool.RegisterBuiltins(reg, w.WorkDir)

	c := &exec.Coordinator{
		Model:        w.Model,
		Tools:        reg,
		Lineage:      w.Lineage,
		Bus:          w.Bus,
		Budget:       w.Budget,
		Breaker:      w.Breaker,
		GateSeq:      w.GateSeq,
		MaxToolTurns: w.MaxToolTurns,
	}

	result := c.RunSingleTask(ctx, goal)

	switch result.Status {
	case task.StatusCompleted, task.StatusSkipped:
		if err := g.Add("."); err != nil {
			w.recordFailure(goal.ID, "git add failed: "+err.Error())
			return
		}
		if dirty, _ := g.HasUncommittedChanges(); dirty {
			if err := g.Commit(fmt.Sprintf("goal: %s", goal.ID)); err != nil {
				w.recordFailure(goal.ID, "git commit failed: "+err.Error())
				return
			}
		}
		if err := w.Backlog.Complete(goal.ID, result.Output); err != nil {
			w.logError("recording goal completion", err)
		}
		w.mu.Lock()
		w.completed++
		w.mu.Unlock()
	default:
		reason := "goal failed"
		if result.Err != nil {
			reason = result.Err.Error()
		}
		w.recordFailure(goal.ID, reason)
	}
}

func (w *Worker) recordFailure(goalID, reason string) {
	if err := w.Backlog.Fail(goalID, reason); err != nil {
		w.logError("recording goal failure", err)
	}
	w.mu.Lock()
	w.failed++
	w.mu.Unlock()
}

func (w *Worker) logError(msg string, err error) {
	w.Logger.Error(msg, err, map[string]any{"worker_id": w.ID})
}

func (w *Worker) startHeartbeatLoop(ctx context.Context) func() {
	if w.HeartbeatDir == "" {
		return func() {}
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(w.HeartbeatEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				w.writeHeartbeat(w.currentState(), "")
			}
		}
	}()
	return func() {
		close(stop)
		<-done
	}
}

func (w *Worker) currentState() State {
	return StateWorking
}

func (w *Worker) writeHeartbeat(state State, currentGoalID string) {
	if w.HeartbeatDir == "" {
		return
	}
	w.mu.Lock()
	hb := Heartbeat{
		WorkerID:      w.ID,
		PID:           os.Getpid(),
		State:         state,
		CurrentGoalID: currentGoalID,
		Completed:     w.completed,
		Failed:        w.failed,
	}
	w.mu.Unlock()
	if err := WriteHeartbeat(w.HeartbeatDir, hb); err != nil {
		w.logError("writing heartbeat", err)
	}
}
