package worker

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/sunwell-ai/sunwell/internal/events"
	"github.com/sunwell-ai/sunwell/internal/git"
	"github.com/sunwell-ai/sunwell/internal/kernelerr"
	"github.com/sunwell-ai/sunwell/internal/klog"
	"github.com/sunwell-ai/sunwell/internal/state"
	"github.com/sunwell-ai/sunwell/internal/task"
)

// Config controls the multi-worker coordinator.
type Config struct {
	NumWorkers int

	// HeartbeatInterval is how often workers write, and the coordinator
	// checks, heartbeat records.
	HeartbeatInterval time.Duration
	// StuckAfter is a multiple of HeartbeatInterval past which a worker
	// with no fresh heartbeat is treated as stuck.
	StuckAfter int

	// BranchPrefix names each worker's branch: BranchPrefix + worker id.
	BranchPrefix string

	// CleanupBranches deletes merged branches once the merge phase completes.
	CleanupBranches bool
}

func (c *Config) defaults() {
	if c.NumWorkers <= 0 {
		c.NumWorkers = 1
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 5 * time.Second
	}
	if c.StuckAfter <= 0 {
		c.StuckAfter = 12
	}
	if c.BranchPrefix == "" {
		c.BranchPrefix = "sunwell/worker-"
	}
}

// SpawnFunc launches the subprocess for one worker id and returns a handle
// to it. The caller (cmd/sunwell) decides how: typically re-executing the
// same binary with `worker run --id <id>`.
type SpawnFunc func(ctx context.Context, workerID string) (Process, error)

// Result is the multi-worker run's final summary.
type Result struct {
	TotalGoals int
	Completed  int
	Failed     int
	Workers    int
	Merged     []string
	Conflicts  []string
}

// Coordinator spawns N workers against a shared backlog, monitors their
// health, and deterministically merges their branches back onto the base
// branch once the backlog is exhausted.
type Coordinator struct {
	Root    string // base repository working directory
	RunRoot string // per-run state directory (backlog, locks, heartbeats)
	Config  Config
	Spawn   SpawnFunc
	Bus     *events.Bus
	Logger  *klog.Logger

	baseBranch string
	backlog    *Backlog

	mu        sync.Mutex
	processes map[string]Process
}

func (c *Coordinator) heartbeatDir() string  { return state.WorkersDir(c.RunRoot) }
func (c *Coordinator) backlogPath() string   { return filepath.Join(c.RunRoot, "backlog.json") }
func (c *Coordinator) worktreeDir(id string) string {
	return filepath.Join(c.RunRoot, "worktrees", id)
}

// Branch returns the branch name assigned to worker id.
func (c *Coordinator) Branch(id string) string {
	c.Config.defaults()
	return c.Config.BranchPrefix + id
}

// BaseBranch returns the branch Setup recorded as the run's starting
// point, the branch each worker's own branch forks from and ultimately
// merges back onto.
func (c *Coordinator) BaseBranch() string {
	return c.baseBranch
}

// Setup records the base branch, requires a clean working tree, and
// prepares the shared backlog.
func (c *Coordinator) Setup(goals []*task.Task) error {
	c.Config.defaults()
	if c.Logger == nil {
		l := klog.Default()
		c.Logger = &l
	}
	g := git.NewGit(c.Root)
	branch, err := g.CurrentBranch()
	if err != nil {
		return kernelerr.New(kernelerr.RuntimeStateInvalid, "reading current branch", err)
	}
	if dirty, err := g.HasUncommittedChanges(); err != nil {
		return kernelerr.New(kernelerr.RuntimeStateInvalid, "checking working tree cleanliness", err)
	} else if dirty {
		return kernelerr.New(kernelerr.RuntimeStateInvalid, "working tree is not clean; commit or stash before a multi-worker run", nil)
	}
	c.baseBranch = branch

	backlog, err := NewBacklog(c.backlogPath(), goals)
	if err != nil {
		return err
	}
	c.backlog = backlog
	c.processes = make(map[string]Process)
	return nil
}

// Run executes the full lifecycle: spawn, monitor, merge, optional cleanup.
func (c *Coordinator) Run(ctx context.Context) (Result, error) {
	if err := c.spawnWorkers(ctx); err != nil {
		return Result{}, err
	}
	if err := c.monitor(ctx); err != nil {
		return Result{}, err
	}
	return c.finish()
}

func (c *Coordinator) spawnWorkers(ctx context.Context) error {
	for i := 1; i <= c.Config.NumWorkers; i++ {
		id := fmt.Sprintf("%d", i)
		proc, err := c.Spawn(ctx, id)
		if err != nil {
			return kernelerr.New(kernelerr.RuntimeStateInvalid, "spawning worker", err).WithContext("worker_id", id)
		}
		c.mu.Lock()
		c.processes[id] = proc
		c.mu.Unlock()
	}
	return nil
}

// monitor inspects every worker's heartbeat and liveness on each tick,
// recovering crashed or stuck workers' claims until all workers have
// exited, whether or not the backlog still has outstanding goals.
func (c *Coordinator) monitor(ctx context.Context) error {
	ticker := time.NewTicker(c.Config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.terminateAll()
			return ctx.Err()
		case <-ticker.C:
		}

		c.mu.Lock()
		ids := make([]string, 0, len(c.processes))
		for id := range c.processes {
			ids = append(ids, id)
		}
		c.mu.Unlock()

		for _, id := range ids {
			c.mu.Lock()
			proc := c.processes[id]
			c.mu.Unlock()

			if !proc.Alive() {
				if proc.ExitCode() != 0 {
					c.emit(events.WorkerCrashed, id, "exit code "+fmt.Sprintf("%d", proc.ExitCode()))
					if err := c.backlog.ReleaseAllFor(id); err != nil {
						c.Logger.Error("releasing crashed worker's claims", err, map[string]any{"worker_id": id})
					}
				}
				c.mu.Lock()
				delete(c.processes, id)
				c.mu.Unlock()
				continue
			}

			hb, err := ReadHeartbeat(c.heartbeatDir(), id)
			if err != nil {
				continue // no heartbeat yet; not stuck, just starting
			}
			threshold := time.Duration(c.Config.StuckAfter) * c.Config.HeartbeatInterval
			if time.Since(hb.LastHeartbeat) > threshold {
				c.emit(events.WorkerStuck, id, "")
				c.terminateOne(id, proc)
				if err := c.backlog.ReleaseAllFor(id); err != nil {
					c.Logger.Error("releasing stuck worker's claims", err, map[string]any{"worker_id": id})
				}
				c.mu.Lock()
				delete(c.processes, id)
				c.mu.Unlock()
			}
		}

		c.mu.Lock()
		remaining := len(c.processes)
		c.mu.Unlock()
		if remaining == 0 {
			done, err := c.backlog.Done()
			if err != nil {
				return err
			}
			if done {
				return nil
			}
			// Every worker exited but goals remain claimable (e.g. all
			// crashed): nothing left to make progress, stop monitoring.
			return nil
		}
	}
}

func (c *Coordinator) terminateOne(id string, proc Process) {
	_ = proc.Terminate()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && proc.Alive() {
		time.Sleep(100 * time.Millisecond)
	}
	if proc.Alive() {
		_ = proc.Kill()
	}
}

func (c *Coordinator) terminateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, proc := range c.processes {
		if proc.Alive() {
			_ = proc.Terminate()
		}
	}
}

func (c *Coordinator) emit(t events.Type, workerID, reason string) {
	if c.Bus == nil {
		return
	}
	data := map[string]any{"worker_id": workerID}
	if reason != "" {
		data["reason"] = reason
	}
	c.Bus.Emit(t, data)
}

// finish runs the merge phase, optionally deletes merged branches, and
// summarizes the run.
func (c *Coordinator) finish() (Result, error) {
	var branches []string
	for i := 1; i <= c.Config.NumWorkers; i++ {
		branches = append(branches, c.Branch(fmt.Sprintf("%d", i)))
	}

	g := git.NewGit(c.Root)
	mergeResult, err := mergePhase(g, c.baseBranch, branches)
	if err != nil {
		return Result{}, err
	}
	for _, conflicted := range mergeResult.Conflicts {
		c.emit(events.WorkerMergeConflict, conflicted, "rebase conflict during merge phase")
	}

	if c.Config.CleanupBranches {
		for _, err := range cleanupBranches(g, mergeResult.Merged) {
			c.Logger.Warn("branch cleanup", map[string]any{"error": err.Error()})
		}
	}

	completed, failed, outstanding, err := c.backlog.Counts()
	if err != nil {
		return Result{}, err
	}

	return Result{
		TotalGoals: completed + failed + outstanding,
		Completed:  completed,
		Failed:     failed,
		Workers:    c.Config.NumWorkers,
		Merged:     mergeResult.Merged,
		Conflicts:  mergeResult.Conflicts,
	}, nil
}
