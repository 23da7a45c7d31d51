// Package exec implements the Execution Coordinator: drives a TaskGraph to
// a terminal state, dispatching tasks by mode and emitting events for
// observers within a wall-clock budget.
package exec

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sunwell-ai/sunwell/internal/events"
	"github.com/sunwell-ai/sunwell/internal/gate"
	"github.com/sunwell-ai/sunwell/internal/graph"
	"github.com/sunwell-ai/sunwell/internal/kernelerr"
	"github.com/sunwell-ai/sunwell/internal/klog"
	"github.com/sunwell-ai/sunwell/internal/lineage"
	"github.com/sunwell-ai/sunwell/internal/metrics"
	"github.com/sunwell-ai/sunwell/internal/model"
	"github.com/sunwell-ai/sunwell/internal/reliability"
	"github.com/sunwell-ai/sunwell/internal/task"
	"github.com/sunwell-ai/sunwell/internal/tool"
)

// Dispatcher runs one task to completion, given the artifacts already
// produced by the graph so far. Mode-specific behavior lives in dispatch.go.
type Dispatcher interface {
	Dispatch(ctx context.Context, t *task.Task) DispatchResult
}

// DispatchResult is one task's outcome.
type DispatchResult struct {
	Status    task.Status
	Output    string
	Err       error
	Artifacts []string
}

// Coordinator drives a TaskGraph to a terminal state.
type Coordinator struct {
	Graph     *graph.TaskGraph
	Model     model.Model
	Tools     *tool.Registry
	Lineage   *lineage.Store
	Bus       *events.Bus
	Budget    *reliability.Budget
	Breaker   *reliability.Breaker
	GateSeq   *gate.Sequence
	Logger    klog.Logger

	// WallClockBudget bounds the whole run; zero means unbounded.
	WallClockBudget time.Duration
	// MaxToolTurns bounds GENERATE mode's agentic tool loop.
	MaxToolTurns int

	completedIDs       map[string]struct{}
	completedArtifacts map[string]struct{}
	failedIDs          map[string]struct{}
	mu                 sync.Mutex
}

// Run drives the graph to completion, returning the final completed-task ID
// set and any run-fatal error (timeout or cancellation; the coordinator never returns an
// error for an individual task's failure — that's isolated).
func (c *Coordinator) Run(ctx context.Context) (map[string]struct{}, error) {
	c.completedIDs = make(map[string]struct{})
	c.completedArtifacts = make(map[string]struct{})
	c.failedIDs = make(map[string]struct{})

	deadline := time.Time{}
	if c.WallClockBudget > 0 {
		deadline = time.Now().Add(c.WallClockBudget)
	}

	for {
		if !deadline.IsZero() && time.Now().After(deadline) {
			c.failRemaining("wall-clock budget exceeded")
			return c.completedIDs, kernelerr.New(kernelerr.RuntimeStateInvalid, "run exceeded its wall-clock budget", nil)
		}
		select {
		case <-ctx.Done():
			c.failRemaining("run cancelled")
			return c.completedIDs, ctx.Err()
		default:
		}

		c.skipBlockedByFailed()

		pending := c.pendingTasks()
		if len(pending) == 0 {
			c.runContractGates(ctx)
			return c.completedIDs, nil
		}

		ready := c.Graph.Ready(c.completedIDs, c.completedArtifacts)
		if len(ready) == 0 {
			if c.Graph.DetectDeadlock(pending, c.completedIDs, c.completedArtifacts) {
				c.failRemaining("deadlock: no ready tasks and none in flight can unblock the rest")
				return c.completedIDs, nil
			}
			// A task is presumably in flight elsewhere (multi-worker mode);
			// yield briefly so the event emitter drains, then re-check.
			time.Sleep(10 * time.Millisecond)
			continue
		}

		for _, batch := range graph.GroupParallel(ready) {
			c.runBatch(ctx, batch)
		}
	}
}

func (c *Coordinator) pendingTasks() []*task.Task {
	var pending []*task.Task
	for _, t := range c.Graph.Tasks() {
		if !t.Terminal() {
			pending = append(pending, t)
		}
	}
	return pending
}

func (c *Coordinator) failRemaining(reason string) {
	for _, t := range c.pendingTasks() {
		t.Status = task.StatusFailed
		t.Error = reason
		c.emit(events.TaskFailed, t, map[string]any{"reason": reason})
	}
}

// skipBlockedByFailed marks every still-pending task whose DependsOn
// references a failed task as skipped, rather than letting Ready() treat a
// failed dependency as satisfied. Run loops until no ready tasks remain, so
// a chain of skips (A fails, B depends on A, C depends on B) resolves one
// link per iteration until it converges.
func (c *Coordinator) skipBlockedByFailed() {
	c.mu.Lock()
	if len(c.failedIDs) == 0 {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	for _, t := range c.pendingTasks() {
		if t.Status != task.StatusPending {
			continue
		}
		var blockedBy string
		c.mu.Lock()
		for _, dep := range t.DependsOn {
			if _, failed := c.failedIDs[dep]; failed {
				blockedBy = dep
				break
			}
		}
		c.mu.Unlock()
		if blockedBy == "" {
			continue
		}
		t.Status = task.StatusSkipped
		t.Error = "blocked: dependency " + blockedBy + " failed"
		c.mu.Lock()
		c.completedIDs[t.ID] = struct{}{}
		// A blocked task blocks its own dependents in turn.
		c.failedIDs[t.ID] = struct{}{}
		c.mu.Unlock()
		c.emit(events.TaskSkipped, t, map[string]any{"reason": t.Error, "blocked_by": blockedBy})
	}
}

// runBatch dispatches every task in a parallel-safe batch concurrently and
// waits for all of them, never interleaving with the next batch.
func (c *Coordinator) runBatch(ctx context.Context, batch []*task.Task) {
	if len(batch) == 1 {
		c.runOne(ctx, batch[0])
		return
	}
	var g errgroup.Group
	for _, t := range batch {
		t := t
		g.Go(func() error {
			c.runOne(ctx, t)
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Coordinator) runOne(ctx context.Context, t *task.Task) {
	c.runOneResult(ctx, t)
}

// RunSingleTask dispatches exactly one task assumed already ready (its
// DependsOn and Requires are the caller's responsibility to have verified)
// and returns its outcome directly, bypassing the whole-graph Run loop.
// This is what internal/worker's per-goal claim-execute-commit loop drives
// when a single worker owns one goal at a time rather than a
// whole TaskGraph batch.
func (c *Coordinator) RunSingleTask(ctx context.Context, t *task.Task) DispatchResult {
	if c.completedIDs == nil {
		c.completedIDs = make(map[string]struct{})
	}
	if c.completedArtifacts == nil {
		c.completedArtifacts = make(map[string]struct{})
	}
	if c.failedIDs == nil {
		c.failedIDs = make(map[string]struct{})
	}
	return c.runOneResult(ctx, t)
}

func (c *Coordinator) runOneResult(ctx context.Context, t *task.Task) DispatchResult {
	start := time.Now()
	t.Status = task.StatusRunning
	c.emit(events.TaskStart, t, nil)

	if err := t.ValidateMode(); err != nil {
		c.completeAsFailed(t, err.Error())
		return DispatchResult{Status: t.Status, Err: err}
	}

	result := c.dispatch(ctx, t)
	metrics.TaskDuration.WithLabelValues(string(t.Mode)).Observe(time.Since(start).Seconds())

	switch result.Status {
	case task.StatusCompleted:
		t.Status = task.StatusCompleted
		t.Output = result.Output
		c.mu.Lock()
		c.completedIDs[t.ID] = struct{}{}
		for _, a := range result.Artifacts {
			c.completedArtifacts[a] = struct{}{}
		}
		c.mu.Unlock()
		metrics.TasksDispatched.WithLabelValues(string(t.Mode), "completed").Inc()
		c.emit(events.TaskComplete, t, map[string]any{"artifacts": result.Artifacts})
	case task.StatusSkipped:
		t.Status = task.StatusSkipped
		c.mu.Lock()
		c.completedIDs[t.ID] = struct{}{}
		c.mu.Unlock()
		metrics.TasksDispatched.WithLabelValues(string(t.Mode), "skipped").Inc()
	default:
		reason := "dispatch failed"
		if result.Err != nil {
			reason = result.Err.Error()
		}
		c.completeAsFailed(t, reason)
		metrics.TasksDispatched.WithLabelValues(string(t.Mode), "failed").Inc()
	}
	return result
}

func (c *Coordinator) completeAsFailed(t *task.Task, reason string) {
	t.Status = task.StatusFailed
	t.Error = reason
	c.mu.Lock()
	c.failedIDs[t.ID] = struct{}{}
	c.mu.Unlock()
	c.emit(events.TaskFailed, t, map[string]any{"reason": reason})
}

// runContractGates validates every completed task that declares a contract
// against its implementation file, once the graph has finished. A failing
// gate marks the task failed after the fact rather than re-running the
// whole graph; recovery beyond that is the caller's job.
func (c *Coordinator) runContractGates(ctx context.Context) {
	if c.GateSeq == nil {
		return
	}
	for _, t := range c.Graph.Tasks() {
		if t.Contract == "" || t.Status != task.StatusCompleted {
			continue
		}
		art := gate.Artifact{
			Path:         t.TargetPath,
			ContractFile: t.Contract,
			TaskID:       t.ID,
		}
		result := c.GateSeq.Run(ctx, art)
		if !result.Passed {
			reason := "contract gate failed"
			if len(result.Errors) > 0 {
				reason = result.Errors[0].Error()
			}
			c.mu.Lock()
			delete(c.completedIDs, t.ID)
			c.mu.Unlock()
			c.completeAsFailed(t, reason)
		}
	}
}

func (c *Coordinator) emit(t events.Type, task *task.Task, data map[string]any) {
	if c.Bus == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	data["task_id"] = task.ID
	data["mode"] = string(task.Mode)
	c.Bus.Emit(t, data)
}
