// Package worker implements the multi-worker coordinator: a shared goal
// backlog with exclusive-access claiming, per-worker claim-execute-commit
// loops running on their own git branch, heartbeat-based crash/stuck
// detection, and a deterministic rebase-merge phase back onto the base
// branch.
//
// Grounded on a prior subprocess-manager pair's worker-lifecycle shape
// (spawn, monitor, status file, cleanup) and on a reference
// parallel-coordinator implementation for the exact monitor/merge
// algorithm this package is a from-scratch Go port of.
package worker

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/sunwell-ai/sunwell/internal/graph"
	"github.com/sunwell-ai/sunwell/internal/kernelerr"
	"github.com/sunwell-ai/sunwell/internal/task"
)

// Claim records which worker currently owns a goal, for crash recovery.
type Claim struct {
	WorkerID  string    `json:"worker_id"`
	ClaimedAt time.Time `json:"claimed_at"`
}

// backlogDoc is the on-disk representation of a Backlog: the full goal
// list (each task.Task already carries its own Status/Output/Error) plus
// the claims currently outstanding.
type backlogDoc struct {
	Goals  []*task.Task     `json:"goals"`
	Claims map[string]Claim `json:"claims"`
}

// Backlog is the shared claim–execute–commit work queue workers pull from.
// Every read-modify-write cycle is guarded by an exclusive file lock so a
// goal is claimed by at most one worker at a time.
type Backlog struct {
	path string
	fl   *flock.Flock
}

// NewBacklog creates (or opens) a backlog document at path, seeding it
// with goals on first creation. Reopening an existing path ignores goals
// and picks up whatever state is already on disk — a worker restarting
// after a crash resumes the same backlog rather than re-seeding it.
func NewBacklog(path string, goals []*task.Task) (*Backlog, error) {
	b := &Backlog{path: path, fl: flock.New(path + ".lock")}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		doc := backlogDoc{Goals: goals, Claims: map[string]Claim{}}
		if err := b.write(doc); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Backlog) read() (backlogDoc, error) {
	var doc backlogDoc
	data, err := os.ReadFile(b.path)
	if err != nil {
		return doc, kernelerr.New(kernelerr.IOFileNotFound, "reading backlog", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, kernelerr.New(kernelerr.RuntimeStateInvalid, "parsing backlog", err)
	}
	if doc.Claims == nil {
		doc.Claims = map[string]Claim{}
	}
	return doc, nil
}

func (b *Backlog) write(doc backlogDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0755); err != nil {
		return kernelerr.New(kernelerr.IOWriteFailed, "creating backlog directory", err)
	}
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return kernelerr.New(kernelerr.IOWriteFailed, "writing backlog", err)
	}
	return os.Rename(tmp, b.path)
}

// withExclusive runs fn under the backlog's exclusive file lock, reloading
// the document first and persisting whatever fn leaves in *backlogDoc.
func (b *Backlog) withExclusive(fn func(*backlogDoc) error) error {
	if err := b.fl.Lock(); err != nil {
		return kernelerr.New(kernelerr.IOWriteFailed, "acquiring backlog lock", err)
	}
	defer b.fl.Unlock()

	doc, err := b.read()
	if err != nil {
		return err
	}
	if err := fn(&doc); err != nil {
		return err
	}
	return b.write(doc)
}

func completedSets(doc backlogDoc) (ids, artifacts map[string]struct{}) {
	ids = make(map[string]struct{})
	artifacts = make(map[string]struct{})
	for _, g := range doc.Goals {
		if g.Status == task.StatusCompleted || g.Status == task.StatusFailed || g.Status == task.StatusSkipped {
			ids[g.ID] = struct{}{}
		}
		if g.Status == task.StatusCompleted {
			for _, a := range g.Produces {
				artifacts[a] = struct{}{}
			}
		}
	}
	return ids, artifacts
}

// ClaimNext atomically picks one ready, unclaimed goal for workerID and
// marks it claimed. ok is false when nothing is currently claimable —
// either the backlog is exhausted or every ready goal already belongs to
// another worker.
func (b *Backlog) ClaimNext(workerID string) (goal *task.Task, ok bool, err error) {
	err = b.withExclusive(func(doc *backlogDoc) error {
		g, buildErr := graph.New(doc.Goals)
		if buildErr != nil {
			return kernelerr.New(kernelerr.RuntimeStateInvalid, "backlog goals form an invalid graph", buildErr)
		}
		completedIDs, completedArtifacts := completedSets(*doc)
		for _, candidate := range g.Ready(completedIDs, completedArtifacts) {
			if _, claimed := doc.Claims[candidate.ID]; claimed {
				continue
			}
			doc.Claims[candidate.ID] = Claim{WorkerID: workerID, ClaimedAt: time.Now()}
			goal = candidate
			ok = true
			return nil
		}
		return nil
	})
	return goal, ok, err
}

// Complete records a goal as completed with its produced artifacts and
// releases its claim.
func (b *Backlog) Complete(goalID string, output string) error {
	return b.withExclusive(func(doc *backlogDoc) error {
		delete(doc.Claims, goalID)
		for _, g := range doc.Goals {
			if g.ID == goalID {
				g.Status = task.StatusCompleted
				g.Output = output
				return nil
			}
		}
		return kernelerr.New(kernelerr.RuntimeStateInvalid, "completing unknown goal", nil).WithContext("goal_id", goalID)
	})
}

// Fail records a goal as permanently failed (not reclaimable — distinct
// from Release, which is for crash recovery) and releases its claim.
func (b *Backlog) Fail(goalID, reason string) error {
	return b.withExclusive(func(doc *backlogDoc) error {
		delete(doc.Claims, goalID)
		for _, g := range doc.Goals {
			if g.ID == goalID {
				g.Status = task.StatusFailed
				g.Error = reason
				return nil
			}
		}
		return kernelerr.New(kernelerr.RuntimeStateInvalid, "failing unknown goal", nil).WithContext("goal_id", goalID)
	})
}

// Release returns a goal to the pool unclaimed, without altering its
// status — used when a worker crashes mid-execution so another worker can
// pick the goal back up.
func (b *Backlog) Release(goalID string) error {
	return b.withExclusive(func(doc *backlogDoc) error {
		delete(doc.Claims, goalID)
		return nil
	})
}

// ReleaseAllFor releases every goal currently claimed by workerID, for
// whole-worker crash recovery.
func (b *Backlog) ReleaseAllFor(workerID string) error {
	return b.withExclusive(func(doc *backlogDoc) error {
		for id, c := range doc.Claims {
			if c.WorkerID == workerID {
				delete(doc.Claims, id)
			}
		}
		return nil
	})
}

// Done reports whether every goal has reached a terminal status.
func (b *Backlog) Done() (bool, error) {
	doc, err := b.read()
	if err != nil {
		return false, err
	}
	for _, g := range doc.Goals {
		if g.Status == task.StatusPending || g.Status == task.StatusRunning {
			return false, nil
		}
	}
	return true, nil
}

// Counts returns the number of completed, failed, and still-outstanding
// (pending or claimed) goals, for status reporting.
func (b *Backlog) Counts() (completed, failed, outstanding int, err error) {
	doc, err := b.read()
	if err != nil {
		return 0, 0, 0, err
	}
	for _, g := range doc.Goals {
		switch g.Status {
		case task.StatusCompleted, task.StatusSkipped:
			completed++
		case task.StatusFailed:
			failed++
		default:
			outstanding++
		}
	}
	return completed, failed, outstanding, nil
}

// ClaimsFor returns the goal IDs currently claimed by workerID.
func (b *Backlog) ClaimsFor(workerID string) ([]string, error) {
	doc, err := b.read()
	if err != nil {
		return nil, err
	}
	var ids []string
	for id, c := range doc.Claims {
		if c.WorkerID == workerID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
