// Package graph implements the task graph: construction validation,
// readiness, parallel-group partitioning, deadlock detection, and the
// pure analytics a scheduler needs (critical path length, max parallel
// width, parallelization ratio).
//
// Grounded on a prior DAG-of-steps workflow engine that already modeled
// dependencies via Needs and a Parallel flag
// (ParallelReadySteps); TaskGraph generalizes that to the full
// Task entity (artifact-level requires/produces, modifies-based conflict
// detection, contract uniqueness).
package graph

import (
	"fmt"
	"sort"

	"github.com/sunwell-ai/sunwell/internal/task"
)

// TaskGraph is an ordered collection of tasks plus their derived dependency relation.
type TaskGraph struct {
	tasks []*task.Task
	byID  map[string]*task.Task
}

// New validates tasks and constructs a TaskGraph, or returns an error
// describing the first invariant violation: unknown dependency id, produces collision, a
// `contract` referring to anything but exactly one is_contract producer,
// or a dependency cycle.
func New(tasks []*task.Task) (*TaskGraph, error) {
	g := &TaskGraph{tasks: tasks, byID: make(map[string]*task.Task, len(tasks))}

	for _, t := range tasks {
		if _, dup := g.byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate task id %q", t.ID)
		}
		g.byID[t.ID] = t
	}

	producedBy := make(map[string]string)
	contractProducer := make(map[string]string)
	for _, t := range tasks {
		for _, id := range t.DependsOn {
			if _, ok := g.byID[id]; !ok {
				return nil, fmt.Errorf("task %q depends_on unknown task %q", t.ID, id)
			}
		}
		for _, name := range t.Produces {
			if other, dup := producedBy[name]; dup {
				return nil, fmt.Errorf("artifact %q produced by both %q and %q", name, other, t.ID)
			}
			producedBy[name] = t.ID
		}
		if t.IsContract {
			for _, name := range t.Produces {
				contractProducer[name] = t.ID
			}
		}
	}
	for _, t := range tasks {
		for _, name := range t.Requires {
			if _, ok := producedBy[name]; !ok {
				return nil, fmt.Errorf("task %q requires artifact %q which no task produces", t.ID, name)
			}
		}
		if t.Contract != "" {
			if _, ok := contractProducer[t.Contract]; !ok {
				return nil, fmt.Errorf("task %q names contract %q with no is_contract producer", t.ID, t.Contract)
			}
		}
	}

	if cyc := findCycle(tasks, g.byID); cyc != nil {
		return nil, fmt.Errorf("cyclic depends_on detected: %v", cyc)
	}

	return g, nil
}

// Tasks returns the graph's tasks in construction order.
func (g *TaskGraph) Tasks() []*task.Task { return g.tasks }

// ByID looks up a task by id.
func (g *TaskGraph) ByID(id string) (*task.Task, bool) {
	t, ok := g.byID[id]
	return t, ok
}

func findCycle(tasks []*task.Task, byID map[string]*task.Task) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(tasks))
	var path []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		path = append(path, id)
		for _, dep := range byID[id].DependsOn {
			switch color[dep] {
			case gray:
				cycle = append(append([]string{}, path...), dep)
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		return false
	}

	for _, t := range tasks {
		if color[t.ID] == white {
			if visit(t.ID) {
				return cycle
			}
		}
	}
	return nil
}

// Ready returns pending tasks whose DependsOn and Requires are both
// satisfied by the given completed sets
func (g *TaskGraph) Ready(completedIDs, completedArtifacts map[string]struct{}) []*task.Task {
	var ready []*task.Task
	for _, t := range g.tasks {
		if t.Status != task.StatusPending {
			continue
		}
		if !subsetOf(t.DependsOn, completedIDs) {
			continue
		}
		if !subsetOf(t.Requires, completedArtifacts) {
			continue
		}
		ready = append(ready, t)
	}
	return ready
}

func subsetOf(items []string, set map[string]struct{}) bool {
	for _, it := range items {
		if _, ok := set[it]; !ok {
			return false
		}
	}
	return true
}

// GroupParallel partitions ready tasks into concurrent batches. Tasks
// sharing a ParallelGroup go into one batch iff their Modifies sets are
// pairwise disjoint; on conflict the group splits into singletons so two
// conflicting writers are never dispatched in the same batch.
func GroupParallel(ready []*task.Task) [][]*task.Task {
	byGroup := make(map[string][]*task.Task)
	var singletons []*task.Task
	var order []string
	for _, t := range ready {
		if t.ParallelGroup == "" {
			singletons = append(singletons, t)
			continue
		}
		if _, seen := byGroup[t.ParallelGroup]; !seen {
			order = append(order, t.ParallelGroup)
		}
		byGroup[t.ParallelGroup] = append(byGroup[t.ParallelGroup], t)
	}

	var batches [][]*task.Task
	for _, group := range order {
		members := byGroup[group]
		if disjointModifies(members) {
			batches = append(batches, members)
		} else {
			for _, t := range members {
				batches = append(batches, []*task.Task{t})
			}
		}
	}
	for _, t := range singletons {
		batches = append(batches, []*task.Task{t})
	}
	return batches
}

func disjointModifies(tasks []*task.Task) bool {
	seen := make(map[string]string)
	for _, t := range tasks {
		for _, path := range t.Modifies {
			if owner, ok := seen[path]; ok && owner != t.ID {
				return false
			}
			seen[path] = t.ID
		}
	}
	return true
}

// ConflictingPairs lists task id pairs whose Modifies sets overlap, for
// diagnostics (e.g. surfacing why a parallel group was split).
func (g *TaskGraph) ConflictingPairs() [][2]string {
	var pairs [][2]string
	for i := 0; i < len(g.tasks); i++ {
		for j := i + 1; j < len(g.tasks); j++ {
			if overlap(g.tasks[i].Modifies, g.tasks[j].Modifies) {
				pairs = append(pairs, [2]string{g.tasks[i].ID, g.tasks[j].ID})
			}
		}
	}
	return pairs
}

func overlap(a, b []string) bool {
	set := toSet(a)
	for _, p := range b {
		if _, ok := set[p]; ok {
			return true
		}
	}
	return false
}

func toSet(items []string) map[string]struct{} {
	s := make(map[string]struct{}, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

// DetectDeadlock reports true iff pending is non-empty and no task is ready
// under the given completed sets — the graph has stalled.
func (g *TaskGraph) DetectDeadlock(pending []*task.Task, completedIDs, completedArtifacts map[string]struct{}) bool {
	if len(pending) == 0 {
		return false
	}
	return len(g.Ready(completedIDs, completedArtifacts)) == 0
}

// CriticalPathLength returns the longest chain of tasks in DependsOn order,
// computed via memoized depth-first traversal.
func (g *TaskGraph) CriticalPathLength() int {
	memo := make(map[string]int)
	var longest func(id string) int
	longest = func(id string) int {
		if v, ok := memo[id]; ok {
			return v
		}
		best := 0
		for _, dep := range g.byID[id].DependsOn {
			if l := longest(dep); l > best {
				best = l
			}
		}
		memo[id] = best + 1
		return memo[id]
	}
	max := 0
	for _, t := range g.tasks {
		if l := longest(t.ID); l > max {
			max = l
		}
	}
	return max
}

// MaxParallelWidth returns the maximum number of tasks at any topological level.
func (g *TaskGraph) MaxParallelWidth() int {
	level := make(map[string]int)
	var levelOf func(id string) int
	levelOf = func(id string) int {
		if v, ok := level[id]; ok {
			return v
		}
		best := 0
		for _, dep := range g.byID[id].DependsOn {
			if l := levelOf(dep) + 1; l > best {
				best = l
			}
		}
		level[id] = best
		return best
	}
	counts := make(map[int]int)
	for _, t := range g.tasks {
		counts[levelOf(t.ID)]++
	}
	max := 0
	for _, c := range counts {
		if c > max {
			max = c
		}
	}
	return max
}

// ParallelizationRatio is total task count divided by critical path length.
func (g *TaskGraph) ParallelizationRatio() float64 {
	cp := g.CriticalPathLength()
	if cp == 0 {
		return 0
	}
	return float64(len(g.tasks)) / float64(cp)
}

// SortedIDs returns all task ids in deterministic sorted order, used by
// callers that need stable iteration (e.g. serialization round-trips).
func (g *TaskGraph) SortedIDs() []string {
	ids := make([]string, 0, len(g.tasks))
	for _, t := range g.tasks {
		ids = append(ids, t.ID)
	}
	sort.Strings(ids)
	return ids
}
