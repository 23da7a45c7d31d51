// Package task defines the Task entity and its closed mode enum.
//
// The source dispatches on a mode string dynamically; here Mode is a
// closed Go enum and Dispatch exhaustively switches over it, turning any
// value the switch doesn't recognize into a runtime.state_invalid error
// rather than silently no-opping.
package task

import "github.com/sunwell-ai/sunwell/internal/kernelerr"

// Mode selects a task's dispatch path.
type Mode string

const (
	ModeResearch    Mode = "RESEARCH"
	ModeCommand     Mode = "COMMAND"
	ModeGenerate    Mode = "GENERATE"
	ModeVerify      Mode = "VERIFY"
	ModeSelfImprove Mode = "SELF_IMPROVE"
)

// Valid reports whether m is a recognized mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeResearch, ModeCommand, ModeGenerate, ModeVerify, ModeSelfImprove:
		return true
	default:
		return false
	}
}

// Effort is a scheduling-irrelevant estimation hint.
type Effort string

const (
	EffortTrivial Effort = "trivial"
	EffortSmall   Effort = "small"
	EffortMedium  Effort = "medium"
	EffortLarge   Effort = "large"
)

// Status is a task's lifecycle state, mutated only by the execution coordinator.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Task is one node in a TaskGraph.
type Task struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Mode        Mode   `json:"mode"`
	Effort      Effort `json:"effort,omitempty"`

	DependsOn []string `json:"depends_on,omitempty"`
	Requires  []string `json:"requires,omitempty"`
	Produces  []string `json:"produces,omitempty"`
	Modifies  []string `json:"modifies,omitempty"`
	Tools     []string `json:"tools,omitempty"`

	ParallelGroup string `json:"parallel_group,omitempty"`

	Contract    string `json:"contract,omitempty"`
	IsContract  bool   `json:"is_contract,omitempty"`
	TargetPath  string `json:"target_path,omitempty"`

	// Domain is a human-facing grouping label (e.g. "backend", "docs").
	// It has no effect on scheduling — see SPEC_FULL.md §5.1 open question 1.
	Domain string `json:"domain,omitempty"`

	Status Status `json:"status"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// DependsOnSet returns DependsOn as a lookup set.
func (t *Task) DependsOnSet() map[string]struct{} { return toSet(t.DependsOn) }

// RequiresSet returns Requires as a lookup set.
func (t *Task) RequiresSet() map[string]struct{} { return toSet(t.Requires) }

// ModifiesSet returns Modifies as a lookup set.
func (t *Task) ModifiesSet() map[string]struct{} { return toSet(t.Modifies) }

func toSet(items []string) map[string]struct{} {
	s := make(map[string]struct{}, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

// Terminal reports whether the task has reached a terminal status.
func (t *Task) Terminal() bool {
	switch t.Status {
	case StatusCompleted, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// ValidateMode returns a runtime.state_invalid kernel error if Mode is unrecognized.
func (t *Task) ValidateMode() error {
	if !t.Mode.Valid() {
		return kernelerr.New(kernelerr.RuntimeStateInvalid, "unrecognized task mode: "+string(t.Mode), nil).
			WithContext("task_id", t.ID)
	}
	return nil
}
