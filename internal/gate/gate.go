// Package gate runs the post-task validation sequence: a task's produced
// artifacts are checked against whatever the task declares (a contract, a
// build step, a test command) and the run emits a pass/fail outcome with
// structured errors a repair loop can consume.
//
// The sequence-of-checks shape is grounded on the doctor package's
// BaseCheck/CheckResult convention (internal/reliability.Check), applied
// here to task artifacts instead of environment diagnostics.
package gate

import (
	"context"
	"time"

	"github.com/sunwell-ai/sunwell/internal/contract"
	"github.com/sunwell-ai/sunwell/internal/events"
	"github.com/sunwell-ai/sunwell/internal/kernelerr"
	"github.com/sunwell-ai/sunwell/internal/metrics"
)

// Check is one validation step in a gate sequence.
type Check interface {
	Name() string
	Run(ctx context.Context, art Artifact) error
}

// Artifact is the subset of task-produced data a gate needs to validate.
type Artifact struct {
	Path             string
	ContractFile     string
	ContractName     string
	ImplTypeName     string
	TaskID           string
}

// Result is one artifact's gate outcome.
type Result struct {
	Artifact Artifact
	Passed   bool
	Errors   []*kernelerr.Error
	Duration time.Duration
}

// Sequence runs an ordered list of Checks against an artifact, short-
// circuiting on the first that fails — matching the Contract Verifier's
// own first-conclusive-result rule so gate failures are always attributable
// to one step.
type Sequence struct {
	Name   string
	Checks []Check
	Bus    *events.Bus
}

// Run executes the sequence against art, emitting gate_start/gate_pass/
// gate_fail events and recording metrics.
func (s *Sequence) Run(ctx context.Context, art Artifact) Result {
	start := time.Now()
	s.emit(events.GateStart, art)

	for _, c := range s.Checks {
		if err := c.Run(ctx, art); err != nil {
			kerr, ok := kernelerr.As(err)
			if !ok {
				kerr = kernelerr.New(kernelerr.ValidationScriptFailed, err.Error(), err)
			}
			kerr.WithContext("check", c.Name())
			s.emit(events.GateFail, art)
			metrics.GateResults.WithLabelValues(s.Name, "fail").Inc()
			return Result{Artifact: art, Passed: false, Errors: []*kernelerr.Error{kerr}, Duration: time.Since(start)}
		}
	}

	s.emit(events.GatePass, art)
	metrics.GateResults.WithLabelValues(s.Name, "pass").Inc()
	return Result{Artifact: art, Passed: true, Duration: time.Since(start)}
}

func (s *Sequence) emit(t events.Type, art Artifact) {
	if s.Bus == nil {
		return
	}
	s.Bus.Emit(t, map[string]any{"task_id": art.TaskID, "path": art.Path})
}

// ContractCheck adapts a contract.Verifier into a gate.Check, the concrete
// check the Execution Coordinator's post-graph "contract validation" pass
// runs for every completed task that declares a contract.
type ContractCheck struct {
	Verifier *contract.Verifier
}

func (c ContractCheck) Name() string { return "contract_verification" }

func (c ContractCheck) Run(ctx context.Context, art Artifact) error {
	if art.ContractFile == "" {
		return nil // no contract declared; nothing to verify
	}
	result, err := c.Verifier.Verify(ctx, art.Path, art.ContractFile, art.ContractName, art.ImplTypeName)
	if err != nil {
		return err
	}
	if !result.Passed() {
		kerr := kernelerr.New(kernelerr.ValidationInvalidOutput, "contract verification failed at tier "+string(result.FinalTier), nil)
		kerr.WithContext("mismatches", result.Mismatches)
		return kerr
	}
	return nil
}
