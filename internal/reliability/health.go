package reliability

import "context"

// Status is a health check's outcome severity, named after the pattern
// observed across the doctor package's concrete checks (rig_check.go,
// beads_check.go): those files use Status{OK,Warning,Error} without the
// pack ever surfacing the base type, so it's defined here.
type Status int

const (
	StatusOK Status = iota
	StatusWarning
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWarning:
		return "warning"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// CheckResult is one health check's outcome.
type CheckResult struct {
	Name    string
	Status  Status
	Message string
	FixHint string
}

// CheckContext carries whatever a check needs to inspect kernel state
// without every Check implementation importing the whole kernel.
type CheckContext struct {
	WorkspaceRoot string
	StateRoot     string
}

// Check is one diagnosable condition the kernel can self-report on, the Go
// analogue of the doctor package's per-concern check files.
type Check interface {
	Name() string
	Run(ctx context.Context, cc CheckContext) *CheckResult
}

// BaseCheck gives concrete checks a default Name() via embedding, mirroring
// the doctor package's shared-base convention.
type BaseCheck struct {
	CheckName string
}

func (b BaseCheck) Name() string { return b.CheckName }

// RunAll runs every check and returns their results in order.
func RunAll(ctx context.Context, cc CheckContext, checks []Check) []*CheckResult {
	results := make([]*CheckResult, 0, len(checks))
	for _, c := range checks {
		results = append(results, c.Run(ctx, cc))
	}
	return results
}
