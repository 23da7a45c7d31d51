package reliability

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
)

// GitAvailableCheck verifies the git binary the multi-worker coordinator
// depends on is on PATH, mirroring the doctor package's dependency checks
// (e.g. BeadsDatabaseCheck) applied to this kernel's own dependency.
type GitAvailableCheck struct{ BaseCheck }

// NewGitAvailableCheck builds a GitAvailableCheck.
func NewGitAvailableCheck() GitAvailableCheck {
	return GitAvailableCheck{BaseCheck{CheckName: "git-available"}}
}

func (c GitAvailableCheck) Run(ctx context.Context, cc CheckContext) *CheckResult {
	if _, err := exec.LookPath("git"); err != nil {
		return &CheckResult{Name: c.Name(), Status: StatusError, Message: "git not found on PATH", FixHint: "install git"}
	}
	return &CheckResult{Name: c.Name(), Status: StatusOK, Message: "git is available"}
}

// StateRootWritableCheck verifies the persisted state root exists and
// accepts writes, since every other component (lineage, recovery, locks)
// depends on it.
type StateRootWritableCheck struct{ BaseCheck }

// NewStateRootWritableCheck builds a StateRootWritableCheck.
func NewStateRootWritableCheck() StateRootWritableCheck {
	return StateRootWritableCheck{BaseCheck{CheckName: "state-root-writable"}}
}

func (c StateRootWritableCheck) Run(ctx context.Context, cc CheckContext) *CheckResult {
	if cc.StateRoot == "" {
		return &CheckResult{Name: c.Name(), Status: StatusError, Message: "no state root configured"}
	}
	probe := filepath.Join(cc.StateRoot, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		return &CheckResult{Name: c.Name(), Status: StatusError, Message: "state root is not writable: " + err.Error(), FixHint: "check permissions on " + cc.StateRoot}
	}
	_ = os.Remove(probe)
	return &CheckResult{Name: c.Name(), Status: StatusOK, Message: "state root is writable"}
}

// ProjectConfigExistsCheck verifies sunwell.toml exists under the workspace root.
type ProjectConfigExistsCheck struct{ BaseCheck }

// NewProjectConfigExistsCheck builds a ProjectConfigExistsCheck.
func NewProjectConfigExistsCheck() ProjectConfigExistsCheck {
	return ProjectConfigExistsCheck{BaseCheck{CheckName: "project-config-exists"}}
}

func (c ProjectConfigExistsCheck) Run(ctx context.Context, cc CheckContext) *CheckResult {
	path := filepath.Join(cc.WorkspaceRoot, "sunwell.toml")
	if _, err := os.Stat(path); err != nil {
		return &CheckResult{Name: c.Name(), Status: StatusWarning, Message: "sunwell.toml not found; a default will be created on next run", FixHint: "run `sunwell run` once to seed it"}
	}
	return &CheckResult{Name: c.Name(), Status: StatusOK, Message: "sunwell.toml found"}
}

// AnthropicKeyConfiguredCheck verifies the model API key is set; absent is a
// warning, not an error, since a research-only run never calls the model.
type AnthropicKeyConfiguredCheck struct{ BaseCheck }

// NewAnthropicKeyConfiguredCheck builds an AnthropicKeyConfiguredCheck.
func NewAnthropicKeyConfiguredCheck() AnthropicKeyConfiguredCheck {
	return AnthropicKeyConfiguredCheck{BaseCheck{CheckName: "anthropic-key-configured"}}
}

func (c AnthropicKeyConfiguredCheck) Run(ctx context.Context, cc CheckContext) *CheckResult {
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		return &CheckResult{Name: c.Name(), Status: StatusWarning, Message: "ANTHROPIC_API_KEY is not set; GENERATE/VERIFY tasks will fail", FixHint: "export ANTHROPIC_API_KEY=..."}
	}
	return &CheckResult{Name: c.Name(), Status: StatusOK, Message: "ANTHROPIC_API_KEY is set"}
}
