// Package contract implements the tiered Protocol-compliance verifier:
// AST structural check, then static type check, then an optional LLM
// semantic check, stopping at the first conclusive result.
//
// Ported directly from a reference tiered-verification implementation:
// the tier order, short-circuit rules, and result shape are a literal
// port. Python's duck-typed "Protocol" becomes a Go interface type declaration;
// mypy's role in Tier 2 is played by `go vet` against a focused
// source set.
package contract

import "time"

// Tier identifies one of the three verification stages.
type Tier string

const (
	TierAST       Tier = "ast"
	TierTypeCheck Tier = "type_check"
	TierLLM       Tier = "llm"
)

// Status is the overall verification outcome.
type Status string

const (
	StatusPassed Status = "PASSED"
	StatusFailed Status = "FAILED"
	StatusError  Status = "ERROR"
)

// MethodMismatch describes one signature discrepancy found between a
// contract's declared method and the implementation's actual method.
type MethodMismatch struct {
	MethodName string `json:"method_name"`
	Issue      string `json:"issue"`
	Expected   string `json:"expected,omitempty"`
	Actual     string `json:"actual,omitempty"`
}

// TierResult records one tier's outcome.
type TierResult struct {
	Tier       Tier             `json:"tier"`
	Passed     bool             `json:"passed"`
	Message    string           `json:"message"`
	Mismatches []MethodMismatch `json:"mismatches,omitempty"`
	DurationMS int64            `json:"duration_ms"`
}

// Result is the final verification outcome returned to callers.
type Result struct {
	Status             Status           `json:"status"`
	InterfaceName      string           `json:"interface_name"`
	ImplementationFile string           `json:"implementation_file"`
	ContractFile       string           `json:"contract_file"`
	TierResults        []TierResult     `json:"tier_results"`
	FinalTier          Tier             `json:"final_tier,omitempty"`
	Mismatches         []MethodMismatch `json:"mismatches,omitempty"`
	ErrorMessage       string           `json:"error_message,omitempty"`
}

// Passed reports whether the overall check passed.
func (r Result) Passed() bool { return r.Status == StatusPassed }

func elapsedMS(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
