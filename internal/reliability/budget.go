package reliability

import (
	"sync"

	"github.com/sunwell-ai/sunwell/internal/kernelerr"
	"github.com/sunwell-ai/sunwell/internal/metrics"
)

// Budget tracks cumulative token and dollar spend for a run. Check returns a
// fatal BudgetExhausted error once the hard ceiling is reached. Crossing a
// warning threshold raises no error and emits no event; it shows only as
// TokensWarned/DollarsWarned in Status.
//
// Budget checks run before the circuit breaker in the call path (see
// SPEC_FULL.md §5.1 open question 2): a caller out of budget should fail
// fast on its own terms rather than consuming a breaker attempt.
type Budget struct {
	mu sync.Mutex

	SessionID string

	MaxTokens     int64
	WarnAtTokens  int64
	MaxDollars    float64
	WarnAtDollars float64

	tokensUsed  int64
	dollarsUsed float64
}

// Status summarizes a budget's current occupancy.
type Status struct {
	TokensUsed    int64
	DollarsUsed   float64
	TokensWarned  bool
	DollarsWarned bool
}

// Record adds consumed tokens/dollars and updates the exported gauge.
func (b *Budget) Record(tokens int64, dollars float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokensUsed += tokens
	b.dollarsUsed += dollars
	metrics.BudgetTokensUsed.WithLabelValues(b.SessionID).Set(float64(b.tokensUsed))
}

// Status returns a snapshot of the budget's spend.
func (b *Budget) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{
		TokensUsed:    b.tokensUsed,
		DollarsUsed:   b.dollarsUsed,
		TokensWarned:  b.MaxTokens > 0 && b.tokensUsed >= b.WarnAtTokens,
		DollarsWarned: b.MaxDollars > 0 && b.dollarsUsed >= b.WarnAtDollars,
	}
}

// Check returns a *kernelerr.Error when the budget has been exhausted, nil
// otherwise. Callers invoke this before every LLM call, ahead of any
// circuit breaker check.
func (b *Budget) Check() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.MaxTokens > 0 && b.tokensUsed >= b.MaxTokens {
		return kernelerr.New(kernelerr.BudgetExhausted, "token budget exhausted", nil).
			WithContext("tokens_used", b.tokensUsed).
			WithContext("max_tokens", b.MaxTokens)
	}
	if b.MaxDollars > 0 && b.dollarsUsed >= b.MaxDollars {
		return kernelerr.New(kernelerr.BudgetExhausted, "dollar budget exhausted", nil).
			WithContext("dollars_used", b.dollarsUsed).
			WithContext("max_dollars", b.MaxDollars)
	}
	return nil
}
