// This file records one cross-cutting design decision for this package:
// how budget checks and circuit breaker calls interleave around an LLM
// invocation.
//
// Budget.Check runs first, before Breaker.Call: a budget-exhausted run
// should fail on its own terms (StopDispatch) rather than spend a breaker
// attempt it was never going to complete. The breaker only ever sees calls
// the budget has already approved, so its consecutive-failure count reflects
// genuine provider failures, not self-inflicted budget stops.
package reliability
