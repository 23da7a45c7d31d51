package worker

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sunwell-ai/sunwell/internal/git"
)

// MergeResult is the outcome of the merge phase.
type MergeResult struct {
	Merged    []string
	Conflicts []string
}

// firstCommitTime returns the timestamp of branch's first commit that
// isn't also on base, via merge-base — generalized from a branch-created-date
// helper that assumed the remote default branch (a worker's base branch
// need not be that) to an arbitrary base branch, and to full ISO-8601
// precision so same-day branches still sort deterministically.
func firstCommitTime(g *git.Git, base, branch string) (time.Time, error) {
	out, err := g.LogFirstCommitAfter(base, branch)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, strings.TrimSpace(out))
}

// mergePhase checks out baseBranch and merges every worker branch with at
// least one commit ahead, in order of first-commit timestamp: rebase each onto the (possibly-advanced)
// base, fast-forward base to it on success, or mark it conflicted and
// move on without touching base.
func mergePhase(g *git.Git, baseBranch string, branches []string) (MergeResult, error) {
	if err := g.Checkout(baseBranch); err != nil {
		return MergeResult{}, fmt.Errorf("checking out base branch %s: %w", baseBranch, err)
	}

	type timedBranch struct {
		name string
		at   time.Time
	}
	var candidates []timedBranch
	for _, b := range branches {
		ahead, err := g.CommitsAhead(baseBranch, b)
		if err != nil || ahead == 0 {
			continue
		}
		at, err := firstCommitTime(g, baseBranch, b)
		if err != nil {
			at = time.Time{} // undated branches sort first, merged in encounter order
		}
		candidates = append(candidates, timedBranch{name: b, at: at})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].at.Before(candidates[j].at)
	})

	var result MergeResult
	for _, c := range candidates {
		if err := g.Checkout(c.name); err != nil {
			return result, fmt.Errorf("checking out %s: %w", c.name, err)
		}
		if err := g.Rebase(baseBranch); err != nil {
			_ = g.AbortRebase()
			if err := g.Checkout(baseBranch); err != nil {
				return result, fmt.Errorf("returning to base branch after conflict: %w", err)
			}
			result.Conflicts = append(result.Conflicts, c.name)
			continue
		}
		if err := g.Checkout(baseBranch); err != nil {
			return result, fmt.Errorf("returning to base branch after rebase: %w", err)
		}
		if err := g.Merge(c.name); err != nil {
			result.Conflicts = append(result.Conflicts, c.name)
			continue
		}
		result.Merged = append(result.Merged, c.name)
	}
	return result, nil
}

// cleanupBranches deletes every merged branch; conflicted branches are
// left in place for human review.
func cleanupBranches(g *git.Git, branches []string) []error {
	var errs []error
	for _, b := range branches {
		if err := g.DeleteBranch(b, true); err != nil {
			errs = append(errs, fmt.Errorf("deleting branch %s: %w", b, err))
		}
	}
	return errs
}
