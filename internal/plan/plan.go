// Package plan asks the model for several candidate task graphs for one
// mission and picks the best by structural score, rather than committing
// to whichever graph the model produces first.
//
// Follows a best-of-N strategy (generate N candidates, score, pick the
// winner) — adapted from an LLM-judge score to the kernel's own
// deterministic graph analytics (ParallelizationRatio/CriticalPathLength),
// since a planning candidate's quality here is structural, not prose quality.
package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sunwell-ai/sunwell/internal/graph"
	"github.com/sunwell-ai/sunwell/internal/kernelerr"
	"github.com/sunwell-ai/sunwell/internal/model"
	"github.com/sunwell-ai/sunwell/internal/task"
)

// Candidate is one proposed task graph plus its derived score.
type Candidate struct {
	Tasks                []*task.Task
	ParallelizationRatio float64
	CriticalPathLength   int
}

// Planner generates and scores candidate task graphs for a mission.
type Planner struct {
	Model model.Model
	// Candidates is how many independent graphs to request before picking
	// the best (lowb_strategies.py's "best-of-N"); defaults to 3.
	Candidates int
}

func (p *Planner) candidateCount() int {
	if p.Candidates <= 0 {
		return 3
	}
	return p.Candidates
}

// systemPrompt instructs the model to return one task graph as JSON, with
// no prose — the same "code only" discipline as the source's example
// prompts, applied to structured planning output instead of source code.
const systemPrompt = `You are a software planning assistant. Given a mission, respond with a JSON array of tasks, each with fields: id, description, mode (RESEARCH, COMMAND, GENERATE, VERIFY, or SELF_IMPROVE), depends_on (array of task ids), requires (array of artifact paths), produces (array of artifact paths), modifies (array of artifact paths). Respond with ONLY the JSON array, no commentary.`

// Propose asks the model for Candidates independent graphs for mission and
// returns every one that parses and validates, even if fewer than asked
// for survive — a planner that can't produce a single valid graph returns
// an error instead of silently proceeding with zero candidates.
func (p *Planner) Propose(ctx context.Context, mission string) ([]Candidate, error) {
	var candidates []Candidate
	var lastErr error

	for i := 0; i < p.candidateCount(); i++ {
		messages := []model.Message{
			{Role: "user", Content: fmt.Sprintf("Mission: %s\n\nPropose task graph candidate #%d. Vary the decomposition from any prior attempt.", mission, i+1)},
		}
		resp, err := p.Model.Generate(ctx, messages, model.Options{
			Temperature:  0.4,
			MaxTokens:    4096,
			SystemPrompt: systemPrompt,
		})
		if err != nil {
			lastErr = err
			continue
		}

		tasks, err := parseTasks(resp.Text)
		if err != nil {
			lastErr = err
			continue
		}
		g, err := graph.New(tasks)
		if err != nil {
			lastErr = err
			continue
		}
		candidates = append(candidates, Candidate{
			Tasks:                tasks,
			ParallelizationRatio: g.ParallelizationRatio(),
			CriticalPathLength:   g.CriticalPathLength(),
		})
	}

	if len(candidates) == 0 {
		return nil, kernelerr.New(kernelerr.RuntimeStateInvalid, "no candidate graph validated", lastErr)
	}
	return candidates, nil
}

// Best picks the candidate with the highest parallelization ratio, a
// shorter critical path breaking ties — the same structural shape
// analytics define "good" as (more concurrency, a shorter
// longest chain).
func Best(candidates []Candidate) Candidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.ParallelizationRatio > best.ParallelizationRatio {
			best = c
			continue
		}
		if c.ParallelizationRatio == best.ParallelizationRatio && c.CriticalPathLength < best.CriticalPathLength {
			best = c
		}
	}
	return best
}

// parseTasks extracts a JSON task array from the model's response,
// tolerating a single leading/trailing markdown fence (internal/exec's
// fence-stripping convention — open question 4).
func parseTasks(text string) ([]*task.Task, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) == 2 {
			text = lines[1]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	var tasks []*task.Task
	if err := json.Unmarshal([]byte(text), &tasks); err != nil {
		return nil, fmt.Errorf("parsing candidate graph: %w", err)
	}
	for _, t := range tasks {
		if t.Status == "" {
			t.Status = task.StatusPending
		}
	}
	return tasks, nil
}
