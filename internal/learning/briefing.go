package learning

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/sunwell-ai/sunwell/internal/kernelerr"
	"github.com/sunwell-ai/sunwell/internal/util"
)

// Status is the Briefing's closed progress enum.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusComplete   Status = "complete"
)

// Briefing is the rolling per-project context written at the end of one run
// and read at the start of the next, seeding the planner without it having
// to rediscover what a prior run already learned.
type Briefing struct {
	Mission            string     `json:"mission"`
	Status             Status     `json:"status"`
	Progress           string     `json:"progress"`
	HotFiles           []string   `json:"hot_files,omitempty"`
	Hazards            []string   `json:"hazards,omitempty"`
	PredictedSkills    []string   `json:"predicted_skills,omitempty"`
	ComplexityEstimate string     `json:"complexity_estimate,omitempty"`
	Learnings          []Learning `json:"learnings,omitempty"`
	DeadEnds           []DeadEnd  `json:"dead_ends,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func briefingPath(stateRoot string) string {
	return filepath.Join(stateRoot, "briefing.json")
}

// LoadBriefing reads the previous run's briefing, if any. A missing file is
// not an error: the very first run in a project has none yet.
func LoadBriefing(stateRoot string) (*Briefing, error) {
	data, err := os.ReadFile(briefingPath(stateRoot))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, kernelerr.New(kernelerr.RuntimeStateInvalid, "reading briefing", err)
	}
	var b Briefing
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, kernelerr.New(kernelerr.RuntimeStateInvalid, "parsing briefing", err)
	}
	return &b, nil
}

// Save persists b atomically under stateRoot, overwriting any prior briefing
// (the briefing is a rolling snapshot, not an append-only log).
func (b *Briefing) Save(stateRoot string) error {
	b.UpdatedAt = time.Now()
	if err := os.MkdirAll(stateRoot, 0755); err != nil {
		return kernelerr.New(kernelerr.RuntimeStateInvalid, "creating state root", err)
	}
	if err := util.AtomicWriteJSON(briefingPath(stateRoot), b); err != nil {
		return kernelerr.New(kernelerr.RuntimeStateInvalid, "writing briefing", err)
	}
	return nil
}

// AsContext renders the briefing as a short text block a planner prompt can
// prepend, mirroring internal/recovery's healing-context builder.
func (b *Briefing) AsContext() string {
	if b == nil {
		return ""
	}
	out := "## Prior run briefing\n"
	out += "Status: " + string(b.Status) + "\n"
	if b.Progress != "" {
		out += "Progress: " + b.Progress + "\n"
	}
	if len(b.Hazards) > 0 {
		out += "Known hazards:\n"
		for _, h := range b.Hazards {
			out += "- " + h + "\n"
		}
	}
	if len(b.DeadEnds) > 0 {
		out += "Approaches already tried and rejected:\n"
		for _, d := range b.DeadEnds {
			out += "- " + d.Approach + ": " + d.Reason + "\n"
		}
	}
	if len(b.Learnings) > 0 {
		out += "Learned facts:\n"
		for _, l := range b.Learnings {
			out += "- " + l.Fact + "\n"
		}
	}
	return out
}
