// Package recovery persists terminal-failure state and builds the healing
// context a retry prompt needs
package recovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sunwell-ai/sunwell/internal/kernelerr"
	"github.com/sunwell-ai/sunwell/internal/util"
)

// ArtifactOutcome records one artifact's fate within a failed run.
type ArtifactOutcome struct {
	Path         string `json:"path"`
	ErrorExcerpt string `json:"error_excerpt,omitempty"`
	Content      string `json:"content,omitempty"`
}

// State is the terminal-failure record persisted atomically, keyed by
// goal_hash.
type State struct {
	GoalHash      string            `json:"goal_hash"`
	Goal          string            `json:"goal"`
	RunID         string            `json:"run_id"`
	FailureReason string            `json:"failure_reason"`
	Passed        []ArtifactOutcome `json:"passed"`
	Failed        []ArtifactOutcome `json:"failed"`
	Waiting       []ArtifactOutcome `json:"waiting"`
	ErrorDetails  []*kernelerr.Error `json:"error_details,omitempty"`
	Summary       string            `json:"summary"`
	SavedAt       time.Time         `json:"saved_at"`
}

// Store persists recovery states as one JSON file per goal hash under dir.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir, creating it if absent.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating recovery directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(goalHash string) string {
	return filepath.Join(s.dir, goalHash+".json")
}

// Save persists state atomically, keyed by its GoalHash.
func (s *Store) Save(state State) error {
	state.SavedAt = time.Now()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(s.path(state.GoalHash), data, 0644)
}

// List returns the goal hashes of every pending recovery state.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var hashes []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			hashes = append(hashes, strings.TrimSuffix(e.Name(), ".json"))
		}
	}
	sort.Strings(hashes)
	return hashes, nil
}

// Load reads the recovery state for an exact or unambiguous-prefix goal
// hash match.
func (s *Store) Load(idOrPrefix string) (State, error) {
	exact := s.path(idOrPrefix)
	if data, err := os.ReadFile(exact); err == nil {
		var state State
		return state, json.Unmarshal(data, &state)
	}

	hashes, err := s.List()
	if err != nil {
		return State{}, err
	}
	var matches []string
	for _, h := range hashes {
		if strings.HasPrefix(h, idOrPrefix) {
			matches = append(matches, h)
		}
	}
	switch len(matches) {
	case 0:
		return State{}, fmt.Errorf("no recovery state matches %q", idOrPrefix)
	case 1:
		data, err := os.ReadFile(s.path(matches[0]))
		if err != nil {
			return State{}, err
		}
		var state State
		return state, json.Unmarshal(data, &state)
	default:
		return State{}, fmt.Errorf("ambiguous prefix %q matches %d recovery states", idOrPrefix, len(matches))
	}
}

// MarkResolved deletes a recovery state once a human (or a successful
// retry) has addressed it.
func (s *Store) MarkResolved(goalHash string) error {
	err := os.Remove(s.path(goalHash))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// WritePassedOnly rewrites state with only its Passed artifacts retained —
// used when a retry succeeds partially and the caller wants to shrink the
// recovery record rather than delete it outright.
func (s *Store) WritePassedOnly(goalHash string) error {
	state, err := s.Load(goalHash)
	if err != nil {
		return err
	}
	state.Failed = nil
	state.Waiting = nil
	return s.Save(state)
}

// Abort deletes a recovery state unconditionally; callers are expected to
// have already confirmed with the human operator.
func (s *Store) Abort(goalHash string) error {
	return s.MarkResolved(goalHash)
}

// BuildHealingContext renders the text block prepended to a retry prompt:
// the goal, one block per failed artifact with its last error and content,
// and an optional user-supplied hint.
func BuildHealingContext(state State, userHint string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n\n", state.Goal)
	fmt.Fprintf(&b, "Previous attempt failed: %s\n\n", state.FailureReason)

	if len(state.Passed) > 0 {
		b.WriteString("Artifacts that already passed (do not redo these):\n")
		for _, a := range state.Passed {
			fmt.Fprintf(&b, "  - %s\n", a.Path)
		}
		b.WriteString("\n")
	}

	if len(state.Failed) > 0 {
		b.WriteString("Artifacts that failed, with their last error:\n")
		for _, a := range state.Failed {
			fmt.Fprintf(&b, "--- %s ---\n", a.Path)
			fmt.Fprintf(&b, "error: %s\n", a.ErrorExcerpt)
			if a.Content != "" {
				fmt.Fprintf(&b, "content:\n%s\n", a.Content)
			}
			b.WriteString("\n")
		}
	}

	if userHint != "" {
		fmt.Fprintf(&b, "Hint from the operator: %s\n", userHint)
	}

	return b.String()
}
