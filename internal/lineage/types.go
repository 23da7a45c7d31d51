// Package lineage is the artifact lineage store: content-addressed
// artifact identity, the append-only edit log, the import graph, and the
// identity-resolution rule that reuses ids across delete/restore cycles.
package lineage

import "time"

// EditType enumerates the kinds of edit events.
type EditType string

const (
	EditCreate EditType = "create"
	EditModify EditType = "modify"
	EditRename EditType = "rename"
	EditDelete EditType = "delete"
)

// Source identifies who made an edit.
type Source string

const (
	SourceSunwell Source = "sunwell"
	SourceHuman   Source = "human"
	SourceExternal Source = "external"
)

// Artifact is a file in the workspace plus identity metadata.
type Artifact struct {
	ArtifactID      string    `json:"artifact_id"` // "{uuid}:{content_hash_prefix}"
	Path            string    `json:"path"`
	ContentHash     string    `json:"content_hash"`
	CreatedByGoal   string    `json:"created_by_goal"`
	CreatedByTask   string    `json:"created_by_task"`
	CreatedAt       time.Time `json:"created_at"`
	Model           string    `json:"model,omitempty"`
	HumanEdited     bool      `json:"human_edited"`
}

// Edit is an immutable event in an artifact's history.
type Edit struct {
	EditID       string    `json:"edit_id"`
	ArtifactID   string    `json:"artifact_id"`
	GoalID       string    `json:"goal_id,omitempty"`
	TaskID       string    `json:"task_id,omitempty"`
	LinesAdded   int       `json:"lines_added"`
	LinesRemoved int       `json:"lines_removed"`
	EditType     EditType  `json:"edit_type"`
	Source       Source    `json:"source"`
	Timestamp    time.Time `json:"timestamp"`
	ContentHash  string    `json:"content_hash"`
}

// Lineage is the copy-on-write aggregate view over an artifact: every
// mutating Store operation returns a new Lineage value rather than
// mutating the previous one in place.
type Lineage struct {
	Artifact   Artifact
	Edits      []Edit
	Imports    []string
	ImportedBy []string
	DeletedAt  *time.Time
}

// Clone returns a deep-enough copy safe for independent mutation by the caller.
func (l Lineage) Clone() Lineage {
	cp := l
	cp.Edits = append([]Edit(nil), l.Edits...)
	cp.Imports = append([]string(nil), l.Imports...)
	cp.ImportedBy = append([]string(nil), l.ImportedBy...)
	if l.DeletedAt != nil {
		t := *l.DeletedAt
		cp.DeletedAt = &t
	}
	return cp
}
