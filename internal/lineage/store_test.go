package lineage

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "lineage.bolt"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestScenarioDRestoreAfterDeleteReusesArtifactID(t *testing.T) {
	s := openTestStore(t)
	content := []byte("package main\n\nfunc main() {}\n")

	created, err := s.RecordCreate("x.py", content, "goal-1", "task-1", "claude")
	if err != nil {
		t.Fatalf("record create: %v", err)
	}

	if _, err := s.RecordDelete("x.py"); err != nil {
		t.Fatalf("record delete: %v", err)
	}

	restored, err := s.RecordCreate("y.py", content, "goal-2", "task-2", "claude")
	if err != nil {
		t.Fatalf("record create (restore): %v", err)
	}

	if restored.Artifact.ArtifactID != created.Artifact.ArtifactID {
		t.Fatalf("expected reused artifact id %q, got %q", created.Artifact.ArtifactID, restored.Artifact.ArtifactID)
	}
	if len(restored.Imports) != 0 || len(restored.ImportedBy) != 0 {
		t.Fatalf("expected fresh import edges for restored path, got imports=%v importedBy=%v", restored.Imports, restored.ImportedBy)
	}
}

func TestRecordEditUpdatesHashAndSetsHumanEdited(t *testing.T) {
	s := openTestStore(t)
	original := []byte("v1")
	if _, err := s.RecordCreate("a.go", original, "g", "t", "m"); err != nil {
		t.Fatalf("create: %v", err)
	}

	edited := []byte("v2")
	l, err := s.RecordEdit("a.go", 1, 0, SourceHuman, edited, "g", "t")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if !l.Artifact.HumanEdited {
		t.Fatal("expected human_edited to be set")
	}
	if l.Artifact.ContentHash != hashContent(edited) {
		t.Fatal("content hash did not follow the edit")
	}

	// human_edited is permanent: a subsequent sunwell edit must not clear it.
	l2, err := s.RecordEdit("a.go", 0, 1, SourceSunwell, []byte("v3"), "g", "t")
	if err != nil {
		t.Fatalf("second edit: %v", err)
	}
	if !l2.Artifact.HumanEdited {
		t.Fatal("expected human_edited to remain set after a subsequent non-human edit")
	}
}

func TestUpdateImportsMaintainsReverseEdges(t *testing.T) {
	s := openTestStore(t)
	for _, p := range []string{"a.go", "b.go"} {
		if _, err := s.RecordCreate(p, []byte(p), "g", "t", "m"); err != nil {
			t.Fatalf("create %s: %v", p, err)
		}
	}

	if err := s.UpdateImports("a.go", []string{"b.go"}); err != nil {
		t.Fatalf("update imports: %v", err)
	}

	if got := s.GetDependents("b.go"); len(got) != 1 || got[0] != "a.go" {
		t.Fatalf("expected b.go dependents [a.go], got %v", got)
	}

	// Replacing a.go's imports with an empty set must remove the reverse edge.
	if err := s.UpdateImports("a.go", nil); err != nil {
		t.Fatalf("clearing imports: %v", err)
	}
	if got := s.GetDependents("b.go"); len(got) != 0 {
		t.Fatalf("expected no dependents after clearing imports, got %v", got)
	}
}

func TestRecordEditContentHashInvariant(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.RecordCreate("f.go", []byte("one"), "g", "t", "m"); err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, content := range [][]byte{[]byte("two"), []byte("three"), []byte("four")} {
		l, err := s.RecordEdit("f.go", 1, 1, SourceSunwell, content, "g", "t")
		if err != nil {
			t.Fatalf("edit: %v", err)
		}
		if l.Artifact.ContentHash != hashContent(content) {
			t.Fatalf("content hash mismatch after edit to %q", content)
		}
		last := l.Edits[len(l.Edits)-1]
		if last.ContentHash != l.Artifact.ContentHash {
			t.Fatal("latest edit's content hash must match artifact's current hash")
		}
	}
}
