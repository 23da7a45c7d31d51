package learning

import (
	"path/filepath"
	"testing"
)

func TestLoadBriefingReturnsNilWhenAbsent(t *testing.T) {
	b, err := LoadBriefing(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if b != nil {
		t.Fatalf("expected nil briefing for a fresh project, got %+v", b)
	}
}

func TestSaveThenLoadBriefingRoundTrips(t *testing.T) {
	root := t.TempDir()
	b := &Briefing{
		Mission:  "ship the billing module",
		Status:   StatusInProgress,
		Progress: "3 of 5 tasks complete",
		Hazards:  []string{"migrations are not idempotent"},
		DeadEnds: []DeadEnd{{Approach: "raw SQL string formatting", Reason: "sql injection risk", Gate: "security"}},
	}
	if err := b.Save(root); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadBriefing(root)
	if err != nil {
		t.Fatal(err)
	}
	if loaded == nil || loaded.Mission != b.Mission || loaded.Status != b.Status {
		t.Fatalf("round trip mismatch: got %+v", loaded)
	}
	if len(loaded.DeadEnds) != 1 || loaded.DeadEnds[0].Approach != "raw SQL string formatting" {
		t.Fatalf("expected dead end to round trip, got %+v", loaded.DeadEnds)
	}

	ctx := loaded.AsContext()
	if ctx == "" {
		t.Fatal("expected non-empty rendered context")
	}
	_ = filepath.Join(root, "briefing.json")
}
