package agentcontext

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewPreparesStateRootAndDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir()) // no stored API key to pick up

	ac, err := New(Options{ProjectDir: dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ac.Close()

	if ac.RunID == "" {
		t.Fatal("expected a generated run id")
	}
	if ac.StateRoot != filepath.Join(dir, ".sunwell") {
		t.Fatalf("unexpected state root: %s", ac.StateRoot)
	}
	for _, sub := range []string{"recovery", "locks", "workers"} {
		if _, err := os.Stat(filepath.Join(ac.StateRoot, sub)); err != nil {
			t.Errorf("expected %s to exist: %v", sub, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "sunwell.toml")); err != nil {
		t.Errorf("expected sunwell.toml to be seeded: %v", err)
	}
	if ac.Config.DefaultModel == "" {
		t.Error("expected a default model to be set")
	}
	if ac.Model != nil {
		t.Error("expected a nil Model when no API key is configured")
	}
	if ac.Budget == nil || ac.Breaker == nil || ac.Governor == nil || ac.Lineage == nil || ac.Recovery == nil || ac.GateSeq == nil {
		t.Fatal("expected every reliability/storage dependency to be wired")
	}
}

func TestNewReusesAnExistingProjectConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "sunwell.toml"), []byte("version = 1\ndefault_model = \"claude-opus-4\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ac, err := New(Options{ProjectDir: dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ac.Close()

	if ac.Config.DefaultModel != "claude-opus-4" {
		t.Fatalf("expected the existing config to be honored, got %q", ac.Config.DefaultModel)
	}
}

// TestNewWithNoProjectDirUsesXDGStateRoot checks the "no workspace" branch:
// an empty ProjectDir falls back to the XDG state directory instead of a
// ".sunwell" relative to the process's cwd.
func TestNewWithNoProjectDirUsesXDGStateRoot(t *testing.T) {
	xdgHome := t.TempDir()
	t.Setenv("XDG_STATE_HOME", xdgHome)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	tmp := t.TempDir()
	if err := os.Chdir(tmp); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(cwd)

	ac, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ac.Close()

	want := filepath.Join(xdgHome, "sunwell")
	if ac.StateRoot != want {
		t.Fatalf("StateRoot = %q, want %q", ac.StateRoot, want)
	}
}

// TestNewFallsBackToStoredAPIKey checks that a key persisted under the XDG
// config directory is picked up when ANTHROPIC_API_KEY isn't passed in.
func TestNewFallsBackToStoredAPIKey(t *testing.T) {
	cfgHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", cfgHome)
	keyDir := filepath.Join(cfgHome, "sunwell")
	if err := os.MkdirAll(keyDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(keyDir, "anthropic_api_key"), []byte("sk-test-123\n"), 0600); err != nil {
		t.Fatal(err)
	}

	ac, err := New(Options{ProjectDir: t.TempDir()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ac.Close()

	if ac.Model == nil {
		t.Fatal("expected a Model to be configured from the stored API key")
	}
}
