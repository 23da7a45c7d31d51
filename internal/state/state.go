// Package state resolves sunwell's on-disk directory layout: StateDir and
// ConfigDir are the XDG-compliant roots agentcontext falls back to when it
// has no project directory to root a layout under; LineageDBPath,
// RecoveryDir, LocksDir, and WorkersDir are the fixed sub-layout underneath
// whatever root it picks (a project-local ".sunwell" directory in the
// common case).
//
// Adapted from a global enable/disable state package: the XDG
// path-resolution helpers (StateDir/ConfigDir) are kept verbatim in shape;
// the per-run layout helpers below them were generalized to take an
// explicit root instead of always hanging off StateDir(), since sunwell's
// state root is per-project, not per-XDG-home.
package state

import (
	"os"
	"path/filepath"
)

// StateDir returns the XDG-compliant state directory for sunwell.
// Uses ~/.local/state/sunwell/ (per the XDG Base Directory Specification).
// Used as the fallback state root when a caller has no project directory
// of its own to root a layout under (e.g. a global, not-per-project run).
func StateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "sunwell")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "sunwell")
}

// ConfigDir returns the XDG-compliant config directory for sunwell, where a
// persisted Anthropic API key falls back to when ANTHROPIC_API_KEY isn't
// set in the environment (see agentcontext.loadStoredAPIKey).
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "sunwell")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "sunwell")
}

// LineageDBPath returns the lineage store path underneath a state root.
func LineageDBPath(root string) string {
	return filepath.Join(root, "lineage.bolt")
}

// RecoveryDir returns the recovery-state directory underneath a state root.
func RecoveryDir(root string) string {
	return filepath.Join(root, "recovery")
}

// LocksDir returns the per-file advisory lock directory underneath a state root.
func LocksDir(root string) string {
	return filepath.Join(root, "locks")
}

// WorkersDir returns the directory holding every worker's per-id heartbeat
// file underneath a state root; internal/worker owns the per-id filename
// within it.
func WorkersDir(root string) string {
	return filepath.Join(root, "workers")
}

// EnsureRoot creates every subdirectory a run needs underneath a state root.
func EnsureRoot(root string) error {
	for _, dir := range []string{root, RecoveryDir(root), LocksDir(root), WorkersDir(root)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
