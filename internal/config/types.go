// Package config provides the kernel's configuration types and
// serialization: a per-project sunwell.toml for behavioral settings, and a
// per-state-root JSON file for the mutable paths a run persists under.
//
// Follows a Load/Save-with-defaults shape, validated with
// go-playground/validator, applied here to sunwell.toml/state.json.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/sunwell-ai/sunwell/internal/util"
)

var validate = validator.New()

// CurrentProjectConfigVersion is the current schema version for ProjectConfig.
const CurrentProjectConfigVersion = 1

// ProjectConfig is the per-project sunwell.toml: behavioral settings that
// apply to every run against this workspace.
type ProjectConfig struct {
	Version int `toml:"version" validate:"required"`

	// DefaultModel names the model preset used when a run doesn't override
	// it ("claude-opus-4", "claude-sonnet-4", ...).
	DefaultModel string `toml:"default_model" validate:"required"`

	// Budget configures the per-session token/dollar ceilings.
	Budget BudgetConfig `toml:"budget"`

	// Worker configures multi-worker coordination.
	Worker WorkerConfig `toml:"worker"`

	// Reliability configures circuit breaker and backoff tunables.
	Reliability ReliabilityConfig `toml:"reliability"`

	// Gates lists validation check names, in order, e.g. ["build", "test",
	// "contract"]. It is stored and loaded only: no code reads it, and the
	// gate sequence a run uses is assembled in code.
	Gates []string `toml:"gates"`
}

// BudgetConfig mirrors reliability.Budget's fields for serialization.
type BudgetConfig struct {
	MaxTokens     int64   `toml:"max_tokens"`
	WarnAtTokens  int64   `toml:"warn_at_tokens"`
	MaxDollars    float64 `toml:"max_dollars"`
	WarnAtDollars float64 `toml:"warn_at_dollars"`
}

// WorkerConfig tunes multi-worker coordination.
type WorkerConfig struct {
	Count                  int           `toml:"count"`
	HeartbeatIntervalSec   int           `toml:"heartbeat_interval_sec"`
	StuckMultiplier        int           `toml:"stuck_multiplier"` // worker considered stuck after N x heartbeat interval
	DeleteMergedBranches   bool          `toml:"delete_merged_branches"`
}

// ReliabilityConfig tunes circuit breaker and backoff defaults.
type ReliabilityConfig struct {
	BreakerFailureThreshold int `toml:"breaker_failure_threshold"`
	BreakerOpenTimeoutSec   int `toml:"breaker_open_timeout_sec"`
	LLMCallCeiling          int `toml:"llm_call_ceiling"`
}

// DefaultProjectConfig returns the configuration a fresh workspace gets.
func DefaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version:      CurrentProjectConfigVersion,
		DefaultModel: "claude-sonnet-4",
		Budget: BudgetConfig{
			MaxTokens:     2_000_000,
			WarnAtTokens:  1_600_000,
			MaxDollars:    50,
			WarnAtDollars: 40,
		},
		Worker: WorkerConfig{
			Count:                3,
			HeartbeatIntervalSec: 15,
			StuckMultiplier:      12,
			DeleteMergedBranches: false,
		},
		Reliability: ReliabilityConfig{
			BreakerFailureThreshold: 5,
			BreakerOpenTimeoutSec:   30,
			LLMCallCeiling:          4,
		},
		Gates: []string{"contract"},
	}
}

// LoadProjectConfig reads and validates sunwell.toml at path.
func LoadProjectConfig(path string) (ProjectConfig, error) {
	var cfg ProjectConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return ProjectConfig{}, fmt.Errorf("sunwell.toml not found at %s: %w", path, err)
		}
		return ProjectConfig{}, fmt.Errorf("parsing sunwell.toml: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return ProjectConfig{}, fmt.Errorf("invalid sunwell.toml: %w", err)
	}
	return cfg, nil
}

// LoadOrCreateProjectConfig loads path, writing DefaultProjectConfig there
// first if it doesn't yet exist.
func LoadOrCreateProjectConfig(path string) (ProjectConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultProjectConfig()
		if err := SaveProjectConfig(path, cfg); err != nil {
			return ProjectConfig{}, err
		}
		return cfg, nil
	}
	return LoadProjectConfig(path)
}

// SaveProjectConfig writes cfg to path as TOML.
func SaveProjectConfig(path string, cfg ProjectConfig) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating sunwell.toml: %w", err)
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// RunState is the mutable, per-run state persisted under the state root as
// JSON (paths, not behavior — behavior lives in ProjectConfig).
type RunState struct {
	RunID        string    `json:"run_id"`
	GoalHash     string    `json:"goal_hash"`
	BaseBranch   string    `json:"base_branch"`
	StartedAt    time.Time `json:"started_at"`
	WorkspaceDir string    `json:"workspace_dir"`
	LineageDBPath string   `json:"lineage_db_path"`
	LocksDir     string    `json:"locks_dir"`
	RecoveryDir  string    `json:"recovery_dir"`
}

// SaveRunState persists state atomically.
func SaveRunState(path string, state RunState) error {
	return util.EnsureDirAndWriteJSON(path, state)
}

// LoadRunState reads a previously-persisted RunState.
func LoadRunState(path string) (RunState, error) {
	var state RunState
	data, err := os.ReadFile(path)
	if err != nil {
		return RunState{}, err
	}
	return state, json.Unmarshal(data, &state)
}
