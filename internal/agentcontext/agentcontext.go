// Package agentcontext builds the AgentContext: the one injected-dependency
// container a run's components share, replacing the module-level
// singletons redesign flag calls out ("global run manager,
// event bus, run store, workspace manager... inject an AgentContext
// carrying these as explicit dependencies. No module-level state.").
//
// Grounded on a command-construction pattern where the root command builds
// one set of shared clients and passes them down explicitly to each
// subcommand, rather than package-level vars, generalized from a CLI's
// command tree to this kernel's run lifecycle.
package agentcontext

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sunwell-ai/sunwell/internal/config"
	"github.com/sunwell-ai/sunwell/internal/events"
	"github.com/sunwell-ai/sunwell/internal/gate"
	"github.com/sunwell-ai/sunwell/internal/governor"
	"github.com/sunwell-ai/sunwell/internal/kernelerr"
	"github.com/sunwell-ai/sunwell/internal/klog"
	"github.com/sunwell-ai/sunwell/internal/lineage"
	"github.com/sunwell-ai/sunwell/internal/model"
	"github.com/sunwell-ai/sunwell/internal/recovery"
	"github.com/sunwell-ai/sunwell/internal/reliability"
	"github.com/sunwell-ai/sunwell/internal/state"
)

// AgentContext is the full set of dependencies one run needs, constructed
// once at process start and passed down explicitly — never read from a
// package-level variable.
type AgentContext struct {
	RunID      string
	ProjectDir string
	StateRoot  string // <ProjectDir>/.sunwell, or state.StateDir() when no ProjectDir was given

	Config config.ProjectConfig

	Model   model.Model
	Bus     *events.Bus
	Logger  *klog.Logger
	Budget  *reliability.Budget
	Breaker *reliability.Breaker
	Watcher *reliability.Watcher

	Governor *governor.Governor
	Lineage  *lineage.Store
	Recovery *recovery.Store
	GateSeq  *gate.Sequence
}

// Options configures New; zero values take the same defaults
// DefaultProjectConfig and the reliability constructors already use.
type Options struct {
	ProjectDir  string
	RunID       string // generated if empty
	AnthropicKey string
	Checks      []gate.Check // validation sequence; contract check is added by the caller
}

// New wires one AgentContext: loads (or seeds) the project's sunwell.toml,
// opens the lineage store and governor under the project's state root, and
// constructs the reliability primitives from its tunables. Teardown
// belongs to the caller (Close flushes/closes what New opened).
func New(opts Options) (*AgentContext, error) {
	// ProjectDir "" means the caller has no workspace to root a layout
	// under (e.g. a global command run outside any project) — fall back to
	// the XDG state root instead of a ".sunwell" relative to the process's
	// cwd. Any other value, including ".", roots the layout at
	// <ProjectDir>/.sunwell.
	global := opts.ProjectDir == ""
	if global {
		opts.ProjectDir = "."
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	stateRoot := filepath.Join(opts.ProjectDir, ".sunwell")
	if global {
		stateRoot = state.StateDir()
	}
	if err := state.EnsureRoot(stateRoot); err != nil {
		return nil, kernelerr.New(kernelerr.RuntimeStateInvalid, "preparing state root", err).WithContext("dir", stateRoot)
	}

	cfgPath := filepath.Join(opts.ProjectDir, "sunwell.toml")
	cfg, err := config.LoadOrCreateProjectConfig(cfgPath)
	if err != nil {
		return nil, err
	}

	logger := klog.Default()

	key := opts.AnthropicKey
	if key == "" {
		key = loadStoredAPIKey()
	}
	var m model.Model
	if key != "" {
		m = model.NewAnthropicModel(key, cfg.DefaultModel)
	}

	lineageStore, err := lineage.Open(state.LineageDBPath(stateRoot))
	if err != nil {
		return nil, err
	}
	recoveryStore, err := recovery.NewStore(state.RecoveryDir(stateRoot))
	if err != nil {
		return nil, err
	}

	budget := &reliability.Budget{
		SessionID:     runID,
		MaxTokens:     cfg.Budget.MaxTokens,
		WarnAtTokens:  cfg.Budget.WarnAtTokens,
		MaxDollars:    cfg.Budget.MaxDollars,
		WarnAtDollars: cfg.Budget.WarnAtDollars,
	}
	breaker := reliability.NewBreaker(reliability.BreakerConfig{
		Name:             "model",
		FailureThreshold: uint32(cfg.Reliability.BreakerFailureThreshold),
		OpenTimeout:      time.Duration(cfg.Reliability.BreakerOpenTimeoutSec) * time.Second,
		HalfOpenMaxCalls: 1,
	})

	gov := governor.NewGovernor(cfg.Reliability.LLMCallCeiling, state.LocksDir(stateRoot))

	bus := events.NewBus(256)

	gateSeq := &gate.Sequence{Bus: bus}
	gateSeq.Checks = opts.Checks

	return &AgentContext{
		RunID:      runID,
		ProjectDir: opts.ProjectDir,
		StateRoot:  stateRoot,
		Config:     cfg,
		Model:      m,
		Bus:        bus,
		Logger:     &logger,
		Budget:     budget,
		Breaker:    breaker,
		Watcher:    reliability.NewWatcher(3),
		Governor:   gov,
		Lineage:    lineageStore,
		Recovery:   recoveryStore,
		GateSeq:    gateSeq,
	}, nil
}

// Close releases everything New opened. Safe to call once per AgentContext.
func (ac *AgentContext) Close() error {
	if ac.Lineage != nil {
		return ac.Lineage.Close()
	}
	return nil
}

// RecoveryFilePath returns where a terminal-failure snapshot for goalHash
// would live, for callers checking whether a resume is possible.
func (ac *AgentContext) RecoveryFilePath(goalHash string) string {
	return filepath.Join(state.RecoveryDir(ac.StateRoot), fmt.Sprintf("%s.json", goalHash))
}

// loadStoredAPIKey reads a persisted Anthropic API key from the XDG config
// directory, the fallback when ANTHROPIC_API_KEY isn't set in the
// environment. Missing file or any read error just means no stored key.
func loadStoredAPIKey() string {
	data, err := os.ReadFile(filepath.Join(state.ConfigDir(), "anthropic_api_key"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
