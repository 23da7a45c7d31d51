package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sunwell-ai/sunwell/internal/agentcontext"
	"github.com/sunwell-ai/sunwell/internal/contract"
	"github.com/sunwell-ai/sunwell/internal/events"
	"github.com/sunwell-ai/sunwell/internal/exec"
	"github.com/sunwell-ai/sunwell/internal/gate"
	"github.com/sunwell-ai/sunwell/internal/graph"
	"github.com/sunwell-ai/sunwell/internal/learning"
	"github.com/sunwell-ai/sunwell/internal/plan"
	"github.com/sunwell-ai/sunwell/internal/task"
	"github.com/sunwell-ai/sunwell/internal/tool"
	"github.com/sunwell-ai/sunwell/internal/util"
)

var (
	runTasksFile   string
	runMaxTurns    int
	runWallClock   time.Duration
	runCandidates  int
)

var runCmd = &cobra.Command{
	Use:     "run [mission]",
	Short:   "Plan (optional) and execute a task graph to completion",
	GroupID: GroupRun,
	Args:    cobra.MaximumNArgs(1),
	RunE:    runRun,
}

func init() {
	runCmd.Flags().StringVar(&runTasksFile, "tasks", "", "a JSON task array to execute directly, skipping planning")
	runCmd.Flags().IntVar(&runMaxTurns, "max-tool-turns", 8, "GENERATE mode's agentic tool-loop bound")
	runCmd.Flags().DurationVar(&runWallClock, "timeout", 0, "wall-clock budget for the whole run (0 = unbounded)")
	runCmd.Flags().IntVar(&runCandidates, "candidates", 3, "number of planning candidates to request when planning from a mission")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ac, err := agentcontext.New(agentcontext.Options{
		ProjectDir:   projectDir,
		AnthropicKey: os.Getenv("ANTHROPIC_API_KEY"),
	})
	if err != nil {
		return err
	}
	defer ac.Close()

	verifier := &contract.Verifier{}
	ac.GateSeq.Checks = append(ac.GateSeq.Checks, gate.ContractCheck{Verifier: verifier})

	prior, err := learning.LoadBriefing(ac.StateRoot)
	if err != nil {
		return err
	}

	tasks, err := loadOrPlanTasks(cmd.Context(), ac, args, prior)
	if err != nil {
		return err
	}

	g, err := graph.New(tasks)
	if err != nil {
		return fmt.Errorf("invalid task graph: %w", err)
	}

	reg := tool.NewRegistry()
	tool.RegisterBuiltins(reg, projectDir)

	go printEvents(ac.Bus)

	coordinator := &exec.Coordinator{
		Graph:           g,
		Model:           ac.Model,
		Tools:           reg,
		Lineage:         ac.Lineage,
		Bus:             ac.Bus,
		Budget:          ac.Budget,
		Breaker:         ac.Breaker,
		GateSeq:         ac.GateSeq,
		Logger:          *ac.Logger,
		WallClockBudget: runWallClock,
		MaxToolTurns:    runMaxTurns,
	}

	completed, runErr := coordinator.Run(cmd.Context())

	failed := 0
	for _, t := range tasks {
		if t.Status == task.StatusFailed {
			failed++
		}
	}

	briefing := &learning.Briefing{
		Mission:  missionText(args),
		Status:   learning.StatusInProgress,
		Progress: fmt.Sprintf("%d/%d tasks completed, %d failed", len(completed), len(tasks), failed),
	}
	if failed == 0 && len(completed) == len(tasks) {
		briefing.Status = learning.StatusComplete
	}
	if saveErr := briefing.Save(ac.StateRoot); saveErr != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to save briefing: %v\n", saveErr)
	}

	if runErr != nil {
		return runErr
	}
	if failed > 0 {
		return fmt.Errorf("%d task(s) failed", failed)
	}
	fmt.Printf("run complete: %d/%d tasks\n", len(completed), len(tasks))
	if mission := missionText(args); mission != "" {
		fmt.Printf("suggested branch name: sunwell/%s\n", util.Slugify(mission))
	}
	return nil
}

func missionText(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

func loadOrPlanTasks(ctx context.Context, ac *agentcontext.AgentContext, args []string, prior *learning.Briefing) ([]*task.Task, error) {
	if runTasksFile != "" {
		data, err := os.ReadFile(runTasksFile)
		if err != nil {
			return nil, fmt.Errorf("reading tasks file: %w", err)
		}
		var tasks []*task.Task
		if err := json.Unmarshal(data, &tasks); err != nil {
			return nil, fmt.Errorf("parsing tasks file: %w", err)
		}
		return tasks, nil
	}

	if len(args) == 0 {
		return nil, fmt.Errorf("provide a mission argument or --tasks <file>")
	}
	if ac.Model == nil {
		return nil, fmt.Errorf("planning from a mission requires ANTHROPIC_API_KEY to be set (or pass --tasks)")
	}

	mission := args[0]
	if prior != nil {
		mission = prior.AsContext() + "\n\nMission: " + mission
	}

	planner := &plan.Planner{Model: ac.Model, Candidates: runCandidates}
	candidates, err := planner.Propose(ctx, mission)
	if err != nil {
		return nil, err
	}
	winner := plan.Best(candidates)
	ac.Bus.Emit(events.PlanWinner, map[string]any{
		"task_count":            len(winner.Tasks),
		"parallelization_ratio": winner.ParallelizationRatio,
	})
	return winner.Tasks, nil
}

func printEvents(bus *events.Bus) {
	for ev := range bus.Subscribe() {
		fmt.Printf("[%s] %s %v\n", ev.Timestamp.Format(time.RFC3339), ev.Type, ev.Data)
	}
}
