package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sunwell-ai/sunwell/internal/agentcontext"
	"github.com/sunwell-ai/sunwell/internal/graph"
	"github.com/sunwell-ai/sunwell/internal/recovery"
	"github.com/sunwell-ai/sunwell/internal/task"
)

var resumeHint string

var resumeCmd = &cobra.Command{
	Use:     "resume <goal-hash>",
	Short:   "Resume a run that self-healing could not recover from",
	GroupID: GroupRun,
	Args:    cobra.ExactArgs(1),
	RunE:    runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeHint, "hint", "", "a human hint appended to the healing context")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	ac, err := agentcontext.New(agentcontext.Options{ProjectDir: projectDir})
	if err != nil {
		return err
	}
	defer ac.Close()

	state, err := ac.Recovery.Load(args[0])
	if err != nil {
		return fmt.Errorf("loading recovery state: %w", err)
	}

	healingCtx := recovery.BuildHealingContext(state, resumeHint)
	fmt.Println(healingCtx)

	tasksFile := os.Getenv("SUNWELL_RESUME_TASKS")
	if tasksFile == "" {
		fmt.Println("\nset SUNWELL_RESUME_TASKS to a task-graph JSON file to resume execution directly, or re-run `sunwell run --tasks` with the healing context prepended to the mission.")
		return nil
	}

	data, err := os.ReadFile(tasksFile)
	if err != nil {
		return fmt.Errorf("reading resume tasks file: %w", err)
	}
	var tasks []*task.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return fmt.Errorf("parsing resume tasks file: %w", err)
	}
	if _, err := graph.New(tasks); err != nil {
		return fmt.Errorf("invalid resumed task graph: %w", err)
	}

	if err := ac.Recovery.MarkResolved(state.GoalHash); err != nil {
		return fmt.Errorf("marking recovery state resolved: %w", err)
	}
	fmt.Printf("recovery state %s marked resolved; run `sunwell run --tasks %s` to continue\n", state.GoalHash, tasksFile)
	return nil
}
