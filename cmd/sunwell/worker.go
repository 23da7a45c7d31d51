package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/sunwell-ai/sunwell/internal/agentcontext"
	"github.com/sunwell-ai/sunwell/internal/state"
	"github.com/sunwell-ai/sunwell/internal/task"
	"github.com/sunwell-ai/sunwell/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:     "worker",
	Short:   "Multi-worker coordination: spawn workers against a shared backlog",
	GroupID: GroupRun,
	RunE:    requireSubcommand,
}

var (
	workerTasksFile string
	workerCount     int
	workerCleanup   bool
)

var workerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Split a task list across N worker processes and merge their branches",
	RunE:  runWorkerStart,
}

var (
	workerID         string
	workerRunRoot    string
	workerBaseBranch string
	workerBranch     string
)

var workerRunCmd = &cobra.Command{
	Use:    "run",
	Short:  "Run one worker's claim-execute-commit loop (spawned by `worker start`)",
	Hidden: true,
	RunE:   runWorkerRun,
}

func init() {
	workerStartCmd.Flags().StringVar(&workerTasksFile, "tasks", "", "a JSON task array forming the shared backlog (required)")
	workerStartCmd.Flags().IntVar(&workerCount, "count", 0, "number of workers; 0 uses sunwell.toml's worker.count")
	workerStartCmd.Flags().BoolVar(&workerCleanup, "cleanup", false, "delete worker branches once merged")
	workerStartCmd.MarkFlagRequired("tasks")

	workerRunCmd.Flags().StringVar(&workerID, "id", "", "this worker's integer id")
	workerRunCmd.Flags().StringVar(&workerRunRoot, "run-root", "", "the shared run-state directory")
	workerRunCmd.Flags().StringVar(&workerBaseBranch, "base", "main", "the base branch worker branches fork from")
	workerRunCmd.Flags().StringVar(&workerBranch, "branch", "", "this worker's branch name")
	workerRunCmd.MarkFlagRequired("id")
	workerRunCmd.MarkFlagRequired("run-root")

	workerCmd.AddCommand(workerStartCmd, workerRunCmd)
	rootCmd.AddCommand(workerCmd)
}

func runWorkerStart(cmd *cobra.Command, args []string) error {
	ac, err := agentcontext.New(agentcontext.Options{ProjectDir: projectDir})
	if err != nil {
		return err
	}
	defer ac.Close()

	data, err := os.ReadFile(workerTasksFile)
	if err != nil {
		return fmt.Errorf("reading tasks file: %w", err)
	}
	var tasks []*task.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return fmt.Errorf("parsing tasks file: %w", err)
	}

	count := workerCount
	if count <= 0 {
		count = ac.Config.Worker.Count
	}

	runRoot := filepath.Join(ac.StateRoot, "multiworker-"+ac.RunID)
	coordinator := &worker.Coordinator{
		Root:    projectDir,
		RunRoot: runRoot,
		Config: worker.Config{
			NumWorkers:        count,
			HeartbeatInterval: time.Duration(ac.Config.Worker.HeartbeatIntervalSec) * time.Second,
			StuckAfter:        ac.Config.Worker.StuckMultiplier,
			CleanupBranches:   workerCleanup || ac.Config.Worker.DeleteMergedBranches,
		},
		Bus:    ac.Bus,
		Logger: ac.Logger,
	}
	coordinator.Spawn = spawnWorkerProcess(runRoot, coordinator)

	if err := coordinator.Setup(tasks); err != nil {
		return err
	}

	go printEvents(ac.Bus)

	result, err := coordinator.Run(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("multi-worker run complete: %d/%d tasks completed, %d failed, %d branches merged, %d conflicted\n",
		result.Completed, result.TotalGoals, result.Failed, len(result.Merged), len(result.Conflicts))
	return nil
}

// spawnWorkerProcess builds a SpawnFunc that re-executes this same binary
// as `sunwell worker run`, inheriting stdio so each worker's output is
// visible to the operator — a subprocess-per-agent spawn pattern.
func spawnWorkerProcess(runRoot string, c *worker.Coordinator) worker.SpawnFunc {
	return func(ctx context.Context, workerID string) (worker.Process, error) {
		self, err := os.Executable()
		if err != nil {
			self = os.Args[0]
		}
		cmd := exec.CommandContext(ctx, self,
			"worker", "run",
			"--project", projectDir,
			"--id", workerID,
			"--run-root", runRoot,
			"--base", c.BaseBranch(),
			"--branch", c.Branch(workerID),
		)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		return worker.StartCmd(cmd)
	}
}

func runWorkerRun(cmd *cobra.Command, args []string) error {
	ac, err := agentcontext.New(agentcontext.Options{ProjectDir: projectDir})
	if err != nil {
		return err
	}
	defer ac.Close()

	branch := workerBranch
	if branch == "" {
		branch = "sunwell/worker-" + workerID
	}

	w := &worker.Worker{
		ID:            workerID,
		Branch:        branch,
		BaseBranch:    workerBaseBranch,
		WorkDir:       filepath.Join(workerRunRoot, "worktrees", workerID),
		BaseRepoDir:   projectDir,
		HeartbeatDir:  state.WorkersDir(workerRunRoot),
		Model:         ac.Model,
		Lineage:       ac.Lineage,
		Bus:           ac.Bus,
		Budget:        ac.Budget,
		Breaker:       ac.Breaker,
		GateSeq:       ac.GateSeq,
		MaxToolTurns:  8,
		Logger:        ac.Logger,
	}

	backlog, err := worker.NewBacklog(filepath.Join(workerRunRoot, "backlog.json"), nil)
	if err != nil {
		return err
	}
	w.Backlog = backlog

	return w.Run(cmd.Context())
}
