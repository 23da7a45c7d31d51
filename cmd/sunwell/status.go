package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/sunwell-ai/sunwell/internal/agentcontext"
	"github.com/sunwell-ai/sunwell/internal/learning"
	"github.com/sunwell-ai/sunwell/internal/state"
	"github.com/sunwell-ai/sunwell/internal/worker"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show the project's briefing and any live worker heartbeats",
	GroupID: GroupOps,
	RunE:    runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ac, err := agentcontext.New(agentcontext.Options{ProjectDir: projectDir})
	if err != nil {
		return err
	}
	defer ac.Close()

	fmt.Println(headingStyle.Render("briefing"))
	briefing, err := learning.LoadBriefing(ac.StateRoot)
	if err != nil {
		return err
	}
	if briefing == nil {
		fmt.Println("no prior run recorded for this project")
	} else {
		fmt.Printf("%s %s\n", labelStyle.Render("mission: "), briefing.Mission)
		fmt.Printf("%s %s\n", labelStyle.Render("status:  "), statusStyle(briefing.Status).Render(string(briefing.Status)))
		fmt.Printf("%s %s\n", labelStyle.Render("progress:"), briefing.Progress)
		fmt.Printf("%s %s\n", labelStyle.Render("updated: "), briefing.UpdatedAt.Format("2006-01-02 15:04:05"))
	}

	ids, err := ac.Recovery.List()
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		fmt.Println(rule())
		fmt.Println(headingStyle.Render("unresolved recovery states"))
		fmt.Println(warnStyle.Render(strings.Join(ids, ", ")))
	}

	heartbeats := latestRunHeartbeats(ac.StateRoot)
	if len(heartbeats) > 0 {
		fmt.Println(rule())
		fmt.Println(headingStyle.Render("workers"))
		for _, hb := range heartbeats {
			fmt.Printf("  worker-%s: %s (pid %d) goal=%s completed=%d failed=%d last_heartbeat=%s\n",
				hb.WorkerID, hb.State, hb.PID, hb.CurrentGoalID, hb.Completed, hb.Failed,
				hb.LastHeartbeat.Format("15:04:05"))
		}
	}
	return nil
}

// statusStyle colors a briefing status the way a live feed view colors
// agent state: complete in green, blocked in red, else amber.
func statusStyle(s learning.Status) lipgloss.Style {
	switch s {
	case learning.StatusComplete:
		return okStyle
	case learning.StatusBlocked:
		return errStyle
	default:
		return warnStyle
	}
}

// latestRunHeartbeats finds the most recently modified multiworker-<runID>
// run directory under stateRoot and reads its workers' heartbeats. Each
// `worker start` invocation gets its own run directory (agentcontext's
// RunID is fresh per process), so status reports on whichever run last
// touched the filesystem rather than requiring the caller to know its id.
func latestRunHeartbeats(stateRoot string) []worker.Heartbeat {
	entries, err := os.ReadDir(stateRoot)
	if err != nil {
		return nil
	}
	var latestDir string
	var latestMod int64
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "multiworker-") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if mt := info.ModTime().Unix(); mt >= latestMod {
			latestMod = mt
			latestDir = e.Name()
		}
	}
	if latestDir == "" {
		return nil
	}
	hbs, err := worker.ReadAllHeartbeats(state.WorkersDir(filepath.Join(stateRoot, latestDir)))
	if err != nil {
		return nil
	}
	return hbs
}
