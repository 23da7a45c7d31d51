package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/sunwell-ai/sunwell/internal/agentcontext"
	"github.com/sunwell-ai/sunwell/internal/reliability"
)

var doctorCmd = &cobra.Command{
	Use:     "doctor",
	Short:   "Run environment checks and report fixable problems",
	GroupID: GroupOps,
	RunE:    runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ac, err := agentcontext.New(agentcontext.Options{ProjectDir: projectDir})
	if err != nil {
		return err
	}
	defer ac.Close()

	checks := []reliability.Check{
		reliability.NewGitAvailableCheck(),
		reliability.NewStateRootWritableCheck(),
		reliability.NewProjectConfigExistsCheck(),
		reliability.NewAnthropicKeyConfiguredCheck(),
	}
	cc := reliability.CheckContext{WorkspaceRoot: projectDir, StateRoot: ac.StateRoot}
	results := reliability.RunAll(cmd.Context(), cc, checks)

	worst := reliability.StatusOK
	for _, r := range results {
		fmt.Printf("[%s] %s: %s\n", checkStatusStyle(r.Status).Render(r.Status.String()), r.Name, r.Message)
		if r.FixHint != "" {
			fmt.Printf("       fix: %s\n", r.FixHint)
		}
		if r.Status > worst {
			worst = r.Status
		}
	}

	if worst == reliability.StatusError {
		os.Exit(1)
	}
	return nil
}

func checkStatusStyle(s reliability.Status) lipgloss.Style {
	switch s {
	case reliability.StatusOK:
		return okStyle
	case reliability.StatusWarning:
		return warnStyle
	default:
		return errStyle
	}
}
