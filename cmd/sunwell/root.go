// Package main is the sunwell CLI entrypoint: run, resume, worker run,
// status, and doctor, wired directly onto the kernel's AgentContext.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var projectDir string

var rootCmd = &cobra.Command{
	Use:   "sunwell",
	Short: "Sunwell — autonomous task planning and execution kernel",
	Long: `sunwell plans a mission into a task graph, executes it with
retry and recovery, and can split the graph across multiple worker
processes coordinated through a shared, file-locked backlog.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&projectDir, "project", ".", "project directory (the workspace being operated on)")

	rootCmd.AddGroup(
		&cobra.Group{ID: GroupRun, Title: "Running:"},
		&cobra.Group{ID: GroupOps, Title: "Operations:"},
	)
	rootCmd.SetHelpCommandGroupID(GroupOps)
	rootCmd.SetCompletionCommandGroupID(GroupOps)
}

// Command group IDs, following a command-grouping convention at a
// kernel-appropriate scale (two groups, not many).
const (
	GroupRun = "run"
	GroupOps = "ops"
)

// Execute runs the root command and returns a process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

// buildCommandPath walks the command hierarchy, used in "requires a
// subcommand" error messages.
func buildCommandPath(cmd *cobra.Command) string {
	var parts []string
	for c := cmd; c != nil; c = c.Parent() {
		parts = append([]string{c.Name()}, parts...)
	}
	return strings.Join(parts, " ")
}

// requireSubcommand is a RunE for parent commands with no direct action.
func requireSubcommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("requires a subcommand\n\nRun '%s --help' for usage", buildCommandPath(cmd))
	}
	return fmt.Errorf("unknown command %q for %q", args[0], buildCommandPath(cmd))
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	os.Exit(Execute())
}
