package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var rootCmd = &cobra.Command{
	Use:   "aiteam",
	Short: "AI team server - persistent memory and negotiation sessions for agent pairs",
	Long: `aiteam coordinates a two-agent AI collaboration team. It keeps a durable
memory of distilled learnings and corrections across restarts, and tracks
multi-turn negotiation sessions between the agents, detecting consensus,
disagreement, and requests for more information.

It provides CLI commands for inspecting and importing memory, browsing
archived session transcripts, and running the MCP server that exposes the
core to AI coding assistants.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("aiteam %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
