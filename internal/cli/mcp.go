package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	teammcp "github.com/yeaalexx/claude-code-ai-team/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the aiteam MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the aiteam MCP server on stdio",
	Long: `Start the aiteam MCP server on stdio transport.

The server exposes team memory and negotiation sessions as MCP tools that
AI coding assistants can call: memory_add_learning, memory_query,
memory_sync, session_start, session_turn, session_end, and more.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil || Registry == nil {
			return fmt.Errorf("memory store not initialized")
		}

		srv := teammcp.NewServer(Store, Registry, appVersion)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
