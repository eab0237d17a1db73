package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Browse archived negotiation sessions",
	Long: `List and inspect archived session transcripts.

Live sessions exist only inside a running MCP server process; once a
session ends its full transcript is written to the archive directory,
which is what these commands read.`,
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived sessions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil {
			return fmt.Errorf("memory store not initialized")
		}

		limit, _ := cmd.Flags().GetInt("limit")
		transcripts, err := Store.ListTranscripts(limit)
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}

		if len(transcripts) == 0 {
			fmt.Println("No archived sessions.")
			return nil
		}

		fmt.Printf("%d session(s):\n\n", len(transcripts))
		for _, t := range transcripts {
			fmt.Printf("  %s  %-24s %2d turns  %s\n",
				t.ID, t.Status, t.TurnCount, t.Ended.Format("2006-01-02 15:04"))
			fmt.Printf("    %s\n", t.Task)
		}
		return nil
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show an archived session transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil {
			return fmt.Errorf("memory store not initialized")
		}

		transcript, err := Store.GetTranscript(args[0])
		if err != nil {
			return fmt.Errorf("loading session: %w", err)
		}

		fmt.Printf("Session:  %s\n", transcript.ID)
		fmt.Printf("Task:     %s\n", transcript.Task)
		if transcript.Project != "" {
			fmt.Printf("Project:  %s\n", transcript.Project)
		}
		fmt.Printf("Status:   %s\n", transcript.Status)
		fmt.Printf("Turns:    %d\n", transcript.TurnCount)
		fmt.Printf("Created:  %s\n", transcript.Created.Format("2006-01-02 15:04 UTC"))
		fmt.Printf("Ended:    %s\n", transcript.Ended.Format("2006-01-02 15:04 UTC"))

		if len(transcript.History) > 0 {
			fmt.Println("\nHistory:")
			for _, turn := range transcript.History {
				fmt.Printf("\n[%s]\n%s\n", turn.Role, turn.Content)
			}
		}
		return nil
	},
}

func init() {
	sessionListCmd.Flags().Int("limit", 10, "Maximum sessions to list")

	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	rootCmd.AddCommand(sessionCmd)
}
