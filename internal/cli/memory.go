package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and manage persistent team memory",
	Long: `Query, add, and import learnings accumulated across agent collaborations.

Learnings are distilled facts with a category, confidence, and optional
project scope. Corrections record one agent correcting the other.`,
}

var memoryQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query stored learnings",
	Long:  `Query learnings filtered by category and project, ranked by confidence then recency.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil {
			return fmt.Errorf("memory store not initialized")
		}

		category, _ := cmd.Flags().GetString("category")
		project, _ := cmd.Flags().GetString("project")
		limit, _ := cmd.Flags().GetInt("limit")
		if !cmd.Flags().Changed("limit") && QueryLimit > 0 {
			limit = QueryLimit
		}

		learnings, err := Store.QueryLearnings(category, project, limit)
		if err != nil {
			return fmt.Errorf("querying learnings: %w", err)
		}

		if len(learnings) == 0 {
			fmt.Println("No learnings found.")
			return nil
		}

		fmt.Printf("%d learning(s):\n\n", len(learnings))
		for _, l := range learnings {
			fmt.Printf("  %s [%s] (%.2f) %s\n", l.ID, l.Category, l.Confidence, l.Content)
			if l.Project != "" {
				fmt.Printf("    project: %s\n", l.Project)
			}
		}
		return nil
	},
}

var memoryAddCmd = &cobra.Command{
	Use:   "add <content>",
	Short: "Manually add a learning",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil {
			return fmt.Errorf("memory store not initialized")
		}

		category, _ := cmd.Flags().GetString("category")
		project, _ := cmd.Flags().GetString("project")
		source, _ := cmd.Flags().GetString("source")
		confidence, _ := cmd.Flags().GetFloat64("confidence")

		id, err := Store.AddLearning(source, category, args[0], project, confidence)
		if err != nil {
			return fmt.Errorf("adding learning: %w", err)
		}

		fmt.Printf("Learning %s stored.\n", id)
		return nil
	},
}

var memoryCorrectionsCmd = &cobra.Command{
	Use:   "corrections",
	Short: "Show recent corrections",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil {
			return fmt.Errorf("memory store not initialized")
		}

		category, _ := cmd.Flags().GetString("category")
		limit, _ := cmd.Flags().GetInt("limit")
		if !cmd.Flags().Changed("limit") && CorrectionsLimit > 0 {
			limit = CorrectionsLimit
		}

		corrections, err := Store.GetCorrections(category, limit)
		if err != nil {
			return fmt.Errorf("getting corrections: %w", err)
		}

		if len(corrections) == 0 {
			fmt.Println("No corrections recorded.")
			return nil
		}

		fmt.Printf("%d correction(s):\n\n", len(corrections))
		for _, c := range corrections {
			fmt.Printf("  %s [%s] by %s\n", c.ID, c.Category, c.Corrector)
			fmt.Printf("    was:  %s\n", c.OriginalClaim)
			fmt.Printf("    now:  %s\n", c.Correction)
		}
		return nil
	},
}

var memoryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show memory statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil {
			return fmt.Errorf("memory store not initialized")
		}

		stats, err := Store.Stats()
		if err != nil {
			return fmt.Errorf("getting memory stats: %w", err)
		}

		fmt.Printf("Learnings:    %d\n", stats.TotalLearnings)
		fmt.Printf("Corrections:  %d\n", stats.TotalCorrections)
		fmt.Printf("Sessions:     %d archived\n", stats.Statistics.SessionsCount)
		fmt.Printf("Tool calls:   %d\n", stats.Statistics.TotalCalls)
		if !stats.LastUpdated.IsZero() {
			fmt.Printf("Last updated: %s\n", stats.LastUpdated.Format("2006-01-02 15:04 UTC"))
		}

		if len(stats.LearningsByCategory) > 0 {
			fmt.Println("\nBy category:")
			categories := make([]string, 0, len(stats.LearningsByCategory))
			for cat := range stats.LearningsByCategory {
				categories = append(categories, cat)
			}
			sort.Strings(categories)
			for _, cat := range categories {
				fmt.Printf("  %-15s %d\n", cat, stats.LearningsByCategory[cat])
			}
		}

		if len(stats.Projects) > 0 {
			fmt.Printf("\nProjects: %s\n", strings.Join(stats.Projects, ", "))
		}
		return nil
	},
}

var memoryImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Bulk-import learnings from a file",
	Long: `Import newline-separated learnings or markdown list items from a file.

Each line is classified into a category by keyword and stored with reduced
confidence. Duplicate lines are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Store == nil {
			return fmt.Errorf("memory store not initialized")
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading import file: %w", err)
		}

		source, _ := cmd.Flags().GetString("source")
		project, _ := cmd.Flags().GetString("project")

		count, err := Store.BulkImport(string(data), source, project)
		if err != nil {
			return fmt.Errorf("importing learnings: %w", err)
		}

		fmt.Printf("%d new learning(s) imported.\n", count)
		return nil
	},
}

func init() {
	memoryQueryCmd.Flags().String("category", "", "Filter by category (empty or 'all' for every category)")
	memoryQueryCmd.Flags().String("project", "", "Project scope (general learnings always match)")
	memoryQueryCmd.Flags().Int("limit", 20, "Maximum results")

	memoryAddCmd.Flags().String("category", "code", "Learning category")
	memoryAddCmd.Flags().String("project", "", "Project scope; empty for a general learning")
	memoryAddCmd.Flags().String("source", "manual", "Who contributed this learning")
	memoryAddCmd.Flags().Float64("confidence", 0.8, "Confidence between 0 and 1")

	memoryCorrectionsCmd.Flags().String("category", "", "Filter by category")
	memoryCorrectionsCmd.Flags().Int("limit", 10, "Maximum results")

	memoryImportCmd.Flags().String("source", "claude", "Who contributed the imported learnings")
	memoryImportCmd.Flags().String("project", "", "Project scope for the imported learnings")

	memoryCmd.AddCommand(memoryQueryCmd)
	memoryCmd.AddCommand(memoryAddCmd)
	memoryCmd.AddCommand(memoryCorrectionsCmd)
	memoryCmd.AddCommand(memoryStatsCmd)
	memoryCmd.AddCommand(memoryImportCmd)
	rootCmd.AddCommand(memoryCmd)
}
