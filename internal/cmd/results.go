package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/evalforge/modelrun/pkg/store"
	filestore "github.com/evalforge/modelrun/pkg/store/file"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Inspect persisted results",
}

var resultsStatsCmd = &cobra.Command{
	Use:   "stats <results-dir>",
	Short: "Show result statistics",
	Long: `Display aggregate statistics for a results directory.

Shows how many questions have been answered, how many responses parsed
cleanly, and the confidence distribution.

Examples:
  # Show stats for the default results directory
  modelrun results stats results

  # Show with JSON output
  modelrun results stats results --json`,
	Args: cobra.ExactArgs(1),
	RunE: runResultsStats,
}

func init() {
	rootCmd.AddCommand(resultsCmd)
	resultsCmd.AddCommand(resultsStatsCmd)
	resultsStatsCmd.Flags().Bool("json", false, "Output as JSON")
}

// resultsStats aggregates over one results directory.
type resultsStats struct {
	Total          int     `json:"total"`
	WithAnswer     int     `json:"with_answer"`
	WithReasoning  int     `json:"with_reasoning"`
	WithConfidence int     `json:"with_confidence"`
	MeanConfidence float64 `json:"mean_confidence"`
}

func runResultsStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dir := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if _, err := os.Stat(dir); err != nil {
		return exitError(foundry.ExitFileNotFound, "Results directory not found", err)
	}

	st, err := filestore.Open(dir)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to open results directory", err)
	}
	defer func() { _ = st.Close() }()

	stats, err := collectStats(ctx, st)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to read results", err)
	}

	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(stats)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Results:\t%d\n", stats.Total)
	fmt.Fprintf(w, "With answer:\t%d\n", stats.WithAnswer)
	fmt.Fprintf(w, "With reasoning:\t%d\n", stats.WithReasoning)
	fmt.Fprintf(w, "With confidence:\t%d\n", stats.WithConfidence)
	if stats.WithConfidence > 0 {
		fmt.Fprintf(w, "Mean confidence:\t%.1f%%\n", stats.MeanConfidence)
	}
	return w.Flush()
}

func collectStats(ctx context.Context, st store.Store) (*resultsStats, error) {
	ids := st.IDs()
	sort.Strings(ids)

	stats := &resultsStats{Total: len(ids)}
	confidenceSum := 0

	for _, id := range ids {
		result, err := st.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("read result %s: %w", id, err)
		}
		if result.Parsed.Answer != "" {
			stats.WithAnswer++
		}
		if result.Reasoning != "" {
			stats.WithReasoning++
		}
		if result.Parsed.Confidence != nil {
			stats.WithConfidence++
			confidenceSum += *result.Parsed.Confidence
		}
	}

	if stats.WithConfidence > 0 {
		stats.MeanConfidence = float64(confidenceSum) / float64(stats.WithConfidence)
	}
	return stats, nil
}
