package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/arrgh-go/internal/models"
)

var processShowMetrics bool

var processCmd = &cobra.Command{
	Use:   "process <file>",
	Short: "Process a single newsletter file",
	Long: `Process one newsletter file through the extraction pipeline.

The file may carry a YAML frontmatter block with id, subject, sender and
date; missing metadata falls back to the filename.

Examples:
  arrgh process newsletters/2026-08-12-tldr.md
  arrgh process --metrics inbox/launch-week.html`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().BoolVar(&processShowMetrics, "metrics", false, "print stage timings after the run")
}

func runProcess(cmd *cobra.Command, args []string) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	result, err := svc.ProcessFile(cmd.Context(), args[0])
	if err != nil {
		exitWithError("%v", err)
	}

	printRunResult(result)

	if processShowMetrics {
		printMetrics()
	}

	if result.Status == models.StatusFailed {
		exitWithError("run failed")
	}
	return nil
}

func printRunResult(result *models.RunResult) {
	fmt.Println(result.TextSummary)
	for _, msg := range result.Errors {
		fmt.Printf("  warning: %s\n", msg)
	}
}

func printMetrics() {
	snap := collector.Snapshot()
	fmt.Println("\nStage timings:")
	for name, op := range snap.Operations {
		fmt.Printf("  %-18s count=%d avg=%.0fms max=%dms failures=%d\n",
			name, op.Count, op.AvgTimeMs, op.MaxTimeMs, op.Failures)
	}
}
