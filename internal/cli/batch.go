package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/arrgh-go/internal/service"
)

var (
	batchRecursive   bool
	batchConcurrency int
	batchShowMetrics bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Process every newsletter file in a directory",
	Long: `Process all newsletter files (.md, .txt, .html, .eml) in a directory
on a worker pool. Per-file failures are reported at the end and do not
stop the batch.

Examples:
  arrgh batch newsletters/
  arrgh batch --recursive --concurrency 8 archive/`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().BoolVarP(&batchRecursive, "recursive", "r", false, "process subdirectories")
	batchCmd.Flags().IntVarP(&batchConcurrency, "concurrency", "c", 0, "parallel workers (default NumCPU/2)")
	batchCmd.Flags().BoolVar(&batchShowMetrics, "metrics", false, "print stage timings after the batch")
}

func runBatch(cmd *cobra.Command, args []string) error {
	svc, err := getService()
	if err != nil {
		return err
	}

	result, err := svc.ProcessDirectory(cmd.Context(), args[0], service.BatchOptions{
		Recursive:   batchRecursive,
		Concurrency: batchConcurrency,
	})
	if err != nil {
		exitWithError("%v", err)
	}

	for _, run := range result.Results {
		printRunResult(run)
	}

	fmt.Printf("\nBatch: %d processed, %d succeeded, %d partial, %d failed\n",
		result.Processed, result.Succeeded, result.Partial, result.Failed)
	for _, msg := range result.Errors {
		fmt.Printf("  error: %s\n", msg)
	}

	if batchShowMetrics {
		printMetrics()
	}

	if result.Failed > 0 {
		exitWithError("%d newsletters failed", result.Failed)
	}
	return nil
}
