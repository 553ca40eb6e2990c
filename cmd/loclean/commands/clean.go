package commands

import (
	"github.com/spf13/cobra"

	"github.com/loclean/loclean"
	"github.com/loclean/loclean/pkg/table"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean a CSV column into structured (value, unit, reasoning) fields",
	RunE:  runClean,
}

func init() {
	cleanCmd.Flags().StringP("input", "i", "", "input CSV file (required)")
	cleanCmd.Flags().StringP("output", "o", "", "output CSV file (required)")
	cleanCmd.Flags().StringP("column", "c", "", "column to clean (required)")
	cleanCmd.Flags().StringP("task", "t", "", "cleaning instruction, e.g. \"Convert to kg\" (required)")
	cleanCmd.Flags().Int("batch-size", table.DefaultBatchSize, "distinct values per inference batch")
	cleanCmd.Flags().Bool("parallel", false, "dispatch batches across a worker pool")
	cleanCmd.Flags().Int("workers", 0, "worker pool bound (default: number of CPUs)")

	_ = cleanCmd.MarkFlagRequired("input")
	_ = cleanCmd.MarkFlagRequired("output")
	_ = cleanCmd.MarkFlagRequired("column")
	_ = cleanCmd.MarkFlagRequired("task")

	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	input, _ := cmd.Flags().GetString("input")
	output, _ := cmd.Flags().GetString("output")
	column, _ := cmd.Flags().GetString("column")
	task, _ := cmd.Flags().GetString("task")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	parallel, _ := cmd.Flags().GetBool("parallel")
	workers, _ := cmd.Flags().GetInt("workers")

	t, err := table.ReadCSV(input)
	if err != nil {
		logError("%v", err)
		return err
	}

	logInfo("Loading engine...")
	eng, err := loclean.NewEngine(cmd.Context(), engineOverrides())
	if err != nil {
		logError("%v", err)
		return err
	}
	defer eng.Close()

	logInfo("Cleaning %d rows of column %q...", t.NumRows(), column)
	cleaned, err := loclean.Clean(cmd.Context(), eng, t, column, task, table.Options{
		BatchSize:  batchSize,
		Parallel:   parallel,
		MaxWorkers: workers,
	})
	if err != nil {
		logError("%v", err)
		return err
	}

	if err := table.WriteCSV(cleaned, output); err != nil {
		logError("%v", err)
		return err
	}
	logInfo("Wrote %s", output)
	return nil
}
