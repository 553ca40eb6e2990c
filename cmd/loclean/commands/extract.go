package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loclean/loclean"
	"github.com/loclean/loclean/pkg/extract"
	"github.com/loclean/loclean/pkg/schema"
	"github.com/loclean/loclean/pkg/table"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract schema-shaped records from a string or a CSV column",
	RunE:  runExtract,
}

func init() {
	extractCmd.Flags().StringP("schema", "s", "", "schema file, JSON or YAML (required)")
	extractCmd.Flags().String("text", "", "extract from a single string instead of a CSV")
	extractCmd.Flags().StringP("input", "i", "", "input CSV file")
	extractCmd.Flags().StringP("output", "o", "", "output CSV file")
	extractCmd.Flags().StringP("column", "c", "", "column to extract from")
	extractCmd.Flags().StringP("task", "t", "", "extraction instruction (default: derived from the schema)")
	extractCmd.Flags().Int("max-retries", extract.DefaultMaxRetries, "attempts per value before giving up")
	extractCmd.Flags().Int("batch-size", table.DefaultBatchSize, "distinct values per inference batch")
	extractCmd.Flags().Bool("parallel", false, "dispatch batches across a worker pool")
	extractCmd.Flags().Int("workers", 0, "worker pool bound (default: number of CPUs)")

	_ = extractCmd.MarkFlagRequired("schema")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	schemaPath, _ := cmd.Flags().GetString("schema")
	text, _ := cmd.Flags().GetString("text")
	input, _ := cmd.Flags().GetString("input")
	output, _ := cmd.Flags().GetString("output")
	column, _ := cmd.Flags().GetString("column")
	task, _ := cmd.Flags().GetString("task")
	maxRetries, _ := cmd.Flags().GetInt("max-retries")

	s, err := schema.FromFile(schemaPath)
	if err != nil {
		logError("%v", err)
		return err
	}

	if text == "" && (input == "" || output == "" || column == "") {
		err := fmt.Errorf("either --text or all of --input, --output and --column are required")
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

	if text != "" {
		result, err := loclean.Extract(cmd.Context(), eng, text, s, task, maxRetries)
		if err != nil {
			logError("%v", err)
			return err
		}
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			logError("%v", err)
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	batchSize, _ := cmd.Flags().GetInt("batch-size")
	parallel, _ := cmd.Flags().GetBool("parallel")
	workers, _ := cmd.Flags().GetInt("workers")

	t, err := table.ReadCSV(input)
	if err != nil {
		logError("%v", err)
		return err
	}

	logInfo("Extracting %q from %d rows of column %q...", s.Name, t.NumRows(), column)
	extracted, err := loclean.ExtractTable(cmd.Context(), eng, t, column, s, task, maxRetries, table.Options{
		BatchSize:  batchSize,
		Parallel:   parallel,
		MaxWorkers: workers,
	})
	if err != nil {
		logError("%v", err)
		return err
	}

	if err := table.WriteCSV(extracted, output); err != nil {
		logError("%v", err)
		return err
	}
	logInfo("Wrote %s", output)
	return nil
}
