package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loclean/loclean"
	"github.com/loclean/loclean/pkg/engine"
	"github.com/loclean/loclean/pkg/privacy"
	"github.com/loclean/loclean/pkg/table"
)

var scrubCmd = &cobra.Command{
	Use:   "scrub",
	Short: "Remove personally-identifiable information from a string or a CSV column",
	RunE:  runScrub,
}

func init() {
	scrubCmd.Flags().String("text", "", "scrub a single string instead of a CSV")
	scrubCmd.Flags().StringP("input", "i", "", "input CSV file")
	scrubCmd.Flags().StringP("output", "o", "", "output CSV file")
	scrubCmd.Flags().StringP("column", "c", "", "column to scrub")
	scrubCmd.Flags().StringSlice("strategies", []string{"email", "phone"},
		"entity types to remove: email, phone, credit_card, ip, person, address")
	scrubCmd.Flags().String("mode", "mask", "replacement mode: mask or fake")
	scrubCmd.Flags().String("locale", "", "locale for fake replacements, e.g. vi")
	scrubCmd.Flags().Uint64("seed", 0, "seed for reproducible fake replacements")

	rootCmd.AddCommand(scrubCmd)
}

// needsEngine reports whether any strategy requires model inference.
func needsEngine(strategies []string) bool {
	for _, s := range strategies {
		if privacy.IsLLMStrategy(s) {
			return true
		}
	}
	return false
}

func runScrub(cmd *cobra.Command, args []string) error {
	text, _ := cmd.Flags().GetString("text")
	input, _ := cmd.Flags().GetString("input")
	output, _ := cmd.Flags().GetString("output")
	column, _ := cmd.Flags().GetString("column")
	strategies, _ := cmd.Flags().GetStringSlice("strategies")
	mode, _ := cmd.Flags().GetString("mode")
	locale, _ := cmd.Flags().GetString("locale")
	seed, _ := cmd.Flags().GetUint64("seed")

	if text == "" && (input == "" || output == "" || column == "") {
		err := fmt.Errorf("either --text or all of --input, --output and --column are required")
		logError("%v", err)
		return err
	}

	// Regex-only strategy sets skip the model load entirely.
	var eng *engine.Engine
	if needsEngine(strategies) {
		logInfo("Loading engine...")
		var err error
		eng, err = loclean.NewEngine(cmd.Context(), engineOverrides())
		if err != nil {
			logError("%v", err)
			return err
		}
		defer eng.Close()
	}

	opts := loclean.ScrubOptions{
		Strategies: strategies,
		Mode:       privacy.Mode(mode),
		Locale:     locale,
		Seed:       seed,
	}

	if text != "" {
		scrubbed, err := loclean.Scrub(cmd.Context(), eng, text, opts)
		if err != nil {
			logError("%v", err)
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), scrubbed)
		return nil
	}

	t, err := table.ReadCSV(input)
	if err != nil {
		logError("%v", err)
		return err
	}

	logInfo("Scrubbing %d rows of column %q...", t.NumRows(), column)
	scrubbed, err := loclean.ScrubTable(cmd.Context(), eng, t, column, opts)
	if err != nil {
		logError("%v", err)
		return err
	}

	if err := table.WriteCSV(scrubbed, output); err != nil {
		logError("%v", err)
		return err
	}
	logInfo("Wrote %s", output)
	return nil
}
