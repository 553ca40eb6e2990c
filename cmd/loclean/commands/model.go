package commands

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loclean/loclean/internal/models"
	"github.com/loclean/loclean/pkg/engine"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Manage local models",
}

var modelDownloadCmd = &cobra.Command{
	Use:   "download <name>",
	Short: "Download a model into the cache",
	Args:  cobra.ExactArgs(1),
	RunE:  runModelDownload,
}

var modelListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the models loclean knows about",
	RunE:  runModelList,
}

var modelStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which models are downloaded",
	RunE:  runModelStatus,
}

func init() {
	modelDownloadCmd.Flags().Bool("force", false, "re-download even when the file exists")

	modelCmd.AddCommand(modelDownloadCmd)
	modelCmd.AddCommand(modelListCmd)
	modelCmd.AddCommand(modelStatusCmd)
	rootCmd.AddCommand(modelCmd)
}

// modelsDir resolves the model cache directory from the configuration.
func modelsDir() string {
	cacheDir := viper.GetString("cache-dir")
	if cacheDir == "" {
		cacheDir = engine.DefaultConfig().CacheDir
	}
	return filepath.Join(cacheDir, "models")
}

func runModelDownload(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")

	path, err := models.Ensure(cmd.Context(), args[0], modelsDir(), force)
	if err != nil {
		logError("%v", err)
		return err
	}
	logInfo("Model ready: %s", path)
	return nil
}

func runModelList(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tDESCRIPTION")
	for _, m := range models.List() {
		fmt.Fprintf(w, "%s\t%d MB\t%s\n", m.Name, m.SizeMB, m.Description)
	}
	return w.Flush()
}

func runModelStatus(cmd *cobra.Command, args []string) error {
	dir := modelsDir()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATUS\tPATH")
	for _, m := range models.List() {
		path, present := models.IsPresent(m.Name, dir)
		status := "missing"
		if present {
			status = "downloaded"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", m.Name, status, path)
	}
	return w.Flush()
}
