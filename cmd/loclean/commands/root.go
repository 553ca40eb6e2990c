// Package commands implements the CLI commands for loclean.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loclean/loclean/internal/logger"
	"github.com/loclean/loclean/internal/version"
	"github.com/loclean/loclean/pkg/engine"
)

var rootCmd = &cobra.Command{
	Use:   "loclean",
	Short: "Local-inference data cleaning and PII scrubbing",
	Long: `Loclean cleans messy tabular data with a locally run, grammar-constrained
language model, and scrubs personally-identifiable information.

Examples:
  # Normalize a column of weights to kilograms
  loclean clean -i data.csv -o out.csv -c weight -t "Convert to kg"

  # Extract schema-shaped records from a column
  loclean extract -i data.csv -o out.csv -c description -s schema.yaml

  # Mask emails and phone numbers in a column
  loclean scrub -i data.csv -o out.csv -c contact --strategies email,phone

  # Download the default model
  loclean model download phi-3-mini`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(logger.Options{
			Debug: viper.GetBool("debug"),
			Quiet: viper.GetBool("quiet"),
		})
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.Version = version.Full()

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.loclean.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")

	// Engine flags, resolved through the same precedence chain as the
	// library (flag > env > config file > default).
	rootCmd.PersistentFlags().StringP("engine", "e", "", "inference backend: llama-cpp, openai, anthropic")
	rootCmd.PersistentFlags().StringP("model", "m", "", "model name (registry key or cloud model ID)")
	rootCmd.PersistentFlags().String("model-path", "", "explicit local GGUF path")
	rootCmd.PersistentFlags().String("api-key", "", "API key for cloud backends")
	rootCmd.PersistentFlags().String("base-url", "", "custom backend endpoint")
	rootCmd.PersistentFlags().String("cache-dir", "", "cache directory for results and models")
	rootCmd.PersistentFlags().Int("context-size", 0, "llama.cpp context window")
	rootCmd.PersistentFlags().Int("gpu-layers", 0, "llama.cpp GPU-offloaded layers")
	rootCmd.PersistentFlags().Int("max-tokens", 0, "per-item generation bound")
	rootCmd.PersistentFlags().Float64("temperature", 0, "sampling temperature")

	for _, name := range []string{
		"debug", "quiet", "engine", "model", "model-path", "api-key",
		"base-url", "cache-dir", "context-size", "gpu-layers",
		"max-tokens", "temperature",
	} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".loclean")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("LOCLEAN")
	viper.AutomaticEnv()

	// Also check the common API key env vars.
	_ = viper.BindEnv("api_key", "OPENAI_API_KEY", "ANTHROPIC_API_KEY")

	_ = viper.ReadInConfig()
}

// engineOverrides builds the config overrides from the CLI flags.
// Temperature is forwarded only when the flag was given, so
// --temperature 0 is an explicit setting rather than "unset".
func engineOverrides() engine.Config {
	cfg := engine.Config{
		Engine:      viper.GetString("engine"),
		Model:       viper.GetString("model"),
		ModelPath:   viper.GetString("model-path"),
		APIKey:      viper.GetString("api-key"),
		BaseURL:     viper.GetString("base-url"),
		CacheDir:    viper.GetString("cache-dir"),
		ContextSize: viper.GetInt("context-size"),
		GPULayers:   viper.GetInt("gpu-layers"),
		MaxTokens:   viper.GetInt("max-tokens"),
	}
	if f := rootCmd.PersistentFlags().Lookup("temperature"); f != nil && f.Changed {
		cfg.Temperature = engine.Float(viper.GetFloat64("temperature"))
	}
	return cfg
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// logError prints an error message to stderr.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// logInfo prints an info message to stderr (unless quiet mode).
func logInfo(format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
