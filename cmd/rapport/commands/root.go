// Package commands implements the rapport command line interface.
package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/rapport/internal/config"
)

var (
	// configPath is the base TOML config file.
	configPath string

	// verbose enables pipeline logging on stderr.
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "rapport",
	Short: "Analyze customer reviews and send automated responses",
	Long: `rapport classifies customer reviews, decides which ones warrant a
response, and sends personalized replies through the configured mail
provider.

Configuration is read from config.toml, an optional config.<RAPPORT_ENV>.toml
overlay, and RAPPORT_* environment variables.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&configPath, "config", config.BaseConfigFile,
		"Path to the base config file",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false,
		"Log pipeline activity to stderr",
	)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(templatesCmd)
}

func newLogger(enabled bool) *slog.Logger {
	if !enabled {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}
