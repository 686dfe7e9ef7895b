// Package cmd implements the CLI commands for clipforge.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clipforge/clipforge/internal/version"
)

// cfgFile holds the config file path from the CLI flag.
var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "clipforge",
	Short:   "Long-form video processing and clip generation service",
	Version: version.Short(),
	Long: `clipforge discovers long-form video files, drives them through a
transcription and enrichment pipeline, and produces short social-media
clips with rendered assets.

Processing runs asynchronously through a bounded job queue exposed over
a REST API. External engines (speech-to-text, enrichment, encoding) are
consumed through narrow collaborator interfaces.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., ./configs, /etc/clipforge, $HOME/.clipforge)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format override (text, json)")
}
