package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/clipforge/clipforge/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing clipforge configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the default configuration",
	Long: `Dump the default configuration values in YAML format.

This shows all available configuration options with their default values.
You can redirect this output to a file to create a configuration template:

  clipforge config dump > config.yaml

Configuration can be set via:
  - Config file (config.yaml, ./configs, /etc/clipforge, $HOME/.clipforge)
  - Environment variables (CLIPFORGE_SERVER_PORT, CLIPFORGE_DATABASE_DSN, etc.)

Environment variables use the CLIPFORGE_ prefix and underscores for nesting.
Example: server.port -> CLIPFORGE_SERVER_PORT`,
	RunE: runConfigDump,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the active configuration",
	Long: `Load the configuration from file and environment and run validation.

Exits non-zero when the configuration is invalid.`,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	v := viper.New()
	config.SetDefaults(v)

	out, err := yaml.Marshal(v.AllSettings())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	fmt.Print(string(out))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	fmt.Printf("configuration OK (server %s, database %s, library %s)\n",
		cfg.Server.Address(), cfg.Database.Driver, cfg.Storage.LibraryPath())
	return nil
}
