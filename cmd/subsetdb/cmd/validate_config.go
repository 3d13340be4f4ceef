package cmd

import (
	"fmt"

	"github.com/gookit/color"
	"github.com/halvorsen/subsetdb/internal/config"
	"github.com/spf13/cobra"
)

var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Validate the configuration file's syntax and required fields",
	Long: `Validate-config checks the configuration file in isolation: required
fields, valid enum values (direction, format, ssl_mode, ...), and virtual
foreign key arity. It does not connect to the source database.

Example:
  subsetdb validate-config --config subsetdb.yaml`,
	RunE: runValidateConfig,
}

func init() {
	rootCmd.AddCommand(validateConfigCmd)
}

func runValidateConfig(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cmd.Printf("Config file: %s\n", configFile)
	cmd.Printf("Profiles found: %d\n\n", len(cfg.Profiles))

	if err := cfg.Validate(); err != nil {
		color.Red.Printf("✗ %v\n", err)
		return fmt.Errorf("configuration is invalid")
	}

	color.Green.Println("✓ Configuration is valid")
	return nil
}
