package cmd

import (
	"fmt"
	"sort"

	"github.com/gookit/color"
	"github.com/halvorsen/subsetdb/internal/config"
	"github.com/spf13/cobra"
)

var listProfilesCmd = &cobra.Command{
	Use:   "list-profiles",
	Short: "List all extraction profiles defined in configuration",
	Long: `List-profiles displays every extraction profile defined in the
configuration file along with its seeds and traversal settings.

Example:
  subsetdb list-profiles --config subsetdb.yaml`,
	RunE: runListProfiles,
}

func init() {
	rootCmd.AddCommand(listProfilesCmd)
}

func runListProfiles(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	names := cfg.ListProfiles()
	if len(names) == 0 {
		cmd.Printf("No profiles defined in %s\n", configFile)
		return nil
	}
	sort.Strings(names)

	cmd.Printf("Profiles defined in %s:\n\n", configFile)

	for i, name := range names {
		profile, err := cfg.GetProfile(name)
		if err != nil {
			return fmt.Errorf("failed to get profile %q: %w", name, err)
		}

		cmd.Printf("%d. %s\n", i+1, color.Cyan.Sprint(name))
		cmd.Printf("   Seeds:     %v\n", profile.Seeds)

		depth := profile.Depth
		if depth <= 0 {
			depth = 3
		}
		direction := profile.Direction
		if direction == "" {
			direction = "both"
		}
		cmd.Printf("   Depth:     %d\n", depth)
		cmd.Printf("   Direction: %s\n", direction)

		if len(profile.ExcludeTables) > 0 {
			cmd.Printf("   Excluded:  %v\n", profile.ExcludeTables)
		}
		if len(profile.VirtualForeignKeys) > 0 {
			cmd.Printf("   Virtual FKs: %d\n", len(profile.VirtualForeignKeys))
		}

		if i < len(names)-1 {
			cmd.Println()
		}
	}

	cmd.Printf("\nTotal: %d profile(s)\n", len(names))
	return nil
}
