package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/halvorsen/subsetdb/internal/config"
	"github.com/halvorsen/subsetdb/internal/database"
	"github.com/halvorsen/subsetdb/internal/introspect"
	"github.com/halvorsen/subsetdb/internal/mermaidascii"
	"github.com/halvorsen/subsetdb/internal/schema"
	"github.com/halvorsen/subsetdb/internal/seedspec"
	"github.com/spf13/cobra"
)

// outputWriter is used for printing output, can be overridden in tests.
var outputWriter io.Writer = os.Stdout

func setOutputWriter(w io.Writer) { outputWriter = w }
func resetOutputWriter()          { outputWriter = os.Stdout }

var planProfile string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Preview which tables a profile would reach, without fetching rows",
	Long: `Plan introspects the source schema and the profile's seeds, then walks
the foreign-key graph at the table level only (no rows are ever fetched) to
show which tables the profile's depth/direction/exclude settings would reach.
It prints the reachable tables in alphabetical order and an ASCII tree of the
FK relations among them; it does not compute an insert order or deferred edges.

Example:
  subsetdb plan --config subsetdb.yaml --profile customer_export`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planProfile, "profile", "p", "",
		"Profile name from configuration file (required)")
	planCmd.MarkFlagRequired("profile")

	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	profile, err := cfg.GetProfile(planProfile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	dbManager := database.NewManager(cfg)
	if err := dbManager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to source database: %w", err)
	}
	defer dbManager.Close()

	ins, err := introspect.New(dbManager.Source, cfg.Source.Schema, "postgres")
	if err != nil {
		return fmt.Errorf("failed to create introspector: %w", err)
	}
	g, err := ins.Build(ctx, profile.VirtualForeignKeys)
	if err != nil {
		return fmt.Errorf("failed to introspect schema: %w", err)
	}

	seeds, err := seedspec.ParseAll(profile.Seeds)
	if err != nil {
		return fmt.Errorf("failed to parse seeds: %w", err)
	}

	depth := profile.Depth
	if depth <= 0 {
		depth = 3
	}
	direction := schema.Direction(profile.Direction)
	if direction == "" {
		direction = schema.DirectionBoth
	}
	exclude := make(map[string]bool, len(profile.ExcludeTables))
	for _, t := range profile.ExcludeTables {
		exclude[t] = true
	}

	seedTables := make([]string, 0, len(seeds))
	for _, s := range seeds {
		seedTables = append(seedTables, s.Table)
	}

	reached := structuralBFS(g, seedTables, depth, direction, exclude)

	printHeader("Plan: %s", planProfile)
	fmt.Fprintln(outputWriter)
	printSection("Profile")
	fmt.Fprintf(outputWriter, "  Seeds:     %s\n", strings.Join(profile.Seeds, ", "))
	fmt.Fprintf(outputWriter, "  Depth:     %d\n", depth)
	fmt.Fprintf(outputWriter, "  Direction: %s\n", direction)
	if len(profile.ExcludeTables) > 0 {
		fmt.Fprintf(outputWriter, "  Excluded:  %s\n", strings.Join(profile.ExcludeTables, ", "))
	}

	fmt.Fprintln(outputWriter)
	printSection("Reachable Tables")
	for _, t := range sortedKeys(reached) {
		fmt.Fprintf(outputWriter, "  - %s\n", t)
	}

	mermaidSyntax := g.ToMermaid(reached)
	rendered, err := mermaidascii.RenderDiagram(mermaidSyntax, nil)
	if err != nil {
		return fmt.Errorf("failed to render diagram: %w", err)
	}
	fmt.Fprintln(outputWriter)
	printSection("Relation Tree")
	fmt.Fprint(outputWriter, rendered)

	return nil
}

// structuralBFS walks the FK graph at the table level only (bounded by
// depth/direction/exclude, matching the Traversal Engine's own bound in
// internal/traverse), to preview reach without fetching any rows.
func structuralBFS(g *schema.Graph, seedTables []string, depth int, direction schema.Direction, exclude map[string]bool) map[string]bool {
	reached := make(map[string]bool)
	type item struct {
		table string
		depth int
	}
	var queue []item
	for _, t := range seedTables {
		if exclude[t] || reached[t] {
			continue
		}
		reached[t] = true
		queue = append(queue, item{table: t, depth: 0})
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= depth {
			continue
		}
		for _, de := range g.DirectedEdgesFrom(cur.table, direction) {
			other := de.Other
			if exclude[other] || reached[other] {
				continue
			}
			reached[other] = true
			queue = append(queue, item{table: other, depth: cur.depth + 1})
		}
	}
	return reached
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func printHeader(format string, args ...interface{}) {
	title := fmt.Sprintf(format, args...)
	width := len(title) + 4
	fmt.Fprintln(outputWriter, strings.Repeat("=", width))
	fmt.Fprintf(outputWriter, "  %s\n", title)
	fmt.Fprintln(outputWriter, strings.Repeat("=", width))
}

func printSection(title string) {
	fmt.Fprintf(outputWriter, "[%s]\n", title)
	fmt.Fprintln(outputWriter, strings.Repeat("-", len(title)+2))
}
