package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/gookit/color"
	"github.com/halvorsen/subsetdb/internal/config"
	"github.com/halvorsen/subsetdb/internal/database"
	"github.com/halvorsen/subsetdb/internal/extract"
	"github.com/halvorsen/subsetdb/internal/logger"
	"github.com/halvorsen/subsetdb/internal/xerrors"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

var extractProfile string

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract a referential subset for a configured profile",
	Long: `Extract runs the named profile end-to-end:

  1. Introspect the source schema (real + virtual foreign keys)
  2. Parse seed predicates and traverse the FK graph from them
  3. Fetch every related row within the profile's depth bound
  4. Topologically order tables for insert-safe re-import
  5. Validate referential closure
  6. Anonymize sensitive columns (if enabled)
  7. Emit SQL, JSON, or CSV

Example:
  subsetdb extract --config subsetdb.yaml --profile customer_export`,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractProfile, "profile", "p", "",
		"Profile name from configuration file (required)")
	extractCmd.MarkFlagRequired("profile")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if _, err := cfg.GetProfile(extractProfile); err != nil {
		return err
	}

	overrides := GetCLIOverrides()
	cfg.ApplyOverrides(overrides.LogLevel, overrides.LogFormat, overrides.BatchSize,
		overrides.OutFile, overrides.Format)

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	log.Infow("starting extraction", "profile", extractProfile, "config", configFile)

	dbManager := database.NewManager(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := dbManager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to source database: %w", err)
	}
	defer dbManager.Close()

	if err := dbManager.Ping(ctx); err != nil {
		return fmt.Errorf("source database connection failed: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Warn("received shutdown signal, cancelling extraction")
		cancel()
	}()

	orch := extract.New(dbManager.Source, cfg, log)
	result, err := orch.Run(ctx, extractProfile)
	if err != nil {
		if errors.Is(err, xerrors.Cancelled) || errors.Is(err, context.Canceled) {
			log.Warn("extraction cancelled")
			return nil
		}
		return fmt.Errorf("extraction failed: %w", err)
	}

	color.Bold.Println("\n=== Extraction Complete ===")
	fmt.Printf("Profile: %s\n", result.ProfileName)

	tables := make([]string, 0, len(result.TableRowCounts))
	nameWidth := 0
	for table := range result.TableRowCounts {
		tables = append(tables, table)
		if w := runewidth.StringWidth(table); w > nameWidth {
			nameWidth = w
		}
	}
	sort.Strings(tables)

	total := 0
	for _, table := range tables {
		count := result.TableRowCounts[table]
		pad := nameWidth - runewidth.StringWidth(table)
		fmt.Printf("  %s%s  %d row(s)\n", table, spaces(pad), count)
		total += count
	}
	fmt.Printf("Total rows: %d across %d table(s)\n", total, len(result.TableRowCounts))
	if result.DeferredEdges > 0 {
		color.Yellow.Printf("Deferred FK edges (resolved via post-insert UPDATE): %d\n", result.DeferredEdges)
	}
	if len(result.ValidationIssues) > 0 {
		color.Red.Printf("\nValidation issues (%d):\n", len(result.ValidationIssues))
		for _, v := range result.ValidationIssues {
			fmt.Printf("  - %s[%s] -> missing %s via %s\n", v.Table, v.RowKey, v.Target, v.Edge)
		}
	}

	return nil
}

func spaces(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}
