package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile    string
	logLevel   string
	logFormat  string
	batchSize  int
	outFile    string
	outFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "subsetdb",
	Short: "PostgreSQL referential subset extractor",
	Long: `subsetdb walks foreign-key relationships from a set of seed rows in a
PostgreSQL database, fetches every related row within a bounded depth, orders
them for re-import, optionally anonymizes sensitive columns, and emits the
result as SQL, JSON, or CSV.

Features:
  - FK-graph traversal from seed predicates, including user-declared
    virtual foreign keys
  - Dependency-ordered output via topological sort, with deferred UPDATEs
    for cycles broken at a nullable FK (a cycle with no nullable FK is an
    error)
  - Deterministic, HMAC-seeded anonymization of sensitive columns
  - Batched IN-list row fetching (extract does not switch to server-side
    cursors)`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "subsetdb.yaml",
		"Path to configuration file")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	rootCmd.PersistentFlags().IntVar(&batchSize, "batch-size", 0,
		"Override IN-list batch size for the row fetcher")
	rootCmd.PersistentFlags().StringVar(&outFile, "out-file", "",
		"Override output path (- or empty for stdout; a directory for per-table JSON and CSV)")
	rootCmd.PersistentFlags().StringVar(&outFormat, "format", "",
		"Override output format (sql, json, csv)")
}

// GetConfigFile returns the config file path.
func GetConfigFile() string {
	return cfgFile
}

// CLIOverrides contains flag values that override config file settings.
type CLIOverrides struct {
	LogLevel  string
	LogFormat string
	BatchSize int
	OutFile   string
	Format    string
}

// GetCLIOverrides returns the CLI flag override values.
func GetCLIOverrides() CLIOverrides {
	return CLIOverrides{
		LogLevel:  logLevel,
		LogFormat: logFormat,
		BatchSize: batchSize,
		OutFile:   outFile,
		Format:    outFormat,
	}
}
