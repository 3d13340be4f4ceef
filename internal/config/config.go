// Package config provides configuration structures and loading for subsetdb.
package config

// Config represents the complete application configuration.
type Config struct {
	Source      DatabaseConfig           `yaml:"source" mapstructure:"source"`
	Profiles    map[string]ProfileConfig `yaml:"profiles" mapstructure:"profiles"`
	Performance PerformanceConfig        `yaml:"performance" mapstructure:"performance"`
	Anonymize   AnonymizeConfig          `yaml:"anonymize" mapstructure:"anonymize"`
	Output      OutputConfig             `yaml:"output" mapstructure:"output"`
	Logging     LoggingConfig            `yaml:"logging" mapstructure:"logging"`
}

// DatabaseConfig represents the single PostgreSQL source connection. There is
// no destination or replica: extraction never writes to the source.
type DatabaseConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	Schema             string `yaml:"schema" mapstructure:"schema"`
	SSLMode            string `yaml:"ssl_mode" mapstructure:"ssl_mode"` // disable, require, verify-full
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
}

// ProfileConfig describes one named extraction: its seeds and the traversal,
// anonymization, and output options layered on top of the global defaults.
type ProfileConfig struct {
	Seeds               []string              `yaml:"seeds" mapstructure:"seeds"`
	Depth               int                   `yaml:"depth" mapstructure:"depth"`
	Direction           string                `yaml:"direction" mapstructure:"direction"` // up, down, both
	ExcludeTables       []string              `yaml:"exclude_tables" mapstructure:"exclude_tables"`
	Validate            *bool                 `yaml:"validate" mapstructure:"validate"`
	FailOnValidateError *bool                 `yaml:"fail_on_validation_error" mapstructure:"fail_on_validation_error"`
	VirtualForeignKeys  []VirtualFKConfig     `yaml:"virtual_foreign_keys" mapstructure:"virtual_foreign_keys"`
	Performance         *PerformanceConfig    `yaml:"performance,omitempty" mapstructure:"performance"`
	Anonymize           *AnonymizeConfig      `yaml:"anonymize,omitempty" mapstructure:"anonymize"`
	Output              *OutputConfig         `yaml:"output,omitempty" mapstructure:"output"`
}

// VirtualFKConfig declares a user-supplied FK edge not present as a
// database constraint (spec §3 "Virtual FK").
type VirtualFKConfig struct {
	Name            string   `yaml:"name" mapstructure:"name"`
	SourceTable     string   `yaml:"source_table" mapstructure:"source_table"`
	SourceColumns   []string `yaml:"source_columns" mapstructure:"source_columns"`
	TargetTable     string   `yaml:"target_table" mapstructure:"target_table"`
	TargetColumns   []string `yaml:"target_columns,omitempty" mapstructure:"target_columns"`
	Nullable        bool     `yaml:"nullable" mapstructure:"nullable"`
}

// PerformanceConfig governs IN-list batching and the buffered/streaming
// decision of the Row Fetcher (spec §4.4).
type PerformanceConfig struct {
	BatchSize         int  `yaml:"batch_size" mapstructure:"batch_size"`
	StreamEnabled     bool `yaml:"stream_enabled" mapstructure:"stream_enabled"`
	StreamThreshold   int  `yaml:"stream_threshold" mapstructure:"stream_threshold"`
	ChunkSize         int  `yaml:"chunk_size" mapstructure:"chunk_size"`
}

// AnonymizeConfig governs the Anonymizer (spec §4.6).
type AnonymizeConfig struct {
	Enabled    bool              `yaml:"enabled" mapstructure:"enabled"`
	Seed       string            `yaml:"seed" mapstructure:"seed"`
	Fields     map[string]string `yaml:"fields" mapstructure:"fields"`
	NullFields []string          `yaml:"null_fields" mapstructure:"null_fields"`
}

// OutputConfig governs the Emitter (spec §4.7).
type OutputConfig struct {
	Format             string `yaml:"format" mapstructure:"format"` // sql, json, csv
	IncludeTransaction bool   `yaml:"include_transaction" mapstructure:"include_transaction"`
	IncludeDropTables  bool   `yaml:"include_drop_tables" mapstructure:"include_drop_tables"`
	DisableFKChecks    bool   `yaml:"disable_fk_checks" mapstructure:"disable_fk_checks"`
	JSONMode           string `yaml:"json_mode" mapstructure:"json_mode"` // single, per-table
	JSONPretty         bool   `yaml:"json_pretty" mapstructure:"json_pretty"`
	MaxInsertRows      int    `yaml:"max_insert_rows" mapstructure:"max_insert_rows"`
	OutFile            string `yaml:"out_file" mapstructure:"out_file"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Source: DatabaseConfig{
			Port:               5432,
			Schema:             "public",
			SSLMode:            "prefer",
			MaxConnections:     10,
			MaxIdleConnections: 5,
		},
		Performance: PerformanceConfig{
			BatchSize:       1000,
			StreamEnabled:   false,
			StreamThreshold: 50000,
			ChunkSize:       5000,
		},
		Anonymize: AnonymizeConfig{
			Enabled: false,
		},
		Output: OutputConfig{
			Format:        "sql",
			JSONMode:      "single",
			MaxInsertRows: 500,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// GetProfilePerformance returns the performance config for a profile,
// falling back to the global default for any unset field.
func (c *Config) GetProfilePerformance(name string) PerformanceConfig {
	profile, err := c.GetProfile(name)
	if err != nil || profile.Performance == nil {
		return c.Performance
	}
	result := c.Performance
	p := profile.Performance
	if p.BatchSize > 0 {
		result.BatchSize = p.BatchSize
	}
	if p.StreamThreshold > 0 {
		result.StreamThreshold = p.StreamThreshold
	}
	if p.ChunkSize > 0 {
		result.ChunkSize = p.ChunkSize
	}
	result.StreamEnabled = result.StreamEnabled || p.StreamEnabled
	return result
}

// GetProfileAnonymize returns the anonymize config for a profile, falling
// back to the global default when the profile doesn't override it.
func (c *Config) GetProfileAnonymize(name string) AnonymizeConfig {
	profile, err := c.GetProfile(name)
	if err != nil || profile.Anonymize == nil {
		return c.Anonymize
	}
	return *profile.Anonymize
}

// GetProfileOutput returns the output config for a profile, falling back to
// the global default when the profile doesn't override it.
func (c *Config) GetProfileOutput(name string) OutputConfig {
	profile, err := c.GetProfile(name)
	if err != nil || profile.Output == nil {
		return c.Output
	}
	result := c.Output
	o := profile.Output
	if o.Format != "" {
		result.Format = o.Format
	}
	if o.JSONMode != "" {
		result.JSONMode = o.JSONMode
	}
	if o.MaxInsertRows > 0 {
		result.MaxInsertRows = o.MaxInsertRows
	}
	if o.OutFile != "" {
		result.OutFile = o.OutFile
	}
	result.IncludeTransaction = result.IncludeTransaction || o.IncludeTransaction
	result.IncludeDropTables = result.IncludeDropTables || o.IncludeDropTables
	result.DisableFKChecks = result.DisableFKChecks || o.DisableFKChecks
	result.JSONPretty = result.JSONPretty || o.JSONPretty
	return result
}
