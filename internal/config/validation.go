package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs = append(errs, c.validateDatabase("source", &c.Source)...)

	if len(c.Profiles) == 0 {
		errs = append(errs, ValidationError{
			Field:   "profiles",
			Message: "at least one profile must be defined",
		})
	}
	for name, profile := range c.Profiles {
		errs = append(errs, c.validateProfile(name, &profile)...)
	}

	errs = append(errs, c.validatePerformance("performance", c.Performance)...)
	errs = append(errs, c.validateOutput("output", c.Output)...)
	errs = append(errs, c.validateLogging()...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Config) validateDatabase(prefix string, db *DatabaseConfig) ValidationErrors {
	var errs ValidationErrors

	if db.Host == "" {
		errs = append(errs, ValidationError{Field: prefix + ".host", Message: "host is required"})
	}
	if db.Port <= 0 || db.Port > 65535 {
		errs = append(errs, ValidationError{Field: prefix + ".port", Message: "port must be between 1 and 65535"})
	}
	if db.User == "" {
		errs = append(errs, ValidationError{Field: prefix + ".user", Message: "user is required"})
	}
	if db.Database == "" {
		errs = append(errs, ValidationError{Field: prefix + ".database", Message: "database name is required"})
	}

	validSSL := map[string]bool{"disable": true, "prefer": true, "require": true, "verify-full": true, "": true}
	if !validSSL[db.SSLMode] {
		errs = append(errs, ValidationError{Field: prefix + ".ssl_mode", Message: "ssl_mode must be 'disable', 'prefer', 'require', or 'verify-full'"})
	}
	if db.MaxConnections < 0 {
		errs = append(errs, ValidationError{Field: prefix + ".max_connections", Message: "max_connections cannot be negative"})
	}
	if db.MaxIdleConnections < 0 {
		errs = append(errs, ValidationError{Field: prefix + ".max_idle_connections", Message: "max_idle_connections cannot be negative"})
	}

	return errs
}

func (c *Config) validateProfile(name string, p *ProfileConfig) ValidationErrors {
	var errs ValidationErrors
	prefix := fmt.Sprintf("profiles.%s", name)

	if len(p.Seeds) == 0 {
		errs = append(errs, ValidationError{Field: prefix + ".seeds", Message: "at least one seed is required"})
	}
	if p.Depth < 0 {
		errs = append(errs, ValidationError{Field: prefix + ".depth", Message: "depth cannot be negative"})
	}

	validDirections := map[string]bool{"up": true, "down": true, "both": true, "": true}
	if !validDirections[p.Direction] {
		errs = append(errs, ValidationError{Field: prefix + ".direction", Message: "direction must be 'up', 'down', or 'both'"})
	}

	for i, vfk := range p.VirtualForeignKeys {
		vprefix := fmt.Sprintf("%s.virtual_foreign_keys[%d]", prefix, i)
		if vfk.SourceTable == "" {
			errs = append(errs, ValidationError{Field: vprefix + ".source_table", Message: "source_table is required"})
		}
		if vfk.TargetTable == "" {
			errs = append(errs, ValidationError{Field: vprefix + ".target_table", Message: "target_table is required"})
		}
		if len(vfk.SourceColumns) == 0 {
			errs = append(errs, ValidationError{Field: vprefix + ".source_columns", Message: "at least one source column is required"})
		}
		if len(vfk.TargetColumns) > 0 && len(vfk.TargetColumns) != len(vfk.SourceColumns) {
			errs = append(errs, ValidationError{Field: vprefix + ".target_columns", Message: "target_columns arity must match source_columns"})
		}
	}

	if p.Performance != nil {
		errs = append(errs, c.validatePerformance(prefix+".performance", *p.Performance)...)
	}
	if p.Output != nil {
		errs = append(errs, c.validateOutput(prefix+".output", *p.Output)...)
	}

	return errs
}

func (c *Config) validatePerformance(prefix string, perf PerformanceConfig) ValidationErrors {
	var errs ValidationErrors
	if perf.BatchSize < 0 {
		errs = append(errs, ValidationError{Field: prefix + ".batch_size", Message: "batch_size cannot be negative"})
	}
	if perf.StreamThreshold < 0 {
		errs = append(errs, ValidationError{Field: prefix + ".stream_threshold", Message: "stream_threshold cannot be negative"})
	}
	if perf.ChunkSize < 0 {
		errs = append(errs, ValidationError{Field: prefix + ".chunk_size", Message: "chunk_size cannot be negative"})
	}
	return errs
}

func (c *Config) validateOutput(prefix string, out OutputConfig) ValidationErrors {
	var errs ValidationErrors
	validFormats := map[string]bool{"sql": true, "json": true, "csv": true, "": true}
	if !validFormats[out.Format] {
		errs = append(errs, ValidationError{Field: prefix + ".format", Message: "format must be 'sql', 'json', or 'csv'"})
	}
	validJSONModes := map[string]bool{"single": true, "per-table": true, "": true}
	if !validJSONModes[out.JSONMode] {
		errs = append(errs, ValidationError{Field: prefix + ".json_mode", Message: "json_mode must be 'single' or 'per-table'"})
	}
	if out.MaxInsertRows < 0 {
		errs = append(errs, ValidationError{Field: prefix + ".max_insert_rows", Message: "max_insert_rows cannot be negative"})
	}
	return errs
}

func (c *Config) validateLogging() ValidationErrors {
	var errs ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errs = append(errs, ValidationError{Field: "logging.level", Message: "level must be 'debug', 'info', 'warn', or 'error'"})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errs = append(errs, ValidationError{Field: "logging.format", Message: "format must be 'json' or 'text'"})
	}

	return errs
}
