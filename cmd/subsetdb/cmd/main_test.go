package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecute(t *testing.T) {
	// Execute() calls os.Exit(1) on error, so this is primarily a
	// compile-time / existence check.
	assert.NotNil(t, Execute)
}

func TestVersionVariables(t *testing.T) {
	assert.NotEmpty(t, Version, "Version should not be empty")
	assert.NotEmpty(t, Commit, "Commit should not be empty")
}

func TestCLIFlagsVariables(t *testing.T) {
	assert.Equal(t, "subsetdb.yaml", cfgFile, "cfgFile should default to subsetdb.yaml")
	assert.Equal(t, "", logLevel)
	assert.Equal(t, "", logFormat)
	assert.Equal(t, 0, batchSize)
}

func TestCLIOverrideStruct(t *testing.T) {
	overrides := CLIOverrides{
		LogLevel:  "debug",
		LogFormat: "json",
		BatchSize: 100,
		OutFile:   "/tmp/out.json",
		Format:    "json",
	}

	assert.Equal(t, "debug", overrides.LogLevel)
	assert.Equal(t, "json", overrides.LogFormat)
	assert.Equal(t, 100, overrides.BatchSize)
	assert.Equal(t, "/tmp/out.json", overrides.OutFile)
	assert.Equal(t, "json", overrides.Format)
}
