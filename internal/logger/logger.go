// Package logger provides structured logging for subsetdb using zap.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/halvorsen/subsetdb/internal/config"
)

// Logger wraps zap.SugaredLogger with subsetdb's own extraction-provenance
// context: which profile, table, FK edge, and fetch batch a line was
// produced under, so a log line can be traced back to the traversal step
// or fetch batch that produced it.
type Logger struct {
	*zap.SugaredLogger
	base *zap.Logger
	ctx  Provenance
}

// Provenance is the accumulated extraction context a Logger line carries.
// Zero-valued fields are omitted from the emitted line.
type Provenance struct {
	Profile string
	Table   string
	Edge    string
	Batch   int
}

// New creates a new Logger from configuration.
func New(cfg *config.LoggingConfig) (*Logger, error) {
	level := parseLevel(cfg.Level)
	encoder := buildEncoder(cfg.Format)
	writers := buildWriters(cfg.Output)

	core := zapcore.NewCore(encoder, writers, level)
	baseLogger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	return &Logger{
		SugaredLogger: baseLogger.Sugar(),
		base:          baseLogger,
	}, nil
}

// NewDefault creates a Logger with default settings (info level, text format, stdout).
func NewDefault() *Logger {
	cfg := &config.LoggingConfig{
		Level:  "info",
		Format: "text",
		Output: "stdout",
	}
	logger, _ := New(cfg)
	return logger
}

// parseLevel converts string level to zapcore.Level.
func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info", "":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// buildEncoder creates the appropriate encoder based on format.
func buildEncoder(format string) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	if format == "json" {
		return zapcore.NewJSONEncoder(encoderConfig)
	}

	// Text format with colored output
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(encoderConfig)
}

// buildWriters creates the output writers based on configuration.
func buildWriters(output string) zapcore.WriteSyncer {
	switch output {
	case "stdout", "":
		return zapcore.AddSync(os.Stdout)
	case "stderr":
		return zapcore.AddSync(os.Stderr)
	default:
		// File output
		file, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			// Fall back to stdout
			return zapcore.AddSync(os.Stdout)
		}
		// Write to both file and stdout
		return zapcore.NewMultiWriteSyncer(
			zapcore.AddSync(file),
			zapcore.AddSync(os.Stdout),
		)
	}
}

// with returns a Logger whose provenance is the receiver's, overlaid with
// the non-zero fields of p; every With* helper below is a thin projection
// onto this one merge so the accumulated context stays a typed Provenance
// instead of a bag of zap.With key/value pairs threaded by hand at each
// call site.
func (l *Logger) with(p Provenance) *Logger {
	merged := l.ctx
	var args []interface{}
	if p.Profile != "" {
		merged.Profile = p.Profile
		args = append(args, "profile", p.Profile)
	}
	if p.Table != "" {
		merged.Table = p.Table
		args = append(args, "table", p.Table)
	}
	if p.Edge != "" {
		merged.Edge = p.Edge
		args = append(args, "edge", p.Edge)
	}
	if p.Batch != 0 {
		merged.Batch = p.Batch
		args = append(args, "batch", p.Batch)
	}
	return &Logger{
		SugaredLogger: l.SugaredLogger.With(args...),
		base:          l.base,
		ctx:           merged,
	}
}

// WithProfile returns a Logger scoped to an extraction profile.
func (l *Logger) WithProfile(profileName string) *Logger {
	return l.with(Provenance{Profile: profileName})
}

// WithBatch returns a Logger scoped to one fetch batch or cursor chunk
// number, used by internal/fetch while chunking IN-list and streaming
// reads.
func (l *Logger) WithBatch(batchNum int) *Logger {
	return l.with(Provenance{Batch: batchNum})
}

// WithTable returns a Logger scoped to a table.
func (l *Logger) WithTable(tableName string) *Logger {
	return l.with(Provenance{Table: tableName})
}

// WithEdge returns a Logger scoped to the FK edge a row was discovered
// through during traversal (the Traversal Engine's "origin_edge"
// provenance).
func (l *Logger) WithEdge(edgeName string) *Logger {
	return l.with(Provenance{Edge: edgeName})
}

// Provenance returns the profile/table/edge/batch context accumulated on
// this Logger by prior With* calls.
func (l *Logger) Provenance() Provenance {
	return l.ctx
}

// WithFields returns a Logger with additional ad-hoc fields that don't fit
// the Provenance shape.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{
		SugaredLogger: l.SugaredLogger.With(args...),
		base:          l.base,
		ctx:           l.ctx,
	}
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.base.Sync()
}
