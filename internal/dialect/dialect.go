// Package dialect isolates the small set of SQL-generation decisions that
// vary by target database, behind a narrow interface instead of a
// duck-typed per-database driver layer.
package dialect

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Dialect is the capability set the Emitter and Row Fetcher need from the
// target database. Only PostgreSQL is implemented; other dialects are
// reserved (an Introspector connected to anything else returns
// UnsupportedDialect before a Dialect is ever selected).
type Dialect interface {
	// QuoteIdentifier quotes a table or column name for safe interpolation.
	QuoteIdentifier(name string) string
	// QuoteLiteral renders value as a SQL literal appropriate for sqlType.
	// A nil value always renders as NULL regardless of sqlType.
	QuoteLiteral(sqlType string, value any) string
	// DropTableStatement renders a DROP statement for include_drop_tables.
	DropTableStatement(table string) string
	// DisableFKChecksStatement renders the session-level FK-check disable
	// directive for disable_fk_checks, or "" if the dialect has no such
	// directive (Postgres returns a session_replication_role setting).
	DisableFKChecksStatement() string
	// OpensServerCursor reports whether this dialect supports DECLARE
	// CURSOR for streaming-mode fetches.
	OpensServerCursor() bool
}

// Postgres is the sole supported Dialect.
var Postgres Dialect = postgresDialect{}

type postgresDialect struct{}

func (postgresDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (postgresDialect) QuoteLiteral(sqlType string, value any) string {
	if value == nil {
		return "NULL"
	}
	switch v := value.(type) {
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case []byte:
		return `'\x` + hex.EncodeToString(v) + `'`
	case time.Time:
		return "'" + v.UTC().Format("2006-01-02T15:04:05.999999Z07:00") + "'"
	}

	switch category(sqlType) {
	case numericCategory:
		return fmt.Sprintf("%v", value)
	case boolCategory:
		if fmt.Sprintf("%v", value) == "true" {
			return "TRUE"
		}
		return "FALSE"
	default:
		return quoteString(fmt.Sprintf("%v", value))
	}
}

func (postgresDialect) DropTableStatement(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE;", Postgres.QuoteIdentifier(table))
}

func (postgresDialect) DisableFKChecksStatement() string {
	return "SET session_replication_role = 'replica';"
}

func (postgresDialect) OpensServerCursor() bool {
	return true
}

type typeCategory int

const (
	textCategory typeCategory = iota
	numericCategory
	boolCategory
)

func category(sqlType string) typeCategory {
	t := strings.ToLower(sqlType)
	switch {
	case strings.Contains(t, "int"), strings.Contains(t, "numeric"),
		strings.Contains(t, "decimal"), strings.Contains(t, "real"),
		strings.Contains(t, "double"), strings.Contains(t, "serial"),
		strings.Contains(t, "money"):
		return numericCategory
	case strings.Contains(t, "bool"):
		return boolCategory
	default:
		return textCategory
	}
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
