// Package xerrors defines the typed error kinds subsetdb surfaces to callers.
package xerrors

import (
	"errors"
	"fmt"
	"strings"
)

// Cancelled is returned (wrapped) when a run is aborted by a cancellation
// signal. Partial output is left on disk; callers are expected to write to
// a temp path and rename on success.
var Cancelled = errors.New("extraction cancelled")

// SchemaError reports a failure introspecting the source schema, or a
// virtual foreign key that references an unknown table/column or has a
// column-count mismatch between its source and target sides.
type SchemaError struct {
	Table   string
	Column  string
	Message string
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString("schema error")
	if e.Table != "" {
		fmt.Fprintf(&b, " (table %q", e.Table)
		if e.Column != "" {
			fmt.Fprintf(&b, ", column %q", e.Column)
		}
		b.WriteString(")")
	}
	fmt.Fprintf(&b, ": %s", e.Message)
	return b.String()
}

// InvalidSeed reports a seed specification that references an unknown
// table/column, or targets a table without a primary key where one is
// required.
type InvalidSeed struct {
	Seed    string
	Message string
}

func (e *InvalidSeed) Error() string {
	return fmt.Sprintf("invalid seed %q: %s", e.Seed, e.Message)
}

// FetchError reports a database failure during a seed or neighbor-row
// fetch. Values bound to the offending query are not included verbatim —
// anonymization-sensitive data must never appear in an error message.
type FetchError struct {
	Table string
	SQL   string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch error on table %q: %v\n  query: %s", e.Table, e.Err, e.SQL)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// UnbreakableCycleError reports that the topological sorter found a cycle
// among tables with collected rows, and no edge in that cycle has a
// nullable source column that could be deferred and back-filled.
type UnbreakableCycleError struct {
	CyclePath []string
}

func (e *UnbreakableCycleError) Error() string {
	return fmt.Sprintf("unbreakable cycle (no nullable FK to defer): %s", strings.Join(e.CyclePath, " -> "))
}

// ValidationViolation describes one referential-integrity gap found by the
// Validator: a row whose non-null FK tuple has no matching target row in
// the Collected Set, and which is not covered by a deferred edge.
type ValidationViolation struct {
	Table  string
	RowKey string
	Edge   string
	Target string
}

// ValidationError is returned by an extraction run when
// fail_on_validation_error is set and the Validator found at least one
// violation.
type ValidationError struct {
	Violations []ValidationViolation
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "validation failed: %d referential-integrity violation(s)", len(e.Violations))
	for _, v := range e.Violations {
		fmt.Fprintf(&b, "\n  - %s[%s] via %s: missing %s", v.Table, v.RowKey, v.Edge, v.Target)
	}
	return b.String()
}

// UnsupportedDialect is returned by the Introspector when the configured
// connection is not PostgreSQL.
type UnsupportedDialect struct {
	Dialect string
}

func (e *UnsupportedDialect) Error() string {
	return fmt.Sprintf("unsupported dialect %q: subsetdb extracts from PostgreSQL only", e.Dialect)
}
