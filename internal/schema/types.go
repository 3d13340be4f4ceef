// Package schema holds the in-memory Schema Model: tables, columns, and the
// foreign-key edges (real and virtual) that the Traversal Engine walks.
package schema

import (
	"fmt"
	"strings"
)

// SensitivityTag classifies how the Anonymizer should treat a column's
// values at emit time.
type SensitivityTag string

const (
	// SensitivityNone passes the value through unchanged.
	SensitivityNone SensitivityTag = ""
	// SensitivityNullOut replaces the value with NULL.
	SensitivityNullOut SensitivityTag = "NULL_OUT"
	// SensitivityFake replaces the value with a deterministic fake, keyed
	// by a method name (e.g. "email", "phone_number").
	SensitivityFake SensitivityTag = "FAKE"
)

// Column describes one column of a Table.
type Column struct {
	Name       string
	SQLType    string
	Nullable   bool
	Tag        SensitivityTag
	FakeMethod string // set when Tag == SensitivityFake
}

// Table describes one base table reachable by the traversal engine.
type Table struct {
	Name          string
	PrimaryKey    []string // ordered; empty if the table has no PK
	Columns       []Column
	ColumnsByName map[string]*Column
}

// HasPK reports whether the table has a usable primary key.
func (t *Table) HasPK() bool {
	return len(t.PrimaryKey) > 0
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	c, ok := t.ColumnsByName[name]
	return c, ok
}

// ColumnIndex returns the position of name within t.Columns, for
// projecting a fetched row tuple down to a named subset of columns.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if c.Name == name {
			return i, true
		}
	}
	return 0, false
}

// IsFKColumn reports whether name participates in any FK edge touching
// this table, as either a source or target column. Populated by Graph
// once all edges are known; Table itself does not track this.
func (t *Table) IsFKColumn(name string, fkColumns map[string]bool) bool {
	return fkColumns[t.Name+"."+name]
}

// ForeignKey is a directed edge from a child (referencing) table to a
// parent (referenced) table. Real edges come from database constraints;
// virtual edges are declared by the user in configuration.
type ForeignKey struct {
	Name          string
	SourceTable   string
	SourceColumns []string
	TargetTable   string
	TargetColumns []string
	Nullable      bool
	IsVirtual     bool
}

// RowKey identifies one row by its ordered primary-key-column values,
// rendered to a stable string for use as a map key. For tables without a
// PK, callers build a RowKey from the full column-value tuple instead.
type RowKey string

// NewRowKey builds a RowKey from ordered values using a separator that
// cannot appear in a formatted scalar, to avoid accidental collisions
// between differently-shaped tuples that happen to stringify the same.
func NewRowKey(values []any) RowKey {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = formatKeyPart(v)
	}
	return RowKey(strings.Join(parts, "\x1f"))
}

func formatKeyPart(v any) string {
	if v == nil {
		return "\x00NULL"
	}
	switch t := v.(type) {
	case []byte:
		return string(t)
	case string:
		return t
	default:
		return toString(t)
	}
}

func toString(v any) string {
	type stringer interface{ String() string }
	if s, ok := v.(stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", v)
}
