package traverse

import (
	"github.com/halvorsen/subsetdb/internal/fetch"
	"github.com/halvorsen/subsetdb/internal/schema"
)

// Collected is the Collected Set: a per-table mapping of row-key to full
// row values, plus the discovery order needed for SQL INSERT emission
// (spec §5 "Within a table, row emission order ... follows BFS
// discovery").
type Collected struct {
	rows   map[string]map[schema.RowKey]fetch.Row
	order  map[string][]schema.RowKey
	tables []string // table names in the order their first row was added
}

// NewCollected creates an empty Collected Set.
func NewCollected() *Collected {
	return &Collected{
		rows:  make(map[string]map[schema.RowKey]fetch.Row),
		order: make(map[string][]schema.RowKey),
	}
}

// Add registers row under (table, key) if not already present. Returns
// true if this call newly added it (the caller should enqueue a work item
// only in that case, preserving the "row-key appears at most once" and
// "no re-enqueue of a visited key" invariants).
func (c *Collected) Add(table string, key schema.RowKey, row fetch.Row) bool {
	if c.rows[table] == nil {
		c.rows[table] = make(map[schema.RowKey]fetch.Row)
		c.tables = append(c.tables, table)
	}
	if _, exists := c.rows[table][key]; exists {
		return false
	}
	c.rows[table][key] = row
	c.order[table] = append(c.order[table], key)
	return true
}

// Has reports whether (table, key) is already collected.
func (c *Collected) Has(table string, key schema.RowKey) bool {
	_, ok := c.rows[table][key]
	return ok
}

// Row looks up the full row values for (table, key).
func (c *Collected) Row(table string, key schema.RowKey) (fetch.Row, bool) {
	row, ok := c.rows[table][key]
	return row, ok
}

// Tables returns the names of tables with at least one collected row, in
// the order the first row of each was added.
func (c *Collected) Tables() []string {
	var out []string
	seen := make(map[string]bool)
	for _, table := range c.tableInsertionOrder() {
		if !seen[table] {
			seen[table] = true
			out = append(out, table)
		}
	}
	return out
}

func (c *Collected) tableInsertionOrder() []string {
	return c.tables
}

// RowKeys returns the row-keys collected for table, in discovery order.
func (c *Collected) RowKeys(table string) []schema.RowKey {
	return c.order[table]
}

// Rows returns the full rows collected for table, in discovery order.
func (c *Collected) Rows(table string) []fetch.Row {
	keys := c.order[table]
	out := make([]fetch.Row, len(keys))
	for i, k := range keys {
		out[i] = c.rows[table][k]
	}
	return out
}

// Count returns the total number of rows collected across all tables.
func (c *Collected) Count() int {
	n := 0
	for _, keys := range c.order {
		n += len(keys)
	}
	return n
}
