package emit

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/halvorsen/subsetdb/internal/fetch"
	"github.com/halvorsen/subsetdb/internal/schema"
)

func (e *Emitter) emitSQL(src Source, outPath string) error {
	w, err := e.openWriter(outPath)
	if err != nil {
		return err
	}
	defer w.Close()

	buf := newBufferedWriter(w)
	defer buf.Flush()

	if e.cfg.IncludeDropTables {
		for i := len(src.Plan.OrderedTables) - 1; i >= 0; i-- {
			fmt.Fprintln(buf, e.dial.DropTableStatement(src.Plan.OrderedTables[i]))
		}
		fmt.Fprintln(buf)
	}

	if e.cfg.DisableFKChecks {
		if stmt := e.dial.DisableFKChecksStatement(); stmt != "" {
			fmt.Fprintln(buf, stmt)
		}
	}

	if e.cfg.IncludeTransaction {
		fmt.Fprintln(buf, "BEGIN;")
	}

	deferredCols := deferredColumnsByTable(src)

	for _, tableName := range src.Plan.OrderedTables {
		table, ok := src.Graph.Table(tableName)
		if !ok {
			continue
		}
		if err := e.writeTableInserts(buf, table, src.Collected.Rows(tableName), deferredCols[tableName]); err != nil {
			return err
		}
	}

	if err := e.writeDeferredUpdates(buf, src); err != nil {
		return err
	}

	if e.cfg.IncludeTransaction {
		fmt.Fprintln(buf, "COMMIT;")
	}

	return buf.Flush()
}

// deferredColumnsByTable maps table -> set of source columns omitted from
// its initial INSERT because a deferred edge references them.
func deferredColumnsByTable(src Source) map[string]map[string]bool {
	out := make(map[string]map[string]bool)
	for _, d := range src.Plan.Deferred {
		set := out[d.FK.SourceTable]
		if set == nil {
			set = make(map[string]bool)
			out[d.FK.SourceTable] = set
		}
		for _, c := range d.FK.SourceColumns {
			set[c] = true
		}
	}
	return out
}

func (e *Emitter) writeTableInserts(buf *bufio.Writer, table *schema.Table, rows []fetch.Row, deferredCols map[string]bool) error {
	if len(rows) == 0 {
		return nil
	}

	cols := make([]int, 0, len(table.Columns))
	colNames := make([]string, 0, len(table.Columns))
	for i, c := range table.Columns {
		if deferredCols[c.Name] {
			continue
		}
		cols = append(cols, i)
		colNames = append(colNames, e.dial.QuoteIdentifier(c.Name))
	}

	maxRows := e.cfg.MaxInsertRows
	if maxRows <= 0 {
		maxRows = 500
	}

	header := fmt.Sprintf("INSERT INTO %s (%s) VALUES\n", e.dial.QuoteIdentifier(table.Name), strings.Join(colNames, ", "))

	for start := 0; start < len(rows); start += maxRows {
		end := start + maxRows
		if end > len(rows) {
			end = len(rows)
		}
		buf.WriteString(header)

		for i, rowIdx := start, 0; i < end; i, rowIdx = i+1, rowIdx+1 {
			row, err := e.anonymizeRow(table, rows[i])
			if err != nil {
				return err
			}
			vals := make([]string, len(cols))
			for j, colIdx := range cols {
				vals[j] = e.dial.QuoteLiteral(table.Columns[colIdx].SQLType, row[colIdx])
			}
			buf.WriteString("  (")
			buf.WriteString(strings.Join(vals, ", "))
			if i == end-1 {
				buf.WriteString(");\n")
			} else {
				buf.WriteString("),\n")
			}
		}
	}
	return nil
}

// writeDeferredUpdates emits one UPDATE per affected row per deferred edge,
// after every table has been inserted (spec §4.5/§4.7).
func (e *Emitter) writeDeferredUpdates(buf *bufio.Writer, src Source) error {
	if len(src.Plan.Deferred) == 0 {
		return nil
	}
	for _, d := range src.Plan.Deferred {
		table, ok := src.Graph.Table(d.FK.SourceTable)
		if !ok {
			continue
		}
		if !table.HasPK() {
			continue
		}
		srcIdx := columnIndices(table, d.FK.SourceColumns)
		pkIdx := columnIndices(table, table.PrimaryKey)

		for _, row := range src.Collected.Rows(d.FK.SourceTable) {
			setClauses := make([]string, len(srcIdx))
			for i, idx := range srcIdx {
				setClauses[i] = fmt.Sprintf("%s = %s",
					e.dial.QuoteIdentifier(d.FK.SourceColumns[i]),
					e.dial.QuoteLiteral(table.Columns[idx].SQLType, row[idx]))
			}
			whereClauses := make([]string, len(pkIdx))
			for i, idx := range pkIdx {
				whereClauses[i] = fmt.Sprintf("%s = %s",
					e.dial.QuoteIdentifier(table.PrimaryKey[i]),
					e.dial.QuoteLiteral(table.Columns[idx].SQLType, row[idx]))
			}
			fmt.Fprintf(buf, "UPDATE %s SET %s WHERE %s;\n",
				e.dial.QuoteIdentifier(table.Name),
				strings.Join(setClauses, ", "),
				strings.Join(whereClauses, " AND "))
		}
	}
	return nil
}

func columnIndices(table *schema.Table, names []string) []int {
	out := make([]int, len(names))
	for i, n := range names {
		idx, _ := table.ColumnIndex(n)
		out[i] = idx
	}
	return out
}
