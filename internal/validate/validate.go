// Package validate implements the Validator: a post-extraction
// referential-integrity check over the Collected Set.
package validate

import (
	"fmt"

	"github.com/halvorsen/subsetdb/internal/schema"
	"github.com/halvorsen/subsetdb/internal/topo"
	"github.com/halvorsen/subsetdb/internal/traverse"
	"github.com/halvorsen/subsetdb/internal/xerrors"
)

// Run checks, for every collected row and every real FK edge touching its
// table, that a non-null source-column tuple either has its referenced
// row present in collected, or the edge is covered by a deferred plan
// entry. Virtual/polymorphic edges are advisory traversal hints, not
// enforced constraints, and are never checked here.
func Run(graph *schema.Graph, collected *traverse.Collected, plan *topo.Plan) []xerrors.ValidationViolation {
	deferred := make(map[string]bool, len(plan.Deferred))
	for _, d := range plan.Deferred {
		deferred[d.FK.Name] = true
	}

	var violations []xerrors.ValidationViolation

	for _, tableName := range collected.Tables() {
		table, ok := graph.Table(tableName)
		if !ok {
			continue
		}
		for _, de := range graph.DirectedEdgesFrom(tableName, schema.DirectionUp) {
			if !de.Upward {
				continue
			}
			if de.FK.IsVirtual {
				continue
			}
			if deferred[de.FK.Name] {
				continue
			}
			targetTable, ok := graph.Table(de.FK.TargetTable)
			if !ok {
				continue
			}
			violations = append(violations, checkEdge(table, targetTable, de.FK, collected)...)
		}
	}
	return violations
}

func checkEdge(table, targetTable *schema.Table, fk *schema.ForeignKey, collected *traverse.Collected) []xerrors.ValidationViolation {
	var out []xerrors.ValidationViolation

	srcIdx := make([]int, len(fk.SourceColumns))
	for i, c := range fk.SourceColumns {
		idx, _ := table.ColumnIndex(c)
		srcIdx[i] = idx
	}

	for _, key := range collected.RowKeys(table.Name) {
		row, ok := collected.Row(table.Name, key)
		if !ok {
			continue
		}

		bySourceCol := make(map[string]any, len(fk.SourceColumns))
		hasNull := false
		for i, idx := range srcIdx {
			v := row[idx]
			if v == nil {
				hasNull = true
			}
			bySourceCol[fk.TargetColumns[i]] = v
		}
		if hasNull {
			continue
		}

		// Re-order the projected values into the target table's own
		// primary-key column order, matching how its RowKeys were built,
		// since a virtual FK's declared target_columns order need not
		// coincide with the target's PK declaration order.
		targetValues := make([]any, len(targetTable.PrimaryKey))
		for i, pkCol := range targetTable.PrimaryKey {
			targetValues[i] = bySourceCol[pkCol]
		}

		targetKey := schema.NewRowKey(targetValues)
		if !collected.Has(fk.TargetTable, targetKey) {
			out = append(out, xerrors.ValidationViolation{
				Table:  table.Name,
				RowKey: string(key),
				Edge:   fk.Name,
				Target: fmt.Sprintf("%s[%s]", fk.TargetTable, targetKey),
			})
		}
	}
	return out
}
