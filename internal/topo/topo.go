// Package topo produces an insert order over the tables with collected
// rows, consistent with FK dependencies, deferring edges to break cycles
// when no acyclic order exists.
package topo

import (
	"sort"

	"github.com/halvorsen/subsetdb/internal/schema"
	"github.com/halvorsen/subsetdb/internal/xerrors"
)

// DeferredEdge is an FK edge removed from the dependency graph to break a
// cycle. The Emitter omits its source columns from the initial INSERT and
// back-fills them with UPDATE statements once every table is loaded.
type DeferredEdge struct {
	FK *schema.ForeignKey
}

// Plan is the Topological Sorter's output: the table insert order, parent
// before child, plus any edges that had to be deferred to achieve it.
type Plan struct {
	OrderedTables []string
	Deferred      []DeferredEdge
}

// RowCounter reports how many rows are collected for a table, used by the
// cycle-breaking policy's "fewest incident rows" tiebreak.
type RowCounter func(table string) int

// Sort runs Kahn's algorithm over the sub-graph induced by tables (the
// tables with at least one collected row), deferring edges per spec §4.5
// when no node has in-degree zero.
func Sort(tables []string, edges []*schema.ForeignKey, rowCount RowCounter) (*Plan, error) {
	tableSet := make(map[string]bool, len(tables))
	for _, t := range tables {
		tableSet[t] = true
	}

	// inDegree here counts, for each table, the number of remaining edges
	// where that table is the parent being depended on by an
	// un-inserted child — i.e. the dependency graph is child -> parent,
	// and a table is insertable once all of ITS dependencies (parents)
	// are already inserted. We model "ready to insert" as in-degree zero
	// in the graph oriented parent -> child (an edge child->parent
	// becomes a "parent must precede child" constraint).
	remaining := make(map[string][]*schema.ForeignKey) // child table -> edges still constraining it
	dependents := make(map[string][]*schema.ForeignKey) // parent table -> edges whose child depends on it

	for _, e := range edges {
		if !tableSet[e.SourceTable] || !tableSet[e.TargetTable] || e.SourceTable == e.TargetTable {
			continue
		}
		remaining[e.SourceTable] = append(remaining[e.SourceTable], e)
		dependents[e.TargetTable] = append(dependents[e.TargetTable], e)
	}

	pending := make(map[string]bool, len(tables))
	for _, t := range tables {
		pending[t] = true
	}

	var ordered []string
	var deferred []DeferredEdge

	for len(pending) > 0 {
		ready := readyTables(pending, remaining)
		if len(ready) == 0 {
			edge, err := pickDeferral(pending, remaining, rowCount)
			if err != nil {
				return nil, err
			}
			deferred = append(deferred, DeferredEdge{FK: edge})
			removeEdge(remaining, dependents, edge)
			continue
		}
		sort.Strings(ready)
		for _, t := range ready {
			ordered = append(ordered, t)
			delete(pending, t)
			for _, e := range dependents[t] {
				removeOne(remaining, e.SourceTable, e)
			}
		}
	}

	return &Plan{OrderedTables: ordered, Deferred: deferred}, nil
}

// readyTables returns the pending tables with no remaining constraining
// edge to an also-pending parent.
func readyTables(pending map[string]bool, remaining map[string][]*schema.ForeignKey) []string {
	var ready []string
	for t := range pending {
		if hasPendingDependency(t, pending, remaining) {
			continue
		}
		ready = append(ready, t)
	}
	return ready
}

func hasPendingDependency(t string, pending map[string]bool, remaining map[string][]*schema.ForeignKey) bool {
	for _, e := range remaining[t] {
		if pending[e.TargetTable] {
			return true
		}
	}
	return false
}

// pickDeferral implements the cycle-breaking policy: prefer a nullable
// edge; among those, fewest incident rows; ties broken by
// (source_table, edge_name) lexicographic order.
func pickDeferral(pending map[string]bool, remaining map[string][]*schema.ForeignKey, rowCount RowCounter) (*schema.ForeignKey, error) {
	var candidates []*schema.ForeignKey
	for t := range pending {
		for _, e := range remaining[t] {
			if pending[e.TargetTable] {
				candidates = append(candidates, e)
			}
		}
	}

	var nullable []*schema.ForeignKey
	for _, e := range candidates {
		if e.Nullable {
			nullable = append(nullable, e)
		}
	}
	if len(nullable) == 0 {
		return nil, &xerrors.UnbreakableCycleError{CyclePath: cyclePath(pending, remaining)}
	}

	sort.Slice(nullable, func(i, j int) bool {
		ci, cj := incidentRows(nullable[i], rowCount), incidentRows(nullable[j], rowCount)
		if ci != cj {
			return ci < cj
		}
		if nullable[i].SourceTable != nullable[j].SourceTable {
			return nullable[i].SourceTable < nullable[j].SourceTable
		}
		return nullable[i].Name < nullable[j].Name
	})
	return nullable[0], nil
}

func incidentRows(fk *schema.ForeignKey, rowCount RowCounter) int {
	if rowCount == nil {
		return 0
	}
	return rowCount(fk.SourceTable)
}

func removeEdge(remaining, dependents map[string][]*schema.ForeignKey, target *schema.ForeignKey) {
	removeOne(remaining, target.SourceTable, target)
	removeOne(dependents, target.TargetTable, target)
}

func removeOne(m map[string][]*schema.ForeignKey, key string, target *schema.ForeignKey) {
	edges := m[key]
	for i, e := range edges {
		if e == target {
			m[key] = append(edges[:i], edges[i+1:]...)
			return
		}
	}
}

// cyclePath renders a best-effort cycle trace among the still-pending
// tables, for UnbreakableCycleError diagnostics.
func cyclePath(pending map[string]bool, remaining map[string][]*schema.ForeignKey) []string {
	visited := make(map[string]bool)
	var path []string
	var start string
	for t := range pending {
		start = t
		break
	}
	cur := start
	for {
		if visited[cur] {
			path = append(path, cur)
			break
		}
		visited[cur] = true
		path = append(path, cur)
		next := ""
		for _, e := range remaining[cur] {
			if pending[e.TargetTable] {
				next = e.TargetTable
				break
			}
		}
		if next == "" {
			break
		}
		cur = next
	}
	return path
}
