package schema

import (
	"fmt"
	"sort"

	"github.com/elliotchance/orderedmap/v2"
)

// Direction selects which FK edges a traversal step follows from a table.
type Direction string

const (
	DirectionUp   Direction = "up"   // from child to parent
	DirectionDown Direction = "down" // from parent to child
	DirectionBoth Direction = "both"
)

// Graph is the Schema Model: every table reachable in this run, plus the
// real and virtual FK edges between them, indexed for traversal in both
// directions. It is immutable once Build returns (spec §3 invariant).
type Graph struct {
	tables *orderedmap.OrderedMap[string, *Table]
	// outEdges[table] = edges where table is the source (child) - "up" edges.
	outEdges *orderedmap.OrderedMap[string, []*ForeignKey]
	// inEdges[table] = edges where table is the target (parent) - "down" edges.
	inEdges *orderedmap.OrderedMap[string, []*ForeignKey]
	fkCols  map[string]bool // "table.column" -> true for any column in any FK
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		tables:   orderedmap.NewOrderedMap[string, *Table](),
		outEdges: orderedmap.NewOrderedMap[string, []*ForeignKey](),
		inEdges:  orderedmap.NewOrderedMap[string, []*ForeignKey](),
		fkCols:   make(map[string]bool),
	}
}

// AddTable registers a table. Tables must be added before edges that
// reference them.
func (g *Graph) AddTable(t *Table) {
	if t.ColumnsByName == nil {
		t.ColumnsByName = make(map[string]*Column, len(t.Columns))
		for i := range t.Columns {
			t.ColumnsByName[t.Columns[i].Name] = &t.Columns[i]
		}
	}
	g.tables.Set(t.Name, t)
}

// AddEdge registers a (real or virtual) FK edge. Edges out of a table are
// kept in insertion order, with real edges expected to be added before
// virtual ones so that "real edges first, then alphabetical" (spec §5) is
// achieved by inserting in that order upstream.
func (g *Graph) AddEdge(fk *ForeignKey) {
	out, _ := g.outEdges.Get(fk.SourceTable)
	g.outEdges.Set(fk.SourceTable, append(out, fk))

	in, _ := g.inEdges.Get(fk.TargetTable)
	g.inEdges.Set(fk.TargetTable, append(in, fk))

	for _, c := range fk.SourceColumns {
		g.fkCols[fk.SourceTable+"."+c] = true
	}
	for _, c := range fk.TargetColumns {
		g.fkCols[fk.TargetTable+"."+c] = true
	}
}

// Table looks up a table by name.
func (g *Graph) Table(name string) (*Table, bool) {
	return g.tables.Get(name)
}

// Tables returns all tables in insertion order.
func (g *Graph) Tables() []*Table {
	out := make([]*Table, 0, g.tables.Len())
	for el := g.tables.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value)
	}
	return out
}

// IsFKColumn reports whether table.column participates in any known edge,
// as either the child (source) or parent (target) side.
func (g *Graph) IsFKColumn(table, column string) bool {
	return g.fkCols[table+"."+column]
}

// EdgesFrom returns the edges reachable when standing on table and
// following dir: "up" edges where table is the child (toward parents),
// "down" edges where table is the parent (toward children), or both.
func (g *Graph) EdgesFrom(table string, dir Direction) []*ForeignKey {
	var out []*ForeignKey
	if dir == DirectionUp || dir == DirectionBoth {
		up, _ := g.outEdges.Get(table)
		out = append(out, up...)
	}
	if dir == DirectionDown || dir == DirectionBoth {
		down, _ := g.inEdges.Get(table)
		out = append(out, down...)
	}
	return out
}

// Other returns the table at the far end of edge fk from the perspective
// of standing on `from` (the child for an "up" step, the parent for a
// "down" step).
func (fk *ForeignKey) Other(from string) string {
	if from == fk.SourceTable {
		return fk.TargetTable
	}
	return fk.SourceTable
}

// DirectedEdge is one FK edge as seen from a specific table during
// traversal, with the direction of travel resolved.
type DirectedEdge struct {
	FK      *ForeignKey
	Upward  bool // true: table is the child, traveling to its parent
	Other   string
}

// DirectedEdgesFrom returns the candidate edges out of table for a BFS
// step, in the stable order required by spec §5: real edges before
// virtual, then lexicographic by name. A self-referencing table may
// appear as both child and parent of the same edge; both directions are
// included when dir is "both".
func (g *Graph) DirectedEdgesFrom(table string, dir Direction) []DirectedEdge {
	var out []DirectedEdge
	if dir == DirectionUp || dir == DirectionBoth {
		up, _ := g.outEdges.Get(table)
		for _, fk := range up {
			out = append(out, DirectedEdge{FK: fk, Upward: true, Other: fk.TargetTable})
		}
	}
	if dir == DirectionDown || dir == DirectionBoth {
		down, _ := g.inEdges.Get(table)
		for _, fk := range down {
			out = append(out, DirectedEdge{FK: fk, Upward: false, Other: fk.SourceTable})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FK.IsVirtual != out[j].FK.IsVirtual {
			return !out[i].FK.IsVirtual
		}
		return out[i].FK.Name < out[j].FK.Name
	})
	return out
}

// InducedSubgraph returns the edges whose both endpoints are in tableSet,
// the set of tables with at least one collected row (input to the
// Topological Sorter, spec §4.5).
func (g *Graph) InducedSubgraph(tableSet map[string]bool) []*ForeignKey {
	var out []*ForeignKey
	for el := g.outEdges.Front(); el != nil; el = el.Next() {
		for _, fk := range el.Value {
			if tableSet[fk.SourceTable] && tableSet[fk.TargetTable] {
				out = append(out, fk)
			}
		}
	}
	return out
}

// ToMermaid renders the edges among the given tables as a mermaid
// "graph LR" description, suitable for internal/mermaidascii rendering
// from the `subsetdb plan` command.
func (g *Graph) ToMermaid(tableSet map[string]bool) string {
	s := "graph LR\n"
	seen := make(map[string]bool)
	for el := g.outEdges.Front(); el != nil; el = el.Next() {
		for _, fk := range el.Value {
			if !tableSet[fk.SourceTable] || !tableSet[fk.TargetTable] {
				continue
			}
			key := fmt.Sprintf("%s->%s:%s", fk.SourceTable, fk.TargetTable, fk.Name)
			if seen[key] {
				continue
			}
			seen[key] = true
			label := fk.Name
			if fk.IsVirtual {
				label = "~" + label
			}
			s += fmt.Sprintf("  %s -->|%s| %s\n", fk.SourceTable, label, fk.TargetTable)
		}
	}
	return s
}
