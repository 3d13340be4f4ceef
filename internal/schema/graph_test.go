package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestGraph() *Graph {
	g := NewGraph()
	g.AddTable(&Table{Name: "customers", PrimaryKey: []string{"id"}, Columns: []Column{{Name: "id"}, {Name: "name"}}})
	g.AddTable(&Table{Name: "orders", PrimaryKey: []string{"id"}, Columns: []Column{{Name: "id"}, {Name: "customer_id"}}})
	g.AddTable(&Table{Name: "order_items", PrimaryKey: []string{"id"}, Columns: []Column{{Name: "id"}, {Name: "order_id"}}})

	g.AddEdge(&ForeignKey{Name: "orders_customer_id_fkey", SourceTable: "orders", SourceColumns: []string{"customer_id"}, TargetTable: "customers", TargetColumns: []string{"id"}})
	g.AddEdge(&ForeignKey{Name: "order_items_order_id_fkey", SourceTable: "order_items", SourceColumns: []string{"order_id"}, TargetTable: "orders", TargetColumns: []string{"id"}})
	return g
}

func TestAddTable_PopulatesColumnsByName(t *testing.T) {
	g := NewGraph()
	g.AddTable(&Table{Name: "orders", Columns: []Column{{Name: "id"}, {Name: "total"}}})

	tbl, ok := g.Table("orders")
	require.True(t, ok)
	col, ok := tbl.Column("total")
	require.True(t, ok)
	assert.Equal(t, "total", col.Name)
}

func TestTable_NotFound(t *testing.T) {
	g := NewGraph()
	_, ok := g.Table("ghost")
	assert.False(t, ok)
}

func TestTables_ReturnsInsertionOrder(t *testing.T) {
	g := buildTestGraph()
	var names []string
	for _, tbl := range g.Tables() {
		names = append(names, tbl.Name)
	}
	assert.Equal(t, []string{"customers", "orders", "order_items"}, names)
}

func TestIsFKColumn(t *testing.T) {
	g := buildTestGraph()
	assert.True(t, g.IsFKColumn("orders", "customer_id"))
	assert.True(t, g.IsFKColumn("customers", "id"))
	assert.False(t, g.IsFKColumn("customers", "name"))
}

func TestEdgesFrom_Up(t *testing.T) {
	g := buildTestGraph()
	edges := g.EdgesFrom("orders", DirectionUp)
	require.Len(t, edges, 1)
	assert.Equal(t, "orders_customer_id_fkey", edges[0].Name)
}

func TestEdgesFrom_Down(t *testing.T) {
	g := buildTestGraph()
	edges := g.EdgesFrom("orders", DirectionDown)
	require.Len(t, edges, 1)
	assert.Equal(t, "order_items_order_id_fkey", edges[0].Name)
}

func TestForeignKey_Other(t *testing.T) {
	fk := &ForeignKey{SourceTable: "orders", TargetTable: "customers"}
	assert.Equal(t, "customers", fk.Other("orders"))
	assert.Equal(t, "orders", fk.Other("customers"))
}

func TestDirectedEdgesFrom_BothDirectionsIncludeUpwardFlag(t *testing.T) {
	g := buildTestGraph()
	edges := g.DirectedEdgesFrom("orders", DirectionBoth)
	require.Len(t, edges, 2)

	byName := make(map[string]DirectedEdge)
	for _, e := range edges {
		byName[e.FK.Name] = e
	}
	assert.True(t, byName["orders_customer_id_fkey"].Upward)
	assert.Equal(t, "customers", byName["orders_customer_id_fkey"].Other)
	assert.False(t, byName["order_items_order_id_fkey"].Upward)
	assert.Equal(t, "order_items", byName["order_items_order_id_fkey"].Other)
}

func TestDirectedEdgesFrom_RealBeforeVirtualThenLexicographic(t *testing.T) {
	g := NewGraph()
	g.AddTable(&Table{Name: "a", Columns: []Column{{Name: "b_id"}, {Name: "c_id"}}})
	g.AddTable(&Table{Name: "b", Columns: []Column{{Name: "id"}}})
	g.AddTable(&Table{Name: "c", Columns: []Column{{Name: "id"}}})

	g.AddEdge(&ForeignKey{Name: "zzz_virtual", SourceTable: "a", SourceColumns: []string{"c_id"}, TargetTable: "c", TargetColumns: []string{"id"}, IsVirtual: true})
	g.AddEdge(&ForeignKey{Name: "aaa_real", SourceTable: "a", SourceColumns: []string{"b_id"}, TargetTable: "b", TargetColumns: []string{"id"}})

	edges := g.DirectedEdgesFrom("a", DirectionUp)
	require.Len(t, edges, 2)
	assert.Equal(t, "aaa_real", edges[0].FK.Name)
	assert.Equal(t, "zzz_virtual", edges[1].FK.Name)
}

func TestInducedSubgraph_OnlyBothEndpointsInSet(t *testing.T) {
	g := buildTestGraph()
	tableSet := map[string]bool{"orders": true, "customers": true}

	edges := g.InducedSubgraph(tableSet)
	require.Len(t, edges, 1)
	assert.Equal(t, "orders_customer_id_fkey", edges[0].Name)
}

func TestToMermaid_RendersOnlyIncludedEdges(t *testing.T) {
	g := buildTestGraph()
	out := g.ToMermaid(map[string]bool{"orders": true, "customers": true})
	assert.Contains(t, out, "graph LR")
	assert.Contains(t, out, "orders -->")
	assert.NotContains(t, out, "order_items -->")
}

func TestToMermaid_MarksVirtualEdges(t *testing.T) {
	g := NewGraph()
	g.AddTable(&Table{Name: "comments", Columns: []Column{{Name: "post_id"}}})
	g.AddTable(&Table{Name: "posts", Columns: []Column{{Name: "id"}}})
	g.AddEdge(&ForeignKey{Name: "virtual_fkey", SourceTable: "comments", SourceColumns: []string{"post_id"}, TargetTable: "posts", TargetColumns: []string{"id"}, IsVirtual: true})

	out := g.ToMermaid(map[string]bool{"comments": true, "posts": true})
	assert.Contains(t, out, "~virtual_fkey")
}

func TestTable_HasPK(t *testing.T) {
	withPK := &Table{PrimaryKey: []string{"id"}}
	withoutPK := &Table{}
	assert.True(t, withPK.HasPK())
	assert.False(t, withoutPK.HasPK())
}

func TestTable_ColumnIndex(t *testing.T) {
	tbl := &Table{Columns: []Column{{Name: "id"}, {Name: "total"}}}
	idx, ok := tbl.ColumnIndex("total")
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	_, ok = tbl.ColumnIndex("ghost")
	assert.False(t, ok)
}

func TestNewRowKey_DifferentTuplesProduceDifferentKeys(t *testing.T) {
	k1 := NewRowKey([]any{int64(1), "a"})
	k2 := NewRowKey([]any{int64(1), "b"})
	assert.NotEqual(t, k1, k2)
}

func TestNewRowKey_NilHandledDistinctlyFromEmptyString(t *testing.T) {
	k1 := NewRowKey([]any{nil})
	k2 := NewRowKey([]any{""})
	assert.NotEqual(t, k1, k2)
}

func TestNewRowKey_EqualTuplesProduceEqualKeys(t *testing.T) {
	k1 := NewRowKey([]any{int64(7), "x"})
	k2 := NewRowKey([]any{int64(7), "x"})
	assert.Equal(t, k1, k2)
}
