package cmd

import (
	"testing"

	"github.com/halvorsen/subsetdb/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestGraph(t *testing.T) *schema.Graph {
	t.Helper()
	g := schema.NewGraph()
	g.AddTable(&schema.Table{Name: "orders", PrimaryKey: []string{"id"}})
	g.AddTable(&schema.Table{Name: "customers", PrimaryKey: []string{"id"}})
	g.AddTable(&schema.Table{Name: "order_items", PrimaryKey: []string{"id"}})
	g.AddTable(&schema.Table{Name: "warehouses", PrimaryKey: []string{"id"}})

	g.AddEdge(&schema.ForeignKey{
		Name: "orders_customer_id_fkey", SourceTable: "orders", SourceColumns: []string{"customer_id"},
		TargetTable: "customers", TargetColumns: []string{"id"},
	})
	g.AddEdge(&schema.ForeignKey{
		Name: "order_items_order_id_fkey", SourceTable: "order_items", SourceColumns: []string{"order_id"},
		TargetTable: "orders", TargetColumns: []string{"id"},
	})
	g.AddEdge(&schema.ForeignKey{
		Name: "order_items_warehouse_id_fkey", SourceTable: "order_items", SourceColumns: []string{"warehouse_id"},
		TargetTable: "warehouses", TargetColumns: []string{"id"},
	})
	return g
}

func TestStructuralBFS_BothDirectionReachesWholeComponent(t *testing.T) {
	g := buildTestGraph(t)

	reached := structuralBFS(g, []string{"orders"}, 3, schema.DirectionBoth, map[string]bool{})

	assert.True(t, reached["orders"])
	assert.True(t, reached["customers"])
	assert.True(t, reached["order_items"])
	assert.True(t, reached["warehouses"])
}

func TestStructuralBFS_UpOnlyStopsAtParents(t *testing.T) {
	g := buildTestGraph(t)

	reached := structuralBFS(g, []string{"orders"}, 3, schema.DirectionUp, map[string]bool{})

	assert.True(t, reached["orders"])
	assert.True(t, reached["customers"])
	assert.False(t, reached["order_items"], "order_items is a child of orders, not reachable going up")
}

func TestStructuralBFS_RespectsDepthBound(t *testing.T) {
	g := buildTestGraph(t)

	reached := structuralBFS(g, []string{"order_items"}, 0, schema.DirectionBoth, map[string]bool{})

	require.Len(t, reached, 1)
	assert.True(t, reached["order_items"])
}

func TestStructuralBFS_ExcludedTableNeverReached(t *testing.T) {
	g := buildTestGraph(t)

	reached := structuralBFS(g, []string{"orders"}, 3, schema.DirectionBoth, map[string]bool{"warehouses": true})

	assert.False(t, reached["warehouses"])
	assert.True(t, reached["order_items"])
}

func TestSortedKeys(t *testing.T) {
	m := map[string]bool{"zebra": true, "apple": true, "mango": true}
	assert.Equal(t, []string{"apple", "mango", "zebra"}, sortedKeys(m))
}

func TestPlanCommandStructure(t *testing.T) {
	assert.NotNil(t, planCmd)
	assert.Equal(t, "plan", planCmd.Use)
	assert.NotNil(t, planCmd.RunE)
}
