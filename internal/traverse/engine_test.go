package traverse

import (
	"context"
	"testing"

	"github.com/halvorsen/subsetdb/internal/fetch"
	"github.com/halvorsen/subsetdb/internal/schema"
	"github.com/halvorsen/subsetdb/internal/seedspec"
	"github.com/halvorsen/subsetdb/internal/xerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource answers FetchSeed/FetchByKeys from in-memory tables, keyed by
// table name, so the engine's BFS logic can be exercised without a
// database.
type fakeSource struct {
	rows map[string][]fetch.Row
}

func (f *fakeSource) FetchSeed(ctx context.Context, table *schema.Table, sqlFragment string, params []any) ([]fetch.Row, error) {
	return f.rows[table.Name], nil
}

func (f *fakeSource) FetchByKeys(ctx context.Context, table *schema.Table, keyColumns []string, keys []fetch.KeyTuple) ([]fetch.Row, error) {
	idxs := make([]int, len(keyColumns))
	for i, c := range keyColumns {
		idx, _ := table.ColumnIndex(c)
		idxs[i] = idx
	}

	wanted := make(map[schema.RowKey]bool, len(keys))
	for _, k := range keys {
		hasNull := false
		for _, v := range k {
			if v == nil {
				hasNull = true
			}
		}
		if hasNull {
			continue
		}
		wanted[schema.NewRowKey([]any(k))] = true
	}

	var out []fetch.Row
	for _, row := range f.rows[table.Name] {
		vals := make([]any, len(idxs))
		for i, idx := range idxs {
			vals[i] = row[idx]
		}
		if wanted[schema.NewRowKey(vals)] {
			out = append(out, row)
		}
	}
	return out, nil
}

func newTable(name string, pk []string, cols ...string) *schema.Table {
	t := &schema.Table{Name: name, PrimaryKey: pk}
	for _, c := range cols {
		t.Columns = append(t.Columns, schema.Column{Name: c})
	}
	return t
}

func buildChainGraph() *schema.Graph {
	g := schema.NewGraph()
	g.AddTable(newTable("customers", []string{"id"}, "id", "name"))
	g.AddTable(newTable("orders", []string{"id"}, "id", "customer_id", "total"))
	g.AddTable(newTable("order_items", []string{"id"}, "id", "order_id", "sku"))

	g.AddEdge(&schema.ForeignKey{
		Name: "orders_customer_id_fkey", SourceTable: "orders", SourceColumns: []string{"customer_id"},
		TargetTable: "customers", TargetColumns: []string{"id"},
	})
	g.AddEdge(&schema.ForeignKey{
		Name: "order_items_order_id_fkey", SourceTable: "order_items", SourceColumns: []string{"order_id"},
		TargetTable: "orders", TargetColumns: []string{"id"},
	})
	return g
}

func TestEngine_DownwardTraversalFromSeed(t *testing.T) {
	g := buildChainGraph()
	source := &fakeSource{rows: map[string][]fetch.Row{
		"orders":      {{int64(1), int64(100), 9.99}},
		"order_items": {{int64(10), int64(1), "SKU-1"}, {int64(11), int64(1), "SKU-2"}},
	}}
	e := New(g, source, Options{MaxDepth: 3, Direction: schema.DirectionDown}, nil)

	collected, err := e.Run(context.Background(), []seedspec.SeedPredicate{{Table: "orders", SQLFragment: "id = $1", Parameters: []any{1}}})
	require.NoError(t, err)
	// The seed order plus its two order_items; a "down" traversal from
	// orders follows order_items -> orders but never orders -> customers.
	assert.Equal(t, 3, collected.Count())
	assert.ElementsMatch(t, []string{"orders", "order_items"}, collected.Tables())
	assert.Len(t, collected.RowKeys("order_items"), 2)
}

func TestEngine_UpwardTraversalFromSeed(t *testing.T) {
	g := buildChainGraph()
	source := &fakeSource{rows: map[string][]fetch.Row{
		"orders":    {{int64(1), int64(100), 9.99}},
		"customers": {{int64(100), "Alice"}},
	}}
	e := New(g, source, Options{MaxDepth: 3, Direction: schema.DirectionUp}, nil)

	collected, err := e.Run(context.Background(), []seedspec.SeedPredicate{{Table: "orders", SQLFragment: "id = $1", Parameters: []any{1}}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"orders", "customers"}, collected.Tables())
}

func TestEngine_BothDirectionsReachesEntireChain(t *testing.T) {
	g := buildChainGraph()
	source := &fakeSource{rows: map[string][]fetch.Row{
		"orders":      {{int64(1), int64(100), 9.99}},
		"customers":   {{int64(100), "Alice"}},
		"order_items": {{int64(10), int64(1), "SKU-1"}},
	}}
	e := New(g, source, Options{MaxDepth: 3, Direction: schema.DirectionBoth}, nil)

	collected, err := e.Run(context.Background(), []seedspec.SeedPredicate{{Table: "orders", SQLFragment: "id = $1", Parameters: []any{1}}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"orders", "customers", "order_items"}, collected.Tables())
}

func TestEngine_DepthBoundStopsTraversal(t *testing.T) {
	g := buildChainGraph()
	source := &fakeSource{rows: map[string][]fetch.Row{
		"orders":      {{int64(1), int64(100), 9.99}},
		"order_items": {{int64(10), int64(1), "SKU-1"}},
	}}
	e := New(g, source, Options{MaxDepth: 0, Direction: schema.DirectionDown}, nil)

	collected, err := e.Run(context.Background(), []seedspec.SeedPredicate{{Table: "orders", SQLFragment: "id = $1", Parameters: []any{1}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, collected.Tables())
}

func TestEngine_ExcludedTableNeverEntered(t *testing.T) {
	g := buildChainGraph()
	source := &fakeSource{rows: map[string][]fetch.Row{
		"orders":      {{int64(1), int64(100), 9.99}},
		"order_items": {{int64(10), int64(1), "SKU-1"}},
	}}
	e := New(g, source, Options{MaxDepth: 3, Direction: schema.DirectionDown, ExcludeTables: map[string]bool{"order_items": true}}, nil)

	collected, err := e.Run(context.Background(), []seedspec.SeedPredicate{{Table: "orders", SQLFragment: "id = $1", Parameters: []any{1}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, collected.Tables())
}

func TestEngine_SeedOnExcludedTableIsInvalid(t *testing.T) {
	g := buildChainGraph()
	source := &fakeSource{}
	e := New(g, source, Options{ExcludeTables: map[string]bool{"orders": true}}, nil)

	_, err := e.Run(context.Background(), []seedspec.SeedPredicate{{Table: "orders", SQLFragment: "id = $1", Parameters: []any{1}}})
	require.Error(t, err)
	var invalidSeed *xerrors.InvalidSeed
	assert.ErrorAs(t, err, &invalidSeed)
}

func TestEngine_SeedOnUnknownTableIsInvalid(t *testing.T) {
	g := buildChainGraph()
	e := New(g, &fakeSource{}, Options{}, nil)

	_, err := e.Run(context.Background(), []seedspec.SeedPredicate{{Table: "nonexistent", SQLFragment: "id = $1", Parameters: []any{1}}})
	require.Error(t, err)
	var invalidSeed *xerrors.InvalidSeed
	assert.ErrorAs(t, err, &invalidSeed)
}

func TestEngine_SelfReferencingTableTerminatesBFS(t *testing.T) {
	g := schema.NewGraph()
	g.AddTable(newTable("categories", []string{"id"}, "id", "parent_id", "name"))
	g.AddEdge(&schema.ForeignKey{
		Name: "categories_parent_id_fkey", SourceTable: "categories", SourceColumns: []string{"parent_id"},
		TargetTable: "categories", TargetColumns: []string{"id"}, Nullable: true,
	})

	source := &fakeSource{rows: map[string][]fetch.Row{
		"categories": {
			{int64(1), nil, "root"},
			{int64(2), int64(1), "child"},
			{int64(3), int64(2), "grandchild"},
		},
	}}
	e := New(g, source, Options{MaxDepth: 10, Direction: schema.DirectionBoth}, nil)

	collected, err := e.Run(context.Background(), []seedspec.SeedPredicate{{Table: "categories", SQLFragment: "id = $1", Parameters: []any{3}}})
	require.NoError(t, err)
	// BFS must terminate (no infinite loop) and collect all reachable rows
	// exactly once each.
	assert.Len(t, collected.RowKeys("categories"), 3)
}

func TestEngine_CompositeKeyEdge(t *testing.T) {
	g := schema.NewGraph()
	g.AddTable(newTable("warehouses", []string{"region", "code"}, "region", "code", "name"))
	g.AddTable(newTable("stock", []string{"id"}, "id", "warehouse_region", "warehouse_code", "qty"))
	g.AddEdge(&schema.ForeignKey{
		Name:          "stock_warehouse_fkey",
		SourceTable:   "stock",
		SourceColumns: []string{"warehouse_region", "warehouse_code"},
		TargetTable:   "warehouses",
		TargetColumns: []string{"region", "code"},
	})

	source := &fakeSource{rows: map[string][]fetch.Row{
		"stock":       {{int64(1), "west", "W1", 50}},
		"warehouses":  {{"west", "W1", "West One"}},
	}}
	e := New(g, source, Options{MaxDepth: 3, Direction: schema.DirectionUp}, nil)

	collected, err := e.Run(context.Background(), []seedspec.SeedPredicate{{Table: "stock", SQLFragment: "id = $1", Parameters: []any{1}}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"stock", "warehouses"}, collected.Tables())
}

func TestEngine_NullFKValueDoesNotTraverse(t *testing.T) {
	g := buildChainGraph()
	source := &fakeSource{rows: map[string][]fetch.Row{
		"orders": {{int64(1), nil, 9.99}},
	}}
	e := New(g, source, Options{MaxDepth: 3, Direction: schema.DirectionUp}, nil)

	collected, err := e.Run(context.Background(), []seedspec.SeedPredicate{{Table: "orders", SQLFragment: "id = $1", Parameters: []any{1}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, collected.Tables())
}

func TestEngine_TableWithoutPKIsLeafOnly(t *testing.T) {
	g := schema.NewGraph()
	g.AddTable(newTable("orders", []string{"id"}, "id", "total"))
	auditTable := newTable("order_audit_log", nil, "order_id", "note")
	g.AddTable(auditTable)
	g.AddEdge(&schema.ForeignKey{
		Name: "order_audit_log_order_id_fkey", SourceTable: "order_audit_log", SourceColumns: []string{"order_id"},
		TargetTable: "orders", TargetColumns: []string{"id"},
	})

	source := &fakeSource{rows: map[string][]fetch.Row{
		"orders":          {{int64(1), 9.99}},
		"order_audit_log": {{int64(1), "created"}},
	}}
	e := New(g, source, Options{MaxDepth: 3, Direction: schema.DirectionDown}, nil)

	collected, err := e.Run(context.Background(), []seedspec.SeedPredicate{{Table: "orders", SQLFragment: "id = $1", Parameters: []any{1}}})
	require.NoError(t, err)
	assert.Contains(t, collected.Tables(), "order_audit_log")
	assert.Len(t, collected.RowKeys("order_audit_log"), 1)
}

func TestEngine_ContextCancellationStopsRun(t *testing.T) {
	g := buildChainGraph()
	source := &fakeSource{rows: map[string][]fetch.Row{
		"orders":      {{int64(1), int64(100), 9.99}},
		"order_items": {{int64(10), int64(1), "SKU-1"}},
	}}
	e := New(g, source, Options{MaxDepth: 3, Direction: schema.DirectionDown}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Run(ctx, []seedspec.SeedPredicate{{Table: "orders", SQLFragment: "id = $1", Parameters: []any{1}}})
	// Seeds are fetched first; the cancelled context is then observed
	// before the seed's work item is expanded.
	assert.ErrorIs(t, err, xerrors.Cancelled)
}
