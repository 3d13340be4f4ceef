// Package traverse implements the Traversal Engine: a bounded
// breadth-first walk over the Schema Model's FK graph, starting from seed
// rows, that builds the Collected Set.
package traverse

import (
	"context"

	"github.com/halvorsen/subsetdb/internal/fetch"
	"github.com/halvorsen/subsetdb/internal/logger"
	"github.com/halvorsen/subsetdb/internal/schema"
	"github.com/halvorsen/subsetdb/internal/seedspec"
	"github.com/halvorsen/subsetdb/internal/xerrors"
)

// RowSource is the subset of the Row Fetcher's contract the Traversal
// Engine depends on. Defined here so the engine can be tested against a
// fake without a database.
type RowSource interface {
	FetchSeed(ctx context.Context, table *schema.Table, sqlFragment string, params []any) ([]fetch.Row, error)
	FetchByKeys(ctx context.Context, table *schema.Table, keyColumns []string, keys []fetch.KeyTuple) ([]fetch.Row, error)
}

// Options bounds one traversal run.
type Options struct {
	MaxDepth      int
	Direction     schema.Direction
	ExcludeTables map[string]bool
}

// Engine walks graph from seed rows using rowSource to fetch rows.
type Engine struct {
	graph     *schema.Graph
	rowSource RowSource
	opts      Options
	log       *logger.Logger
}

// New creates a Traversal Engine.
func New(graph *schema.Graph, rowSource RowSource, opts Options, log *logger.Logger) *Engine {
	if opts.ExcludeTables == nil {
		opts.ExcludeTables = make(map[string]bool)
	}
	if opts.Direction == "" {
		opts.Direction = schema.DirectionBoth
	}
	if opts.MaxDepth < 0 {
		opts.MaxDepth = 0
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Engine{graph: graph, rowSource: rowSource, opts: opts, log: log}
}

type workItem struct {
	table      string
	keys       []schema.RowKey
	depth      int
	originEdge string
}

// Run executes the BFS described in spec §4.3 and returns the Collected
// Set.
func (e *Engine) Run(ctx context.Context, seeds []seedspec.SeedPredicate) (*Collected, error) {
	collected := NewCollected()
	var queue []workItem

	for _, seed := range seeds {
		item, err := e.runSeed(ctx, seed, collected)
		if err != nil {
			return nil, err
		}
		if item != nil {
			queue = append(queue, *item)
		}
	}

	for len(queue) > 0 {
		select {
		case <-ctx.Done():
			return nil, xerrors.Cancelled
		default:
		}

		item := queue[0]
		queue = queue[1:]

		next, err := e.expand(ctx, item, collected)
		if err != nil {
			return nil, err
		}
		queue = append(queue, next...)
	}

	return collected, nil
}

func (e *Engine) runSeed(ctx context.Context, seed seedspec.SeedPredicate, collected *Collected) (*workItem, error) {
	table, ok := e.graph.Table(seed.Table)
	if !ok {
		return nil, &xerrors.InvalidSeed{Seed: seed.Table, Message: "references unknown table"}
	}
	if e.opts.ExcludeTables[seed.Table] {
		return nil, &xerrors.InvalidSeed{Seed: seed.Table, Message: "table is in exclude_tables"}
	}
	if !table.HasPK() {
		return nil, &xerrors.InvalidSeed{Seed: seed.Table, Message: "table has no primary key"}
	}

	rows, err := e.rowSource.FetchSeed(ctx, table, seed.SQLFragment, seed.Parameters)
	if err != nil {
		return nil, err
	}

	var newKeys []schema.RowKey
	for _, row := range rows {
		key := rowKeyOf(table, row)
		if collected.Add(table.Name, key, row) {
			newKeys = append(newKeys, key)
		}
	}
	if len(newKeys) == 0 {
		return nil, nil
	}
	e.log.WithTable(table.Name).Debugf("seeded %d row(s)", len(newKeys))
	return &workItem{table: table.Name, keys: newKeys, depth: 0, originEdge: "seed"}, nil
}

// expand dequeues one work item: drops it past the depth bound, otherwise
// fetches and collects each candidate edge's neighbor rows and returns the
// new work items they produce.
func (e *Engine) expand(ctx context.Context, item workItem, collected *Collected) ([]workItem, error) {
	if item.depth >= e.opts.MaxDepth {
		return nil, nil
	}

	table, ok := e.graph.Table(item.table)
	if !ok {
		return nil, nil
	}

	var next []workItem
	for _, de := range e.graph.DirectedEdgesFrom(item.table, e.opts.Direction) {
		if e.opts.ExcludeTables[de.Other] {
			continue
		}
		otherTable, ok := e.graph.Table(de.Other)
		if !ok {
			continue
		}

		ownCols, keyCols := de.FK.SourceColumns, de.FK.TargetColumns
		if !de.Upward {
			ownCols, keyCols = de.FK.TargetColumns, de.FK.SourceColumns
		}

		tuples := make([]fetch.KeyTuple, 0, len(item.keys))
		for _, k := range item.keys {
			row, ok := collected.Row(item.table, k)
			if !ok {
				continue
			}
			tuples = append(tuples, projectColumns(table, row, ownCols))
		}
		if len(tuples) == 0 {
			continue
		}

		rows, err := e.rowSource.FetchByKeys(ctx, otherTable, keyCols, tuples)
		if err != nil {
			return nil, err
		}

		var newKeys []schema.RowKey
		for _, row := range rows {
			if !otherTable.HasPK() {
				// Leaf-only: collected but never traversed from (spec §3
				// "Row Key ... For tables without a PK, the tuple is the
				// full column-value tuple").
				collected.Add(otherTable.Name, schema.NewRowKey([]any(row)), row)
				continue
			}
			key := rowKeyOf(otherTable, row)
			if collected.Add(otherTable.Name, key, row) {
				newKeys = append(newKeys, key)
			}
		}
		if len(newKeys) > 0 {
			next = append(next, workItem{
				table:      otherTable.Name,
				keys:       newKeys,
				depth:      item.depth + 1,
				originEdge: de.FK.Name,
			})
			e.log.WithEdge(de.FK.Name).WithTable(otherTable.Name).Debugf("discovered %d row(s) at depth %d", len(newKeys), item.depth+1)
		}
	}
	return next, nil
}

func rowKeyOf(table *schema.Table, row fetch.Row) schema.RowKey {
	values := make([]any, len(table.PrimaryKey))
	for i, col := range table.PrimaryKey {
		if idx, ok := table.ColumnIndex(col); ok {
			values[i] = row[idx]
		}
	}
	return schema.NewRowKey(values)
}

func projectColumns(table *schema.Table, row fetch.Row, cols []string) fetch.KeyTuple {
	tuple := make(fetch.KeyTuple, len(cols))
	for i, col := range cols {
		if idx, ok := table.ColumnIndex(col); ok {
			tuple[i] = row[idx]
		}
	}
	return tuple
}
