// Package introspect builds a schema.Graph by querying a PostgreSQL
// database's catalog, then merges in user-declared virtual foreign keys
// and sensitivity tags.
package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/halvorsen/subsetdb/internal/config"
	"github.com/halvorsen/subsetdb/internal/schema"
	"github.com/halvorsen/subsetdb/internal/xerrors"
)

// Introspector queries one PostgreSQL connection's catalog and assembles
// the Schema Model.
type Introspector struct {
	db          *sql.DB
	schemaName  string
	dialectName string
}

// New creates an Introspector for the given connection. dialectName is the
// advertised driver dialect (e.g. "postgres"); anything other than
// "postgres" is rejected with UnsupportedDialect, since the core only
// understands PostgreSQL catalogs.
func New(db *sql.DB, pgSchema, dialectName string) (*Introspector, error) {
	if dialectName != "postgres" {
		return nil, &xerrors.UnsupportedDialect{Dialect: dialectName}
	}
	if pgSchema == "" {
		pgSchema = "public"
	}
	return &Introspector{db: db, schemaName: pgSchema, dialectName: dialectName}, nil
}

// Build introspects all base tables and real foreign keys in the schema,
// then merges in the virtual foreign keys declared in vfkConfigs.
func (in *Introspector) Build(ctx context.Context, vfkConfigs []config.VirtualFKConfig) (*schema.Graph, error) {
	g := schema.NewGraph()

	tableNames, err := in.listTables(ctx)
	if err != nil {
		return nil, &xerrors.SchemaError{Message: fmt.Sprintf("listing tables: %v", err)}
	}

	for _, name := range tableNames {
		t, err := in.introspectTable(ctx, name)
		if err != nil {
			return nil, &xerrors.SchemaError{Table: name, Message: err.Error()}
		}
		applySensitivityDefaults(t)
		g.AddTable(t)
	}

	realFKs, err := in.listForeignKeys(ctx, tableNames)
	if err != nil {
		return nil, &xerrors.SchemaError{Message: fmt.Sprintf("listing foreign keys: %v", err)}
	}
	for _, fk := range realFKs {
		g.AddEdge(fk)
	}

	for _, vfk := range vfkConfigs {
		fk, err := in.resolveVirtualFK(g, vfk)
		if err != nil {
			return nil, err
		}
		g.AddEdge(fk)
	}

	return g, nil
}

func (in *Introspector) listTables(ctx context.Context) ([]string, error) {
	rows, err := in.db.QueryContext(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`, in.schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (in *Introspector) introspectTable(ctx context.Context, name string) (*schema.Table, error) {
	cols, err := in.introspectColumns(ctx, name)
	if err != nil {
		return nil, err
	}
	pk, err := in.introspectPrimaryKey(ctx, name)
	if err != nil {
		return nil, err
	}
	return &schema.Table{Name: name, Columns: cols, PrimaryKey: pk}, nil
}

func (in *Introspector) introspectColumns(ctx context.Context, table string) ([]schema.Column, error) {
	rows, err := in.db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, in.schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("introspecting columns for %s: %w", table, err)
	}
	defer rows.Close()

	var cols []schema.Column
	for rows.Next() {
		var name, dataType, isNullable string
		if err := rows.Scan(&name, &dataType, &isNullable); err != nil {
			return nil, fmt.Errorf("scanning column for %s: %w", table, err)
		}
		cols = append(cols, schema.Column{
			Name:     name,
			SQLType:  dataType,
			Nullable: isNullable == "YES",
		})
	}
	return cols, rows.Err()
}

// introspectPrimaryKey returns the PK columns in their key_column_usage
// ordinal order (needed for composite keys, spec §3).
func (in *Introspector) introspectPrimaryKey(ctx context.Context, table string) ([]string, error) {
	rows, err := in.db.QueryContext(ctx, `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		WHERE tc.table_schema = $1 AND tc.table_name = $2
		  AND tc.constraint_type = 'PRIMARY KEY'
		ORDER BY kcu.ordinal_position`, in.schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("introspecting primary key for %s: %w", table, err)
	}
	defer rows.Close()

	var pk []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, fmt.Errorf("scanning primary key column for %s: %w", table, err)
		}
		pk = append(pk, col)
	}
	return pk, rows.Err()
}

// listForeignKeys returns every real FK constraint among tableNames,
// grouping multi-column constraints into a single ForeignKey with ordinal
// column order preserved.
func (in *Introspector) listForeignKeys(ctx context.Context, tableNames []string) ([]*schema.ForeignKey, error) {
	rows, err := in.db.QueryContext(ctx, `
		SELECT
		  tc.constraint_name,
		  tc.table_name AS source_table,
		  kcu.column_name AS source_column,
		  kcu.ordinal_position,
		  ccu.table_name AS target_table,
		  ccu.column_name AS target_column,
		  EXISTS (
		    SELECT 1 FROM information_schema.columns c
		    WHERE c.table_schema = tc.table_schema AND c.table_name = tc.table_name
		      AND c.column_name = kcu.column_name AND c.is_nullable = 'YES'
		  ) AS nullable
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
		WHERE tc.table_schema = $1 AND tc.constraint_type = 'FOREIGN KEY'
		ORDER BY tc.constraint_name, kcu.ordinal_position`, in.schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type partial struct {
		sourceTable, targetTable string
		sourceCols, targetCols   []string
		nullable                 bool
	}
	byName := make(map[string]*partial)
	var order []string

	for rows.Next() {
		var name, srcTable, srcCol, tgtTable, tgtCol string
		var ordinal int
		var nullable bool
		if err := rows.Scan(&name, &srcTable, &srcCol, &ordinal, &tgtTable, &tgtCol, &nullable); err != nil {
			return nil, err
		}
		p, ok := byName[name]
		if !ok {
			p = &partial{sourceTable: srcTable, targetTable: tgtTable, nullable: nullable}
			byName[name] = p
			order = append(order, name)
		}
		p.sourceCols = append(p.sourceCols, srcCol)
		p.targetCols = append(p.targetCols, tgtCol)
		p.nullable = p.nullable || nullable
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []*schema.ForeignKey
	for _, name := range order {
		p := byName[name]
		out = append(out, &schema.ForeignKey{
			Name:          name,
			SourceTable:   p.sourceTable,
			SourceColumns: p.sourceCols,
			TargetTable:   p.targetTable,
			TargetColumns: p.targetCols,
			Nullable:      p.nullable,
		})
	}
	return out, nil
}

// resolveVirtualFK validates a VirtualFKConfig against the already-built
// graph (table/column existence, arity match) and produces a
// schema.ForeignKey. If target_columns is omitted it defaults to the
// target table's primary key, per spec §3.
func (in *Introspector) resolveVirtualFK(g *schema.Graph, vfk config.VirtualFKConfig) (*schema.ForeignKey, error) {
	src, ok := g.Table(vfk.SourceTable)
	if !ok {
		return nil, &xerrors.SchemaError{Table: vfk.SourceTable, Message: "virtual foreign key references unknown source table"}
	}
	for _, c := range vfk.SourceColumns {
		if _, ok := src.Column(c); !ok {
			return nil, &xerrors.SchemaError{Table: vfk.SourceTable, Column: c, Message: "virtual foreign key references unknown source column"}
		}
	}

	tgt, ok := g.Table(vfk.TargetTable)
	if !ok {
		return nil, &xerrors.SchemaError{Table: vfk.TargetTable, Message: "virtual foreign key references unknown target table"}
	}

	targetCols := vfk.TargetColumns
	if len(targetCols) == 0 {
		targetCols = tgt.PrimaryKey
	}
	if len(targetCols) != len(vfk.SourceColumns) {
		return nil, &xerrors.SchemaError{
			Table:   vfk.SourceTable,
			Message: fmt.Sprintf("virtual foreign key %q: source/target column arity mismatch (%d vs %d)", vfk.Name, len(vfk.SourceColumns), len(targetCols)),
		}
	}
	for _, c := range targetCols {
		if _, ok := tgt.Column(c); !ok {
			return nil, &xerrors.SchemaError{Table: vfk.TargetTable, Column: c, Message: "virtual foreign key references unknown target column"}
		}
	}

	name := vfk.Name
	if name == "" {
		name = fmt.Sprintf("virtual_%s_%s", vfk.SourceTable, vfk.TargetTable)
	}

	return &schema.ForeignKey{
		Name:          name,
		SourceTable:   vfk.SourceTable,
		SourceColumns: vfk.SourceColumns,
		TargetTable:   vfk.TargetTable,
		TargetColumns: targetCols,
		Nullable:      vfk.Nullable,
		IsVirtual:     true,
	}, nil
}

// sortedTableNames returns the names of g's tables in lexicographic order.
func sortedTableNames(g *schema.Graph) []string {
	names := make([]string, 0)
	for _, t := range g.Tables() {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}
