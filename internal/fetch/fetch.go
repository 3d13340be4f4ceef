// Package fetch executes the set-based SELECTs the Traversal Engine
// produces, in buffered (materialize) or streaming (server-side cursor,
// chunked) mode.
package fetch

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/halvorsen/subsetdb/internal/dialect"
	"github.com/halvorsen/subsetdb/internal/logger"
	"github.com/halvorsen/subsetdb/internal/schema"
	"github.com/halvorsen/subsetdb/internal/xerrors"
)

// Row is one fetched row's column values, in the same order as the
// owning Table's Columns.
type Row []any

// KeyTuple is an ordered tuple of column values identifying one row, or
// one projected FK reference, in the order of whatever key-column list it
// was built against.
type KeyTuple []any

// HasNull reports whether any component of the tuple is nil. Per spec
// §4.4, key tuples with a null component never match SQL IN and are
// dropped from the frontier before a query is issued.
func (k KeyTuple) HasNull() bool {
	for _, v := range k {
		if v == nil {
			return true
		}
	}
	return false
}

// Options configures one Fetcher.
type Options struct {
	Dialect        dialect.Dialect
	BatchSize      int // IN-list chunk size; spec's "implementation-defined ceiling"
	StreamEnabled  bool
	StreamThreshold int // row-count estimate at/above which streaming is used
	ChunkSize      int // streaming fetch chunk size
	Logger         *logger.Logger // optional; when set, batch/chunk fetches are logged
}

// DefaultOptions mirrors the spec's documented defaults.
func DefaultOptions() Options {
	return Options{
		Dialect:         dialect.Postgres,
		BatchSize:       1000,
		StreamEnabled:   false,
		StreamThreshold: 50000,
		ChunkSize:       5000,
	}
}

// Fetcher runs set-based SELECTs against one *sql.DB connection.
type Fetcher struct {
	db   *sql.DB
	opts Options
}

// New creates a Fetcher bound to db.
func New(db *sql.DB, opts Options) *Fetcher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 5000
	}
	if opts.Dialect == nil {
		opts.Dialect = dialect.Postgres
	}
	return &Fetcher{db: db, opts: opts}
}

// FetchSeed executes one seed predicate's WHERE fragment against table and
// returns every matching row, fully materialized.
func (f *Fetcher) FetchSeed(ctx context.Context, table *schema.Table, sqlFragment string, params []any) ([]Row, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE (%s)",
		f.columnList(table), f.opts.Dialect.QuoteIdentifier(table.Name), sqlFragment)

	rows, err := f.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, &xerrors.FetchError{Table: table.Name, SQL: query, Err: err}
	}
	defer rows.Close()

	out, err := scanAll(rows, len(table.Columns))
	if err != nil {
		return nil, &xerrors.FetchError{Table: table.Name, SQL: query, Err: err}
	}
	return out, nil
}

// FetchByKeys returns every row of table whose keyColumns tuple is in keys,
// chunking the IN-list at opts.BatchSize and unioning the results. Key
// tuples containing a null component are dropped before querying (spec
// §4.4 "Null handling").
func (f *Fetcher) FetchByKeys(ctx context.Context, table *schema.Table, keyColumns []string, keys []KeyTuple) ([]Row, error) {
	clean := make([]KeyTuple, 0, len(keys))
	for _, k := range keys {
		if !k.HasNull() {
			clean = append(clean, k)
		}
	}
	if len(clean) == 0 {
		return nil, nil
	}

	var out []Row
	batchNum := 0
	for start := 0; start < len(clean); start += f.opts.BatchSize {
		end := start + f.opts.BatchSize
		if end > len(clean) {
			end = len(clean)
		}
		batchNum++
		f.logBatch(table.Name, batchNum, end-start)
		batch, err := f.fetchKeyBatch(ctx, table, keyColumns, clean[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

// logBatch records one IN-list chunk or cursor fetch against table, when
// the Fetcher was given a Logger; it is a no-op otherwise.
func (f *Fetcher) logBatch(table string, batchNum, size int) {
	if f.opts.Logger == nil {
		return
	}
	f.opts.Logger.WithTable(table).WithBatch(batchNum).Debugf("fetching %d key(s)", size)
}

func (f *Fetcher) fetchKeyBatch(ctx context.Context, table *schema.Table, keyColumns []string, keys []KeyTuple) ([]Row, error) {
	query, params := f.buildKeyBatchQuery(table, keyColumns, keys)

	rows, err := f.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, &xerrors.FetchError{Table: table.Name, SQL: query, Err: err}
	}
	defer rows.Close()

	out, err := scanAll(rows, len(table.Columns))
	if err != nil {
		return nil, &xerrors.FetchError{Table: table.Name, SQL: query, Err: err}
	}
	return out, nil
}

// buildKeyBatchQuery renders "WHERE (a, b) IN (($1,$2), ($3,$4), ...)" for
// composite keys, or "WHERE a IN ($1, $2, ...)" for single-column keys.
func (f *Fetcher) buildKeyBatchQuery(table *schema.Table, keyColumns []string, keys []KeyTuple) (string, []any) {
	var params []any
	placeholder := 1

	quotedCols := make([]string, len(keyColumns))
	for i, c := range keyColumns {
		quotedCols[i] = f.opts.Dialect.QuoteIdentifier(c)
	}

	var tuples []string
	for _, k := range keys {
		ph := make([]string, len(k))
		for i, v := range k {
			ph[i] = fmt.Sprintf("$%d", placeholder)
			placeholder++
			params = append(params, v)
		}
		if len(k) == 1 {
			tuples = append(tuples, ph[0])
		} else {
			tuples = append(tuples, "("+strings.Join(ph, ", ")+")")
		}
	}

	var whereExpr string
	if len(keyColumns) == 1 {
		whereExpr = fmt.Sprintf("%s IN (%s)", quotedCols[0], strings.Join(tuples, ", "))
	} else {
		whereExpr = fmt.Sprintf("(%s) IN (%s)", strings.Join(quotedCols, ", "), strings.Join(tuples, ", "))
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		f.columnList(table), f.opts.Dialect.QuoteIdentifier(table.Name), whereExpr)
	return query, params
}

// ShouldStream decides buffered vs streaming mode for an estimated result
// count, per spec §4.4.
func (f *Fetcher) ShouldStream(estimatedCount int) bool {
	return f.opts.StreamEnabled || estimatedCount >= f.opts.StreamThreshold
}

// EstimateRowCount asks Postgres's planner for an approximate row count for
// table, used to decide buffered vs streaming mode without a full COUNT(*)
// scan.
func (f *Fetcher) EstimateRowCount(ctx context.Context, table string) (int64, error) {
	var estimate sql.NullInt64
	err := f.db.QueryRowContext(ctx, `
		SELECT reltuples::bigint FROM pg_class WHERE relname = $1`, table).Scan(&estimate)
	if err != nil {
		return 0, &xerrors.FetchError{Table: table, SQL: "SELECT reltuples FROM pg_class", Err: err}
	}
	if !estimate.Valid || estimate.Int64 < 0 {
		return 0, nil
	}
	return estimate.Int64, nil
}

// StreamByKeys opens a server-side cursor selecting table's rows matching
// keys, and invokes handler with each chunk of at most opts.ChunkSize rows.
// Neither the Traversal Engine nor the Emitter calls it: an extraction run
// fetches every row through FetchSeed/FetchByKeys into the Collected Set.
func (f *Fetcher) StreamByKeys(ctx context.Context, table *schema.Table, keyColumns []string, keys []KeyTuple, handler func([]Row) error) error {
	clean := make([]KeyTuple, 0, len(keys))
	for _, k := range keys {
		if !k.HasNull() {
			clean = append(clean, k)
		}
	}
	if len(clean) == 0 {
		return nil
	}

	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		return &xerrors.FetchError{Table: table.Name, SQL: "BEGIN", Err: err}
	}
	defer tx.Rollback()

	query, params := f.buildKeyBatchQuery(table, keyColumns, clean)
	cursorName := "subsetdb_cursor"
	declareSQL := fmt.Sprintf("DECLARE %s NO SCROLL CURSOR FOR %s", cursorName, query)
	if _, err := tx.ExecContext(ctx, declareSQL, params...); err != nil {
		return &xerrors.FetchError{Table: table.Name, SQL: declareSQL, Err: err}
	}

	fetchSQL := fmt.Sprintf("FETCH %d FROM %s", f.opts.ChunkSize, cursorName)
	chunkNum := 0
	for {
		rows, err := tx.QueryContext(ctx, fetchSQL)
		if err != nil {
			return &xerrors.FetchError{Table: table.Name, SQL: fetchSQL, Err: err}
		}
		chunk, err := scanAll(rows, len(table.Columns))
		rows.Close()
		if err != nil {
			return &xerrors.FetchError{Table: table.Name, SQL: fetchSQL, Err: err}
		}
		if len(chunk) == 0 {
			break
		}
		chunkNum++
		f.logBatch(table.Name, chunkNum, len(chunk))
		if err := handler(chunk); err != nil {
			return err
		}
		if len(chunk) < f.opts.ChunkSize {
			break
		}
	}

	return tx.Commit()
}

func (f *Fetcher) columnList(table *schema.Table) string {
	names := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		names[i] = f.opts.Dialect.QuoteIdentifier(c.Name)
	}
	return strings.Join(names, ", ")
}

func scanAll(rows *sql.Rows, numCols int) ([]Row, error) {
	var out []Row
	for rows.Next() {
		dest := make([]any, numCols)
		ptrs := make([]any, numCols)
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, Row(dest))
	}
	return out, rows.Err()
}
