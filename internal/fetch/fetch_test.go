package fetch

import (
	"context"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/halvorsen/subsetdb/internal/config"
	"github.com/halvorsen/subsetdb/internal/dialect"
	"github.com/halvorsen/subsetdb/internal/logger"
	"github.com/halvorsen/subsetdb/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ordersTable() *schema.Table {
	return &schema.Table{
		Name:       "orders",
		PrimaryKey: []string{"id"},
		Columns: []schema.Column{
			{Name: "id", SQLType: "bigint"},
			{Name: "customer_id", SQLType: "bigint"},
			{Name: "total", SQLType: "numeric"},
		},
	}
}

func TestKeyTuple_HasNull(t *testing.T) {
	assert.False(t, KeyTuple{int64(1), "x"}.HasNull())
	assert.True(t, KeyTuple{int64(1), nil}.HasNull())
}

func TestFetchSeed_IssuesWhereFragmentQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	f := New(db, DefaultOptions())
	table := ordersTable()

	mock.ExpectQuery(`SELECT "id", "customer_id", "total" FROM "orders" WHERE \(id = \$1\)`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id", "total"}).
			AddRow(int64(1), int64(100), 9.99))

	rows, err := f.FetchSeed(context.Background(), table, "id = $1", []any{int64(1)})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0][0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchSeed_QueryErrorWrapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	f := New(db, DefaultOptions())
	table := ordersTable()

	mock.ExpectQuery(`SELECT`).WillReturnError(assert.AnError)

	_, err = f.FetchSeed(context.Background(), table, "id = $1", []any{int64(1)})
	assert.Error(t, err)
}

func TestFetchByKeys_SingleColumnINQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	f := New(db, DefaultOptions())
	table := ordersTable()

	mock.ExpectQuery(`SELECT "id", "customer_id", "total" FROM "orders" WHERE "id" IN \(\$1, \$2\)`).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id", "total"}).
			AddRow(int64(1), int64(100), 9.99).
			AddRow(int64(2), int64(101), 19.99))

	rows, err := f.FetchByKeys(context.Background(), table, []string{"id"}, []KeyTuple{{int64(1)}, {int64(2)}})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchByKeys_CompositeKeyINQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	f := New(db, DefaultOptions())
	table := &schema.Table{
		Name:       "warehouses",
		PrimaryKey: []string{"region", "code"},
		Columns: []schema.Column{
			{Name: "region", SQLType: "text"},
			{Name: "code", SQLType: "text"},
		},
	}

	mock.ExpectQuery(`SELECT "region", "code" FROM "warehouses" WHERE \("region", "code"\) IN \(\(\$1, \$2\)\)`).
		WithArgs("west", "W1").
		WillReturnRows(sqlmock.NewRows([]string{"region", "code"}).AddRow("west", "W1"))

	rows, err := f.FetchByKeys(context.Background(), table, []string{"region", "code"}, []KeyTuple{{"west", "W1"}})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchByKeys_NullTuplesAreFilteredBeforeQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	f := New(db, DefaultOptions())
	table := ordersTable()

	mock.ExpectQuery(`SELECT "id", "customer_id", "total" FROM "orders" WHERE "id" IN \(\$1\)`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id", "total"}).
			AddRow(int64(1), int64(100), 9.99))

	rows, err := f.FetchByKeys(context.Background(), table, []string{"id"}, []KeyTuple{{int64(1)}, {nil}})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchByKeys_AllNullTuplesSkipsQueryEntirely(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	f := New(db, DefaultOptions())
	table := ordersTable()

	rows, err := f.FetchByKeys(context.Background(), table, []string{"id"}, []KeyTuple{{nil}, {nil}})
	require.NoError(t, err)
	assert.Nil(t, rows)
}

func TestFetchByKeys_ChunksAtBatchSize(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	opts := DefaultOptions()
	opts.BatchSize = 2
	f := New(db, opts)
	table := ordersTable()

	mock.ExpectQuery(`WHERE "id" IN \(\$1, \$2\)`).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id", "total"}).AddRow(int64(1), int64(100), 9.99))
	mock.ExpectQuery(`WHERE "id" IN \(\$1\)`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id", "total"}).AddRow(int64(3), int64(102), 5.0))

	rows, err := f.FetchByKeys(context.Background(), table, []string{"id"}, []KeyTuple{{int64(1)}, {int64(2)}, {int64(3)}})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchByKeys_LogsEachBatchWhenLoggerConfigured(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tmpFile, err := os.CreateTemp("", "fetch-logger-test-*.json")
	require.NoError(t, err)
	_ = tmpFile.Close()
	defer os.Remove(tmpFile.Name())

	log, err := logger.New(&config.LoggingConfig{Level: "debug", Format: "json", Output: tmpFile.Name()})
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.BatchSize = 2
	opts.Logger = log
	f := New(db, opts)
	table := ordersTable()

	mock.ExpectQuery(`WHERE "id" IN \(\$1, \$2\)`).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id", "total"}).AddRow(int64(1), int64(100), 9.99))
	mock.ExpectQuery(`WHERE "id" IN \(\$1\)`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id", "total"}).AddRow(int64(3), int64(102), 5.0))

	_, err = f.FetchByKeys(context.Background(), table, []string{"id"}, []KeyTuple{{int64(1)}, {int64(2)}, {int64(3)}})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	require.NoError(t, log.Sync())

	content, err := os.ReadFile(tmpFile.Name())
	require.NoError(t, err)
	out := string(content)
	assert.Contains(t, out, `"table":"orders"`)
	assert.Contains(t, out, `"batch":1`)
	assert.Contains(t, out, `"batch":2`)
}

func TestFetchByKeys_NoLoggerConfiguredDoesNotPanic(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	opts := DefaultOptions()
	f := New(db, opts)
	table := ordersTable()

	mock.ExpectQuery(`WHERE "id" IN \(\$1\)`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id", "total"}).AddRow(int64(1), int64(100), 9.99))

	_, err = f.FetchByKeys(context.Background(), table, []string{"id"}, []KeyTuple{{int64(1)}})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShouldStream_BelowThreshold(t *testing.T) {
	f := New(nil, DefaultOptions())
	assert.False(t, f.ShouldStream(100))
}

func TestShouldStream_AtOrAboveThreshold(t *testing.T) {
	opts := DefaultOptions()
	opts.StreamThreshold = 1000
	f := New(nil, opts)
	assert.True(t, f.ShouldStream(1000))
	assert.True(t, f.ShouldStream(5000))
}

func TestShouldStream_ForcedEnabled(t *testing.T) {
	opts := DefaultOptions()
	opts.StreamEnabled = true
	f := New(nil, opts)
	assert.True(t, f.ShouldStream(1))
}

func TestEstimateRowCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	f := New(db, DefaultOptions())

	mock.ExpectQuery(`SELECT reltuples::bigint FROM pg_class WHERE relname = \$1`).
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"reltuples"}).AddRow(int64(42000)))

	count, err := f.EstimateRowCount(context.Background(), "orders")
	require.NoError(t, err)
	assert.Equal(t, int64(42000), count)
}

func TestEstimateRowCount_NullEstimateReturnsZero(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	f := New(db, DefaultOptions())

	mock.ExpectQuery(`SELECT reltuples::bigint FROM pg_class WHERE relname = \$1`).
		WithArgs("ghost_table").
		WillReturnRows(sqlmock.NewRows([]string{"reltuples"}).AddRow(nil))

	count, err := f.EstimateRowCount(context.Background(), "ghost_table")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestStreamByKeys_FetchesChunksUntilShortRead(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	opts := DefaultOptions()
	opts.ChunkSize = 2
	f := New(db, opts)
	table := ordersTable()

	mock.ExpectBegin()
	mock.ExpectExec(`DECLARE subsetdb_cursor NO SCROLL CURSOR FOR`).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FETCH 2 FROM subsetdb_cursor`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id", "total"}).
			AddRow(int64(1), int64(100), 9.99).
			AddRow(int64(2), int64(101), 19.99))
	mock.ExpectQuery(`FETCH 2 FROM subsetdb_cursor`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id", "total"}).
			AddRow(int64(3), int64(102), 5.0))
	mock.ExpectCommit()

	var chunks [][]Row
	err = f.StreamByKeys(context.Background(), table, []string{"id"}, []KeyTuple{{int64(1)}}, func(rows []Row) error {
		chunks = append(chunks, rows)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Len(t, chunks[0], 2)
	assert.Len(t, chunks[1], 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStreamByKeys_NoKeysSkipsTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	f := New(db, DefaultOptions())
	table := ordersTable()

	err = f.StreamByKeys(context.Background(), table, []string{"id"}, []KeyTuple{{nil}}, func(rows []Row) error {
		t.Fatal("handler should not be called")
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetcher_UsesConfiguredDialect(t *testing.T) {
	f := New(nil, Options{Dialect: dialect.Postgres})
	assert.NotNil(t, f)
}
