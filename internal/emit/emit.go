// Package emit serializes the anonymized Collected Set, in topological
// order, as SQL, JSON, or CSV.
package emit

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/halvorsen/subsetdb/internal/anonymize"
	"github.com/halvorsen/subsetdb/internal/config"
	"github.com/halvorsen/subsetdb/internal/dialect"
	"github.com/halvorsen/subsetdb/internal/fetch"
	"github.com/halvorsen/subsetdb/internal/schema"
	"github.com/halvorsen/subsetdb/internal/topo"
	"github.com/halvorsen/subsetdb/internal/traverse"
)

// Source is everything the Emitter needs to read from: the Collected Set,
// the Schema Model it was collected against, and the Topological Sorter's
// plan.
type Source struct {
	Collected *traverse.Collected
	Graph     *schema.Graph
	Plan      *topo.Plan
}

// Emitter writes one Source out in a single configured format.
type Emitter struct {
	cfg    config.OutputConfig
	dial   dialect.Dialect
	anon   *anonymize.Anonymizer
}

// New creates an Emitter. anon may be nil, in which case values pass
// through unanonymized (anonymize.enabled=false).
func New(cfg config.OutputConfig, anon *anonymize.Anonymizer) *Emitter {
	return &Emitter{cfg: cfg, dial: dialect.Postgres, anon: anon}
}

// Emit writes src to outPath (a directory for per-table JSON and CSV modes;
// a file path, or "-" for stdout, in single-file modes) according to
// e.cfg.Format.
func (e *Emitter) Emit(src Source, outPath string) error {
	switch e.cfg.Format {
	case "json":
		return e.emitJSON(src, outPath)
	case "csv":
		return e.emitCSV(src, outPath)
	default:
		return e.emitSQL(src, outPath)
	}
}

func (e *Emitter) openWriter(outPath string) (io.WriteCloser, error) {
	if outPath == "" || outPath == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, fmt.Errorf("opening output file: %w", err)
	}
	return f, nil
}

func (e *Emitter) anonymizeRow(table *schema.Table, row fetch.Row) (fetch.Row, error) {
	if e.anon == nil {
		return row, nil
	}
	out := make(fetch.Row, len(row))
	for i, col := range table.Columns {
		v, err := e.anon.Anonymize(table.Name, &col, row[i])
		if err != nil {
			return nil, fmt.Errorf("anonymizing %s.%s: %w", table.Name, col.Name, err)
		}
		out[i] = v
	}
	return out, nil
}

func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func newBufferedWriter(w io.Writer) *bufio.Writer {
	return bufio.NewWriterSize(w, 64*1024)
}
