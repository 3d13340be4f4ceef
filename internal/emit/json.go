package emit

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/halvorsen/subsetdb/internal/fetch"
	"github.com/halvorsen/subsetdb/internal/schema"
)

func (e *Emitter) emitJSON(src Source, outPath string) error {
	if e.cfg.JSONMode == "per-table" {
		return e.emitJSONPerTable(src, outPath)
	}
	return e.emitJSONSingle(src, outPath)
}

func (e *Emitter) emitJSONSingle(src Source, outPath string) error {
	w, err := e.openWriter(outPath)
	if err != nil {
		return err
	}
	defer w.Close()

	doc := make(map[string][]map[string]any, len(src.Plan.OrderedTables))
	for _, tableName := range src.Plan.OrderedTables {
		table, ok := src.Graph.Table(tableName)
		if !ok {
			continue
		}
		rows, err := e.jsonRows(table, src.Collected.Rows(tableName))
		if err != nil {
			return err
		}
		doc[tableName] = rows
	}

	enc := json.NewEncoder(w)
	if e.cfg.JSONPretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(doc)
}

func (e *Emitter) emitJSONPerTable(src Source, outDir string) error {
	for _, tableName := range src.Plan.OrderedTables {
		table, ok := src.Graph.Table(tableName)
		if !ok {
			continue
		}
		rows, err := e.jsonRows(table, src.Collected.Rows(tableName))
		if err != nil {
			return err
		}

		path := filepath.Join(outDir, tableName+".json")
		if err := ensureDir(path); err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}

		enc := json.NewEncoder(f)
		if e.cfg.JSONPretty {
			enc.SetIndent("", "  ")
		}
		err = enc.Encode(rows)
		f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Emitter) jsonRows(table *schema.Table, rows []fetch.Row) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		anonRow, err := e.anonymizeRow(table, row)
		if err != nil {
			return nil, err
		}
		obj := make(map[string]any, len(table.Columns))
		for i, col := range table.Columns {
			obj[col.Name] = jsonValue(anonRow[i])
		}
		out = append(out, obj)
	}
	return out, nil
}

func jsonValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return base64.StdEncoding.EncodeToString(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return t
	}
}
