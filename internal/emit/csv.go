package emit

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

func (e *Emitter) emitCSV(src Source, outDir string) error {
	for _, tableName := range src.Plan.OrderedTables {
		table, ok := src.Graph.Table(tableName)
		if !ok {
			continue
		}

		path := filepath.Join(outDir, tableName+".csv")
		if err := ensureDir(path); err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}

		w := csv.NewWriter(f)
		header := make([]string, len(table.Columns))
		for i, c := range table.Columns {
			header[i] = c.Name
		}
		if err := w.Write(header); err != nil {
			f.Close()
			return err
		}

		for _, row := range src.Collected.Rows(tableName) {
			anonRow, err := e.anonymizeRow(table, row)
			if err != nil {
				f.Close()
				return err
			}
			record := make([]string, len(table.Columns))
			for i, v := range anonRow {
				record[i] = csvField(v)
			}
			if err := w.Write(record); err != nil {
				f.Close()
				return err
			}
		}

		w.Flush()
		err = w.Error()
		f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// csvField renders one value as a CSV field; nulls are empty fields per
// spec §4.7. encoding/csv applies RFC 4180 quoting automatically.
func csvField(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", t)
	}
}
