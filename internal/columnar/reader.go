package columnar

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/rinkside-ai/rinkside/internal/model"
)

const scanBatch = 256

// scanFile streams records out of one parquet file, calling visit per row
// until visit returns false or the file is exhausted.
func scanFile(ctx context.Context, path string, visit func(model.Record) bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return fmt.Errorf("open parquet %s: %w", path, err)
	}

	names := columnNames(pf.Schema())
	buf := make([]parquet.Row, scanBatch)

	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		stop, err := scanRowGroup(ctx, rows, buf, names, visit)
		_ = rows.Close()
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	return nil
}

func scanRowGroup(ctx context.Context, rows parquet.Rows, buf []parquet.Row, names []string, visit func(model.Record) bool) (bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		n, err := rows.ReadRows(buf)
		for _, row := range buf[:n] {
			if !visit(rowToRecord(row, names)) {
				return true, nil
			}
		}
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if n == 0 {
			return false, nil
		}
	}
}

func columnNames(schema *parquet.Schema) []string {
	cols := schema.Columns()
	names := make([]string, len(cols))
	for i, path := range cols {
		names[i] = path[len(path)-1]
	}
	return names
}

func rowToRecord(row parquet.Row, names []string) model.Record {
	rec := make(model.Record, len(names))
	for _, v := range row {
		idx := v.Column()
		if idx < 0 || idx >= len(names) {
			continue
		}
		rec[names[idx]] = valueToGo(v)
	}
	return rec
}

// valueToGo widens parquet scalars to the record value set: bool, int64,
// float64, string.
func valueToGo(v parquet.Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}

func stringValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}
