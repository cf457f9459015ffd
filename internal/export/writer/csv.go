package writer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/hoteldex/hotel-admin/internal/model"
)

// utf8BOM lets spreadsheet applications detect the encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSV writes BOM-prefixed UTF-8 delimited text. Nested substructures
// arrive pre-joined in the row cells; quoting follows encoding/csv.
type CSV struct {
	schema model.Schema
}

func NewCSV(schema model.Schema) *CSV {
	return &CSV{schema: schema}
}

func (w *CSV) Write(ctx context.Context, src BatchSource, sink io.Writer, _ Metadata) (int64, error) {
	cw := &countingWriter{w: sink}
	if _, err := cw.Write(utf8BOM); err != nil {
		return cw.n, err
	}

	enc := csv.NewWriter(cw)
	if err := enc.Write(w.schema.Columns); err != nil {
		return cw.n, err
	}

	for {
		batch, err := src.Next(ctx)
		if err != nil {
			return cw.n, err
		}
		if batch == nil {
			break
		}
		for _, row := range batch.Rows {
			if len(row.Cells) != len(w.schema.Columns) {
				return cw.n, fmt.Errorf("row %d has %d cells, schema has %d columns",
					row.ID, len(row.Cells), len(w.schema.Columns))
			}
			if err := enc.Write(row.Cells); err != nil {
				return cw.n, err
			}
		}
		enc.Flush()
		if err := enc.Error(); err != nil {
			return cw.n, err
		}
	}

	enc.Flush()
	return cw.n, enc.Error()
}
