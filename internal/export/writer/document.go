package writer

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/hoteldex/hotel-admin/internal/model"
)

// Document writes one top-level JSON object: a metadata block followed
// by a records array preserving parent/child nesting. The array is kept
// open across batches and closed only after the last one, so the full
// result set is never buffered.
type Document struct {
	schema model.Schema
}

func NewDocument(schema model.Schema) *Document {
	return &Document{schema: schema}
}

type documentMetadata struct {
	GeneratedAt   string          `json:"generated_at"`
	RequestedBy   int64           `json:"requested_by"`
	Kind          model.Kind      `json:"kind"`
	Criteria      json.RawMessage `json:"criteria"`
	TotalRecords  int64           `json:"total_records"`
	FormatVersion string          `json:"format_version"`
}

func (w *Document) Write(ctx context.Context, src BatchSource, sink io.Writer, meta Metadata) (int64, error) {
	cw := &countingWriter{w: sink}

	criteria := meta.Criteria
	if len(criteria) == 0 {
		criteria = json.RawMessage("{}")
	}
	head, err := json.MarshalIndent(documentMetadata{
		GeneratedAt:   meta.GeneratedAt.UTC().Format(time.RFC3339),
		RequestedBy:   meta.RequestedBy,
		Kind:          meta.Kind,
		Criteria:      criteria,
		TotalRecords:  meta.TotalRecords,
		FormatVersion: FormatVersion,
	}, "  ", "  ")
	if err != nil {
		return cw.n, err
	}

	if _, err := io.WriteString(cw, "{\n  \"metadata\": "); err != nil {
		return cw.n, err
	}
	if _, err := cw.Write(head); err != nil {
		return cw.n, err
	}
	if _, err := io.WriteString(cw, ",\n  \"records\": ["); err != nil {
		return cw.n, err
	}

	wrote := false
	for {
		batch, err := src.Next(ctx)
		if err != nil {
			return cw.n, err
		}
		if batch == nil {
			break
		}
		for _, row := range batch.Rows {
			rec, err := json.MarshalIndent(row.Doc, "    ", "  ")
			if err != nil {
				return cw.n, err
			}
			sep := ",\n    "
			if !wrote {
				sep = "\n    "
			}
			if _, err := io.WriteString(cw, sep); err != nil {
				return cw.n, err
			}
			if _, err := cw.Write(rec); err != nil {
				return cw.n, err
			}
			wrote = true
		}
	}

	closing := "]\n}\n"
	if wrote {
		closing = "\n  ]\n}\n"
	}
	if _, err := io.WriteString(cw, closing); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}
