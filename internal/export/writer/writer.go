// Package writer serializes export batch streams into artifacts. All
// writers consume batches incrementally and never hold the full result
// set in memory; an empty stream still yields a well-formed artifact
// with header or metadata only.
package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hoteldex/hotel-admin/internal/model"
)

// FormatVersion is stamped into document metadata so consumers can
// detect layout changes.
const FormatVersion = "1.0"

// Metadata describes the export for formats that embed it.
type Metadata struct {
	Kind         model.Kind
	GeneratedAt  time.Time
	RequestedBy  int64
	Criteria     json.RawMessage
	TotalRecords int64
}

// BatchSource is the consuming side of a batch stream. Next returns nil
// once the stream is exhausted; an error is terminal.
type BatchSource interface {
	Next(ctx context.Context) (*model.Batch, error)
}

// Writer serializes a batch stream to a sink and reports bytes written.
type Writer interface {
	Write(ctx context.Context, src BatchSource, sink io.Writer, meta Metadata) (int64, error)
}

// For returns the writer for a format over the given schema.
func For(format model.Format, schema model.Schema) (Writer, error) {
	switch format {
	case model.FormatCSV:
		return NewCSV(schema), nil
	case model.FormatJSON:
		return NewDocument(schema), nil
	case model.FormatXLSX:
		return NewSpreadsheet(schema), nil
	default:
		return nil, fmt.Errorf("no writer for format %q", format)
	}
}

// countingWriter tracks bytes written through it.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
