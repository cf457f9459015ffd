package writer

import (
	"context"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hoteldex/hotel-admin/internal/model"
)

// Spreadsheet writes a multi-sheet workbook: one sheet per entity group
// plus a summary sheet whose metrics are accumulated while streaming,
// never from a second pass. Headers are bold and frozen; column widths
// follow the widest observed content.
type Spreadsheet struct {
	schema model.Schema
}

func NewSpreadsheet(schema model.Schema) *Spreadsheet {
	return &Spreadsheet{schema: schema}
}

const summarySheet = "Summary"

type sourceStats struct {
	records   int64
	ratingSum float64
	rated     int64
}

func (w *Spreadsheet) Write(ctx context.Context, src BatchSource, sink io.Writer, meta Metadata) (int64, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	entity := w.schema.EntitySheet
	if err := f.SetSheetName("Sheet1", entity); err != nil {
		return 0, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return 0, err
	}

	entityWidths := newWidthTracker(len(w.schema.Columns))
	if err := writeHeader(f, entity, w.schema.Columns, headerStyle, entityWidths); err != nil {
		return 0, err
	}

	var detailWidths *widthTracker
	if w.schema.DetailSheet != "" {
		if _, err := f.NewSheet(w.schema.DetailSheet); err != nil {
			return 0, err
		}
		detailWidths = newWidthTracker(len(w.schema.DetailColumns))
		if err := writeHeader(f, w.schema.DetailSheet, w.schema.DetailColumns, headerStyle, detailWidths); err != nil {
			return 0, err
		}
	}

	stats := map[string]*sourceStats{}
	var total int64
	entityRow, detailRow := 2, 2

	for {
		batch, err := src.Next(ctx)
		if err != nil {
			return 0, err
		}
		if batch == nil {
			break
		}
		for _, row := range batch.Rows {
			if err := writeRow(f, entity, entityRow, row.Cells, entityWidths); err != nil {
				return 0, err
			}
			entityRow++
			total++

			for _, detail := range row.Details {
				if w.schema.DetailSheet == "" {
					break
				}
				if err := writeRow(f, w.schema.DetailSheet, detailRow, detail, detailWidths); err != nil {
					return 0, err
				}
				detailRow++
			}

			w.accumulate(stats, row)
		}
	}

	if err := w.writeSummary(f, meta, stats, total, headerStyle); err != nil {
		return 0, err
	}

	if err := entityWidths.apply(f, entity); err != nil {
		return 0, err
	}
	if detailWidths != nil {
		if err := detailWidths.apply(f, w.schema.DetailSheet); err != nil {
			return 0, err
		}
	}

	cw := &countingWriter{w: sink}
	if err := f.Write(cw); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

func (w *Spreadsheet) accumulate(stats map[string]*sourceStats, row model.Row) {
	if w.schema.SourceCol < 0 || w.schema.SourceCol >= len(row.Cells) {
		return
	}
	source := row.Cells[w.schema.SourceCol]
	st := stats[source]
	if st == nil {
		st = &sourceStats{}
		stats[source] = st
	}
	st.records++
	if w.schema.RatingCol >= 0 && w.schema.RatingCol < len(row.Cells) {
		if rating, err := strconv.ParseFloat(row.Cells[w.schema.RatingCol], 64); err == nil {
			st.ratingSum += rating
			st.rated++
		}
	}
}

func (w *Spreadsheet) writeSummary(f *excelize.File, meta Metadata, stats map[string]*sourceStats, total int64, headerStyle int) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	widths := newWidthTracker(3)
	if err := writeHeader(f, summarySheet, []string{"Metric", "Value"}, headerStyle, widths); err != nil {
		return err
	}

	rowIdx := 2
	metaRows := [][]any{
		{"Kind", string(meta.Kind)},
		{"Generated At", meta.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Requested By", meta.RequestedBy},
		{"Total Records", total},
		{"Sources", int64(len(stats))},
	}
	for _, cells := range metaRows {
		if err := writeAnyRow(f, summarySheet, rowIdx, cells, widths); err != nil {
			return err
		}
		rowIdx++
	}

	// Per-source breakdown below a blank spacer row.
	rowIdx++
	headRow := rowIdx
	if err := writeAnyRow(f, summarySheet, rowIdx, []any{"Source", "Records", "Avg Rating"}, widths); err != nil {
		return err
	}
	start, err := excelize.CoordinatesToCellName(1, headRow)
	if err != nil {
		return err
	}
	end, err := excelize.CoordinatesToCellName(3, headRow)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, start, end, headerStyle); err != nil {
		return err
	}
	rowIdx++

	sources := make([]string, 0, len(stats))
	for source := range stats {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	for _, source := range sources {
		st := stats[source]
		avg := ""
		if st.rated > 0 {
			avg = strconv.FormatFloat(st.ratingSum/float64(st.rated), 'f', 2, 64)
		}
		if err := writeAnyRow(f, summarySheet, rowIdx, []any{source, st.records, avg}, widths); err != nil {
			return err
		}
		rowIdx++
	}

	return widths.apply(f, summarySheet)
}

func writeHeader(f *excelize.File, sheet string, columns []string, style int, widths *widthTracker) error {
	cells := make([]any, len(columns))
	for i, c := range columns {
		cells[i] = c
	}
	if err := writeAnyRow(f, sheet, 1, cells, widths); err != nil {
		return err
	}
	start, err := excelize.CoordinatesToCellName(1, 1)
	if err != nil {
		return err
	}
	end, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, start, end, style); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeRow(f *excelize.File, sheet string, rowIdx int, cells []string, widths *widthTracker) error {
	vals := make([]any, len(cells))
	for i, c := range cells {
		vals[i] = c
	}
	return writeAnyRow(f, sheet, rowIdx, vals, widths)
}

func writeAnyRow(f *excelize.File, sheet string, rowIdx int, cells []any, widths *widthTracker) error {
	cell, err := excelize.CoordinatesToCellName(1, rowIdx)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return err
	}
	widths.observe(cells)
	return nil
}

// widthTracker records the widest content seen per column so the final
// widths fit observed data without a second pass.
type widthTracker struct {
	widths []float64
}

func newWidthTracker(columns int) *widthTracker {
	return &widthTracker{widths: make([]float64, columns)}
}

func (t *widthTracker) observe(cells []any) {
	for i, c := range cells {
		if i >= len(t.widths) {
			break
		}
		var n int
		switch v := c.(type) {
		case string:
			n = len(v)
		case int64:
			n = len(strconv.FormatInt(v, 10))
		default:
			continue
		}
		if w := float64(n); w > t.widths[i] {
			t.widths[i] = w
		}
	}
}

const (
	minColWidth = 10
	maxColWidth = 60
)

func (t *widthTracker) apply(f *excelize.File, sheet string) error {
	for i, w := range t.widths {
		width := w + 2
		if width < minColWidth {
			width = minColWidth
		}
		if width > maxColWidth {
			width = maxColWidth
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return err
		}
	}
	return nil
}
