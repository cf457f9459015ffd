package model

import "fmt"

// Format is the artifact serialization format of an export.
type Format string

const (
	// FormatCSV is BOM-prefixed UTF-8 delimited text with flattened rows.
	FormatCSV Format = "csv"
	// FormatJSON is a pretty-printed document preserving nested records.
	FormatJSON Format = "json"
	// FormatXLSX is a multi-sheet spreadsheet with a summary sheet.
	FormatXLSX Format = "xlsx"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatJSON, FormatXLSX:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown export format: %q", s)
	}
}

func (f Format) Extension() string { return string(f) }

func (f Format) MIME() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}
