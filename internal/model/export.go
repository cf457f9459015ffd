package model

import "fmt"

// Kind selects the exported dataset.
type Kind string

const (
	KindHotels          Kind = "hotels"
	KindMappings        Kind = "mappings"
	KindSupplierSummary Kind = "supplier-summary"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindHotels, KindMappings, KindSupplierSummary:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown export kind: %q", s)
	}
}

// Row is one exported record. Cells hold the flattened scalar values
// aligned with Schema.Columns; Doc is the nested representation used by
// the document writer; Details are the related-detail sheet rows of the
// spreadsheet writer.
type Row struct {
	ID      int64
	Cells   []string
	Doc     map[string]any
	Details [][]string
}

// Batch is one fixed-size chunk of rows produced by the streaming
// execution.
type Batch struct {
	Rows []Row
}

// Schema describes how a kind maps onto columns and nested groups.
// SourceCol/RatingCol index into Columns for summary accumulation; -1
// means the kind has no such column.
type Schema struct {
	Kind          Kind
	EntitySheet   string
	Columns       []string
	DetailSheet   string
	DetailColumns []string
	SourceCol     int
	RatingCol     int
}

var schemas = map[Kind]Schema{
	KindHotels: {
		Kind:        KindHotels,
		EntitySheet: "Hotels",
		Columns: []string{
			"id", "source", "name", "country", "city",
			"category", "rating", "updated_at", "locations", "contacts",
		},
		DetailSheet:   "Locations",
		DetailColumns: []string{"hotel_id", "address", "latitude", "longitude"},
		SourceCol:     1,
		RatingCol:     6,
	},
	KindMappings: {
		Kind:        KindMappings,
		EntitySheet: "Mappings",
		Columns: []string{
			"id", "source", "provider_hotel_id", "hotel_id",
			"confidence", "updated_at",
		},
		SourceCol: 1,
		RatingCol: -1,
	},
	KindSupplierSummary: {
		Kind:        KindSupplierSummary,
		EntitySheet: "Suppliers",
		Columns: []string{
			"source", "hotel_count", "mapping_count",
			"country_count", "avg_rating",
		},
		SourceCol: 0,
		RatingCol: 4,
	},
}

func SchemaFor(kind Kind) Schema { return schemas[kind] }
