package postgres

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hoteldex/hotel-admin/internal/errors"
	"github.com/hoteldex/hotel-admin/internal/model"
	"github.com/hoteldex/hotel-admin/internal/store"
)

const defaultBatchSize = 1000

type CatalogStore struct {
	storage *Store
}

func (c *CatalogStore) BuildQuery(kind model.Kind, filter model.FilterSpec, allowedSources []string) (*store.ScopedQuery, error) {
	return BuildQuery(kind, filter, allowedSources)
}

func (c *CatalogStore) EstimateCount(ctx context.Context, q *store.ScopedQuery) (int64, error) {
	db, err := c.storage.Database()
	if err != nil {
		return 0, errors.NewDBInternalError("catalog.estimate_count", err)
	}

	var sql string
	switch q.Kind {
	case model.KindHotels:
		sql = fmt.Sprintf("SELECT COUNT(*) FROM hotels h WHERE %s", q.Where)
	case model.KindMappings:
		sql = fmt.Sprintf("SELECT COUNT(*) FROM hotel_mappings m WHERE %s", q.Where)
	case model.KindSupplierSummary:
		sql = fmt.Sprintf("SELECT COUNT(DISTINCT h.source_id) FROM hotels h WHERE %s", q.Where)
	default:
		return 0, errors.NewDBError("catalog.estimate_count", fmt.Sprintf("unknown kind %q", q.Kind))
	}

	var count int64
	if err := db.QueryRow(ctx, sql, q.Args...).Scan(&count); err != nil {
		return 0, errors.NewDBInternalError("catalog.estimate_count", err)
	}
	return count, nil
}

// Stream returns a finite, single-pass batch sequence over the scoped
// query, keyset-paginated by primary identifier ascending. Each batch
// issues its own bounded query; no server-side cursor is held open
// between batches.
func (c *CatalogStore) Stream(ctx context.Context, q *store.ScopedQuery, batchSize int) (store.BatchIterator, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &batchIterator{storage: c.storage, query: q, batchSize: batchSize}, nil
}

type batchIterator struct {
	storage   *Store
	query     *store.ScopedQuery
	batchSize int

	lastID  int64  // cursor for hotels / mappings
	lastKey string // cursor for supplier summary
	rowSeq  int64
	done    bool
}

func (it *batchIterator) Next(ctx context.Context) (*model.Batch, error) {
	if it.done {
		return nil, nil
	}

	var (
		rows []model.Row
		err  error
	)
	switch it.query.Kind {
	case model.KindHotels:
		rows, err = it.nextHotels(ctx)
	case model.KindMappings:
		rows, err = it.nextMappings(ctx)
	case model.KindSupplierSummary:
		rows, err = it.nextSupplierSummary(ctx)
	default:
		err = errors.NewDBError("catalog.stream", fmt.Sprintf("unknown kind %q", it.query.Kind))
	}
	if err != nil {
		it.done = true
		return nil, err
	}
	if len(rows) == 0 {
		it.done = true
		return nil, nil
	}
	if len(rows) < it.batchSize {
		it.done = true
	}
	return &model.Batch{Rows: rows}, nil
}

// Close is a no-op: the iterator holds no connection between batches.
func (it *batchIterator) Close() {}

type hotelRow struct {
	id        int64
	source    string
	name      string
	country   string
	city      string
	category  string
	rating    float64
	updatedAt time.Time
}

func (it *batchIterator) nextHotels(ctx context.Context) ([]model.Row, error) {
	db, err := it.storage.Database()
	if err != nil {
		return nil, errors.NewDBInternalError("catalog.stream_hotels", err)
	}

	n := len(it.query.Args)
	sql := fmt.Sprintf(`
		SELECT h.id, h.source_id, h.name, h.country_code, h.city, h.category, h.rating, h.updated_at
		FROM hotels h
		WHERE %s AND h.id > $%d
		ORDER BY h.id ASC
		LIMIT $%d`, it.query.Where, n+1, n+2)
	args := append(slices.Clone(it.query.Args), it.lastID, it.batchSize)

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.NewDBInternalError("catalog.stream_hotels", err)
	}
	defer rows.Close()

	var (
		hotels []hotelRow
		ids    []int64
	)
	for rows.Next() {
		var h hotelRow
		if err := rows.Scan(&h.id, &h.source, &h.name, &h.country, &h.city, &h.category, &h.rating, &h.updatedAt); err != nil {
			return nil, errors.NewDBInternalError("catalog.stream_hotels", err)
		}
		hotels = append(hotels, h)
		ids = append(ids, h.id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBInternalError("catalog.stream_hotels", err)
	}
	if len(hotels) == 0 {
		return nil, nil
	}
	it.lastID = hotels[len(hotels)-1].id

	locations, err := it.hotelLocations(ctx, ids)
	if err != nil {
		return nil, err
	}
	contacts, err := it.hotelContacts(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]model.Row, 0, len(hotels))
	for _, h := range hotels {
		out = append(out, buildHotelRow(h, locations[h.id], contacts[h.id]))
	}
	return out, nil
}

type hotelLocation struct {
	address   string
	latitude  *float64
	longitude *float64
}

type hotelContact struct {
	kind  string
	value string
}

func (it *batchIterator) hotelLocations(ctx context.Context, hotelIDs []int64) (map[int64][]hotelLocation, error) {
	db, err := it.storage.Database()
	if err != nil {
		return nil, errors.NewDBInternalError("catalog.stream_locations", err)
	}

	rows, err := db.Query(ctx, `
		SELECT l.hotel_id, l.address, l.latitude, l.longitude
		FROM hotel_locations l
		WHERE l.hotel_id = ANY($1)
		ORDER BY l.hotel_id, l.id`, hotelIDs)
	if err != nil {
		return nil, errors.NewDBInternalError("catalog.stream_locations", err)
	}
	defer rows.Close()

	out := make(map[int64][]hotelLocation)
	for rows.Next() {
		var (
			hotelID int64
			loc     hotelLocation
		)
		if err := rows.Scan(&hotelID, &loc.address, &loc.latitude, &loc.longitude); err != nil {
			return nil, errors.NewDBInternalError("catalog.stream_locations", err)
		}
		out[hotelID] = append(out[hotelID], loc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBInternalError("catalog.stream_locations", err)
	}
	return out, nil
}

func (it *batchIterator) hotelContacts(ctx context.Context, hotelIDs []int64) (map[int64][]hotelContact, error) {
	db, err := it.storage.Database()
	if err != nil {
		return nil, errors.NewDBInternalError("catalog.stream_contacts", err)
	}

	rows, err := db.Query(ctx, `
		SELECT c.hotel_id, c.kind, c.value
		FROM hotel_contacts c
		WHERE c.hotel_id = ANY($1)
		ORDER BY c.hotel_id, c.id`, hotelIDs)
	if err != nil {
		return nil, errors.NewDBInternalError("catalog.stream_contacts", err)
	}
	defer rows.Close()

	out := make(map[int64][]hotelContact)
	for rows.Next() {
		var (
			hotelID int64
			c       hotelContact
		)
		if err := rows.Scan(&hotelID, &c.kind, &c.value); err != nil {
			return nil, errors.NewDBInternalError("catalog.stream_contacts", err)
		}
		out[hotelID] = append(out[hotelID], c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBInternalError("catalog.stream_contacts", err)
	}
	return out, nil
}

// nestedSeparator joins multi-valued children into one scalar cell for
// the flattened formats.
const nestedSeparator = "; "

func buildHotelRow(h hotelRow, locations []hotelLocation, contacts []hotelContact) model.Row {
	locCells := make([]string, 0, len(locations))
	locDocs := make([]map[string]any, 0, len(locations))
	details := make([][]string, 0, len(locations))
	for _, l := range locations {
		locCells = append(locCells, l.address)
		doc := map[string]any{"address": l.address}
		detail := []string{strconv.FormatInt(h.id, 10), l.address, "", ""}
		if l.latitude != nil {
			doc["latitude"] = *l.latitude
			detail[2] = strconv.FormatFloat(*l.latitude, 'f', 6, 64)
		}
		if l.longitude != nil {
			doc["longitude"] = *l.longitude
			detail[3] = strconv.FormatFloat(*l.longitude, 'f', 6, 64)
		}
		locDocs = append(locDocs, doc)
		details = append(details, detail)
	}

	contactCells := make([]string, 0, len(contacts))
	contactDocs := make([]map[string]any, 0, len(contacts))
	for _, c := range contacts {
		contactCells = append(contactCells, c.kind+":"+c.value)
		contactDocs = append(contactDocs, map[string]any{"kind": c.kind, "value": c.value})
	}

	return model.Row{
		ID: h.id,
		Cells: []string{
			strconv.FormatInt(h.id, 10),
			h.source,
			h.name,
			h.country,
			h.city,
			h.category,
			strconv.FormatFloat(h.rating, 'f', 1, 64),
			h.updatedAt.UTC().Format(time.RFC3339),
			strings.Join(locCells, nestedSeparator),
			strings.Join(contactCells, nestedSeparator),
		},
		Doc: map[string]any{
			"id":         h.id,
			"source":     h.source,
			"name":       h.name,
			"country":    h.country,
			"city":       h.city,
			"category":   h.category,
			"rating":     h.rating,
			"updated_at": h.updatedAt.UTC().Format(time.RFC3339),
			"locations":  locDocs,
			"contacts":   contactDocs,
		},
		Details: details,
	}
}

func (it *batchIterator) nextMappings(ctx context.Context) ([]model.Row, error) {
	db, err := it.storage.Database()
	if err != nil {
		return nil, errors.NewDBInternalError("catalog.stream_mappings", err)
	}

	n := len(it.query.Args)
	sql := fmt.Sprintf(`
		SELECT m.id, m.source_id, m.provider_hotel_id, m.hotel_id, m.confidence, m.updated_at
		FROM hotel_mappings m
		WHERE %s AND m.id > $%d
		ORDER BY m.id ASC
		LIMIT $%d`, it.query.Where, n+1, n+2)
	args := append(slices.Clone(it.query.Args), it.lastID, it.batchSize)

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.NewDBInternalError("catalog.stream_mappings", err)
	}
	defer rows.Close()

	var out []model.Row
	for rows.Next() {
		var (
			id, hotelID     int64
			source, provID  string
			confidence      float64
			updatedAt       time.Time
		)
		if err := rows.Scan(&id, &source, &provID, &hotelID, &confidence, &updatedAt); err != nil {
			return nil, errors.NewDBInternalError("catalog.stream_mappings", err)
		}
		out = append(out, model.Row{
			ID: id,
			Cells: []string{
				strconv.FormatInt(id, 10),
				source,
				provID,
				strconv.FormatInt(hotelID, 10),
				strconv.FormatFloat(confidence, 'f', 2, 64),
				updatedAt.UTC().Format(time.RFC3339),
			},
			Doc: map[string]any{
				"id":                id,
				"source":            source,
				"provider_hotel_id": provID,
				"hotel_id":          hotelID,
				"confidence":        confidence,
				"updated_at":        updatedAt.UTC().Format(time.RFC3339),
			},
		})
		it.lastID = id
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBInternalError("catalog.stream_mappings", err)
	}
	return out, nil
}

func (it *batchIterator) nextSupplierSummary(ctx context.Context) ([]model.Row, error) {
	db, err := it.storage.Database()
	if err != nil {
		return nil, errors.NewDBInternalError("catalog.stream_summary", err)
	}

	n := len(it.query.Args)
	sql := fmt.Sprintf(`
		SELECT h.source_id,
		       COUNT(*) AS hotel_count,
		       (SELECT COUNT(*) FROM hotel_mappings m WHERE m.source_id = h.source_id) AS mapping_count,
		       COUNT(DISTINCT h.country_code) AS country_count,
		       COALESCE(AVG(h.rating), 0) AS avg_rating
		FROM hotels h
		WHERE %s AND h.source_id > $%d
		GROUP BY h.source_id
		ORDER BY h.source_id ASC
		LIMIT $%d`, it.query.Where, n+1, n+2)
	args := append(slices.Clone(it.query.Args), it.lastKey, it.batchSize)

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.NewDBInternalError("catalog.stream_summary", err)
	}
	defer rows.Close()

	var out []model.Row
	for rows.Next() {
		var (
			source                                string
			hotelCount, mappingCount, countryCount int64
			avgRating                             float64
		)
		if err := rows.Scan(&source, &hotelCount, &mappingCount, &countryCount, &avgRating); err != nil {
			return nil, errors.NewDBInternalError("catalog.stream_summary", err)
		}
		it.rowSeq++
		out = append(out, model.Row{
			ID: it.rowSeq,
			Cells: []string{
				source,
				strconv.FormatInt(hotelCount, 10),
				strconv.FormatInt(mappingCount, 10),
				strconv.FormatInt(countryCount, 10),
				strconv.FormatFloat(avgRating, 'f', 2, 64),
			},
			Doc: map[string]any{
				"source":        source,
				"hotel_count":   hotelCount,
				"mapping_count": mappingCount,
				"country_count": countryCount,
				"avg_rating":    avgRating,
			},
		})
		it.lastKey = source
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBInternalError("catalog.stream_summary", err)
	}
	return out, nil
}
