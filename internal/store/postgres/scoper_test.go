package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoteldex/hotel-admin/internal/errors"
	"github.com/hoteldex/hotel-admin/internal/model"
)

func TestBuildQueryAlwaysNarrowsBySources(t *testing.T) {
	q, err := BuildQuery(model.KindHotels, model.FilterSpec{}, []string{"booking"})
	require.NoError(t, err)
	assert.Equal(t, "h.source_id = ANY($1)", q.Where)
	require.Len(t, q.Args, 1)
	assert.Equal(t, []string{"booking"}, q.Args[0])
}

func TestBuildQueryEmptyAllowedMatchesNothing(t *testing.T) {
	// An empty allowed set must still produce the narrowing condition, so
	// the query returns zero rows instead of everything.
	q, err := BuildQuery(model.KindHotels, model.FilterSpec{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "h.source_id = ANY($1)", q.Where)
	assert.Equal(t, []string{}, q.Args[0])
}

func TestBuildQueryAllPredicates(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	spec := model.FilterSpec{Predicates: []model.Predicate{
		model.SourceIn{Sources: []string{"booking"}},
		model.CountryIn{Codes: []string{"DE"}},
		model.RatingBetween{Min: 3, Max: 5},
		model.UpdatedBetween{From: from, To: to},
		model.IDIn{IDs: []int64{10, 20}},
		model.CategoryIn{Categories: []string{"resort"}},
	}}

	q, err := BuildQuery(model.KindHotels, spec, []string{"booking", "expedia"})
	require.NoError(t, err)
	assert.Equal(t,
		"h.source_id = ANY($1) AND h.source_id = ANY($2) AND h.country_code = ANY($3)"+
			" AND h.rating BETWEEN $4 AND $5 AND h.updated_at BETWEEN $6 AND $7"+
			" AND h.id = ANY($8) AND h.category = ANY($9)",
		q.Where)
	require.Len(t, q.Args, 9)
	assert.Equal(t, 3.0, q.Args[3])
	assert.Equal(t, 5.0, q.Args[4])
}

func TestBuildQueryMappingsAlias(t *testing.T) {
	q, err := BuildQuery(model.KindMappings, model.FilterSpec{Predicates: []model.Predicate{
		model.IDIn{IDs: []int64{1}},
	}}, []string{"booking"})
	require.NoError(t, err)
	assert.Equal(t, "m.source_id = ANY($1) AND m.id = ANY($2)", q.Where)
}

func TestBuildQueryUnsupportedPredicates(t *testing.T) {
	cases := []struct {
		kind model.Kind
		p    model.Predicate
	}{
		{model.KindMappings, model.CountryIn{Codes: []string{"DE"}}},
		{model.KindMappings, model.RatingBetween{Min: 1, Max: 2}},
		{model.KindMappings, model.CategoryIn{Categories: []string{"resort"}}},
		{model.KindSupplierSummary, model.IDIn{IDs: []int64{1}}},
	}
	for _, tc := range cases {
		_, err := BuildQuery(tc.kind, model.FilterSpec{Predicates: []model.Predicate{tc.p}}, []string{"booking"})
		require.Error(t, err, "%T on %s", tc.p, tc.kind)
		var appErr *errors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, 400, appErr.StatusCode)
	}
}

func TestBuildQueryRejectsInvalidFilter(t *testing.T) {
	_, err := BuildQuery(model.KindHotels, model.FilterSpec{Predicates: []model.Predicate{
		model.RatingBetween{Min: 5, Max: 1},
	}}, []string{"booking"})
	assert.Error(t, err)
}
