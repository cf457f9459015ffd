package postgres

import (
	"fmt"
	"strings"

	"github.com/hoteldex/hotel-admin/internal/errors"
	"github.com/hoteldex/hotel-admin/internal/model"
	"github.com/hoteldex/hotel-admin/internal/store"
)

// tableAlias is the row alias each kind's SQL uses for the filtered
// table. Hotels and the supplier summary both filter the hotels table;
// mappings filter hotel_mappings.
func tableAlias(kind model.Kind) string {
	if kind == model.KindMappings {
		return "m"
	}
	return "h"
}

// BuildQuery translates a filter spec plus the caller's allowed-source
// set into a scoped query. The allowed-source narrowing is always the
// first condition: omitting every filter still cannot widen an export
// past the caller's sources.
func BuildQuery(kind model.Kind, filter model.FilterSpec, allowedSources []string) (*store.ScopedQuery, error) {
	if err := filter.Validate(); err != nil {
		return nil, errors.Validation(err.Error(), errors.WithID("export.filter.invalid"))
	}

	alias := tableAlias(kind)
	if allowedSources == nil {
		allowedSources = []string{}
	}

	conds := []string{fmt.Sprintf("%s.source_id = ANY($1)", alias)}
	args := []any{allowedSources}
	next := func() int { return len(args) + 1 }

	for _, p := range filter.Predicates {
		switch p := p.(type) {
		case model.SourceIn:
			conds = append(conds, fmt.Sprintf("%s.source_id = ANY($%d)", alias, next()))
			args = append(args, p.Sources)
		case model.CountryIn:
			if kind == model.KindMappings {
				return nil, unsupportedPredicate(kind, "country")
			}
			conds = append(conds, fmt.Sprintf("%s.country_code = ANY($%d)", alias, next()))
			args = append(args, p.Codes)
		case model.RatingBetween:
			if kind == model.KindMappings {
				return nil, unsupportedPredicate(kind, "rating")
			}
			conds = append(conds, fmt.Sprintf("%s.rating BETWEEN $%d AND $%d", alias, next(), next()+1))
			args = append(args, p.Min, p.Max)
		case model.UpdatedBetween:
			conds = append(conds, fmt.Sprintf("%s.updated_at BETWEEN $%d AND $%d", alias, next(), next()+1))
			args = append(args, p.From, p.To)
		case model.IDIn:
			if kind == model.KindSupplierSummary {
				return nil, unsupportedPredicate(kind, "id")
			}
			conds = append(conds, fmt.Sprintf("%s.id = ANY($%d)", alias, next()))
			args = append(args, p.IDs)
		case model.CategoryIn:
			if kind == model.KindMappings {
				return nil, unsupportedPredicate(kind, "category")
			}
			conds = append(conds, fmt.Sprintf("%s.category = ANY($%d)", alias, next()))
			args = append(args, p.Categories)
		default:
			return nil, errors.Validation(
				fmt.Sprintf("unsupported filter predicate %T", p),
				errors.WithID("export.filter.unsupported"))
		}
	}

	return &store.ScopedQuery{
		Kind:  kind,
		Where: strings.Join(conds, " AND "),
		Args:  args,
	}, nil
}

func unsupportedPredicate(kind model.Kind, name string) error {
	return errors.Validation(
		fmt.Sprintf("%s filter is not supported for %s exports", name, kind),
		errors.WithID("export.filter.unsupported"))
}
