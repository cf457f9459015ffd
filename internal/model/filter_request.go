package model

import (
	"fmt"
	"time"
)

// Rating bounds used when a half-open rating range is requested.
const (
	RatingFloor = 0
	RatingCeil  = 5
)

// FilterRequest is the wire form of a filter spec. It travels in the
// submit payload and, serialized, in the queued task and the job's
// criteria blob, so a background worker can rebuild the exact spec the
// caller submitted.
type FilterRequest struct {
	Sources     []string   `json:"sources,omitempty"`
	Countries   []string   `json:"countries,omitempty"`
	RatingMin   *float64   `json:"rating_min,omitempty"`
	RatingMax   *float64   `json:"rating_max,omitempty"`
	UpdatedFrom *time.Time `json:"updated_from,omitempty"`
	UpdatedTo   *time.Time `json:"updated_to,omitempty"`
	IDs         []int64    `json:"ids,omitempty"`
	Categories  []string   `json:"categories,omitempty"`
}

// Spec builds the closed predicate set from the present fields.
func (r FilterRequest) Spec() (FilterSpec, error) {
	var spec FilterSpec

	if len(r.Sources) > 0 {
		spec.Predicates = append(spec.Predicates, SourceIn{Sources: r.Sources})
	}
	if len(r.Countries) > 0 {
		spec.Predicates = append(spec.Predicates, CountryIn{Codes: r.Countries})
	}
	if r.RatingMin != nil || r.RatingMax != nil {
		p := RatingBetween{Min: RatingFloor, Max: RatingCeil}
		if r.RatingMin != nil {
			p.Min = *r.RatingMin
		}
		if r.RatingMax != nil {
			p.Max = *r.RatingMax
		}
		spec.Predicates = append(spec.Predicates, p)
	}
	if r.UpdatedFrom != nil || r.UpdatedTo != nil {
		if r.UpdatedFrom == nil || r.UpdatedTo == nil {
			return FilterSpec{}, fmt.Errorf("updated_from and updated_to must be provided together")
		}
		spec.Predicates = append(spec.Predicates, UpdatedBetween{From: *r.UpdatedFrom, To: *r.UpdatedTo})
	}
	if len(r.IDs) > 0 {
		spec.Predicates = append(spec.Predicates, IDIn{IDs: r.IDs})
	}
	if len(r.Categories) > 0 {
		spec.Predicates = append(spec.Predicates, CategoryIn{Categories: r.Categories})
	}

	if err := spec.Validate(); err != nil {
		return FilterSpec{}, err
	}
	return spec, nil
}
