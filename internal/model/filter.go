package model

import (
	"fmt"
	"time"
)

// Predicate is one filter criterion of an export request. The set of
// variants is closed: an unsupported criterion cannot slip through as a
// silent match-all, it simply cannot be constructed.
type Predicate interface {
	Validate() error
	isPredicate()
}

// SourceIn restricts to the given data-source identifiers. The query is
// additionally narrowed by the caller's allowed-source set regardless of
// this predicate.
type SourceIn struct {
	Sources []string
}

// CountryIn restricts by ISO country code.
type CountryIn struct {
	Codes []string
}

// RatingBetween restricts by star rating, inclusive on both bounds.
type RatingBetween struct {
	Min float64
	Max float64
}

// UpdatedBetween restricts by last-update time, inclusive.
type UpdatedBetween struct {
	From time.Time
	To   time.Time
}

// IDIn restricts to explicit record identifiers.
type IDIn struct {
	IDs []int64
}

// CategoryIn restricts by free-form category label.
type CategoryIn struct {
	Categories []string
}

func (p SourceIn) isPredicate()       {}
func (p CountryIn) isPredicate()      {}
func (p RatingBetween) isPredicate()  {}
func (p UpdatedBetween) isPredicate() {}
func (p IDIn) isPredicate()           {}
func (p CategoryIn) isPredicate()     {}

func (p SourceIn) Validate() error {
	if len(p.Sources) == 0 {
		return fmt.Errorf("source filter requires at least one source")
	}
	return nil
}

func (p CountryIn) Validate() error {
	if len(p.Codes) == 0 {
		return fmt.Errorf("country filter requires at least one code")
	}
	return nil
}

func (p RatingBetween) Validate() error {
	if p.Min > p.Max {
		return fmt.Errorf("rating range: min %.1f greater than max %.1f", p.Min, p.Max)
	}
	return nil
}

func (p UpdatedBetween) Validate() error {
	if p.From.After(p.To) {
		return fmt.Errorf("date range: from %s after to %s",
			p.From.Format(time.RFC3339), p.To.Format(time.RFC3339))
	}
	return nil
}

func (p IDIn) Validate() error {
	if len(p.IDs) == 0 {
		return fmt.Errorf("id filter requires at least one id")
	}
	return nil
}

func (p CategoryIn) Validate() error {
	if len(p.Categories) == 0 {
		return fmt.Errorf("category filter requires at least one category")
	}
	return nil
}

// FilterSpec is the full filter of an export request.
type FilterSpec struct {
	Predicates []Predicate
}

func (f FilterSpec) Validate() error {
	for _, p := range f.Predicates {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// RequestedSources returns the sources named by SourceIn predicates, or
// nil when the spec carries no source restriction.
func (f FilterSpec) RequestedSources() []string {
	var out []string
	for _, p := range f.Predicates {
		if s, ok := p.(SourceIn); ok {
			out = append(out, s.Sources...)
		}
	}
	return out
}
