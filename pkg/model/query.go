package model

// Query carries the parameters of one search call. It is consumed read-only
// by the search service.
type Query struct {
	// SearchTerm is matched as a substring against the searchable fields.
	SearchTerm string

	// Facets maps a facet field name to the set of allowed raw values.
	// Entries with an empty value set are ignored. All entries are
	// conjunctive: every listed facet must match.
	Facets map[string][]string

	// UsedFacets names the facet aggregates to compute. nil means "compute
	// all supported facets", an empty slice means "compute none".
	UsedFacets []string
}

// NewQuery creates a query for the given search term.
func NewQuery(term string) *Query {
	return &Query{SearchTerm: term}
}

// WithFacet restricts results to documents whose facet field has one of the
// allowed values.
func (q *Query) WithFacet(field string, values ...string) *Query {
	if q.Facets == nil {
		q.Facets = make(map[string][]string)
	}
	q.Facets[field] = append(q.Facets[field], values...)
	return q
}

// WithUsedFacets names the facet aggregates to compute.
func (q *Query) WithUsedFacets(fields ...string) *Query {
	if q.UsedFacets == nil {
		q.UsedFacets = make([]string, 0, len(fields))
	}
	q.UsedFacets = append(q.UsedFacets, fields...)
	return q
}

// ComputeFacet reports whether the aggregate for the given facet field was
// requested.
func (q *Query) ComputeFacet(field string) bool {
	if q.UsedFacets == nil {
		return true
	}
	for _, f := range q.UsedFacets {
		if f == field {
			return true
		}
	}
	return false
}
