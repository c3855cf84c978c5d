package model

// Facet is one aggregate bucket: a facet field value together with the
// number of matching documents.
type Facet struct {
	// Value is the raw stored form, usable as a filter value in a Query.
	Value string
	// DisplayValue is the decoded form for presentation.
	DisplayValue any
	// Count is the number of documents carrying the value.
	Count int64
}

// FacetSet accumulates facet buckets per field. The search service fills it
// in descending count order, so iteration order reflects relevance.
type FacetSet struct {
	order  []string
	facets map[string][]Facet
}

// NewFacetSet creates an empty facet set.
func NewFacetSet() *FacetSet {
	return &FacetSet{facets: make(map[string][]Facet)}
}

// AddFacetValue appends one bucket for the given facet field.
func (fs *FacetSet) AddFacetValue(field, value string, display any, count int64) {
	if _, seen := fs.facets[field]; !seen {
		fs.order = append(fs.order, field)
	}
	fs.facets[field] = append(fs.facets[field], Facet{
		Value:        value,
		DisplayValue: display,
		Count:        count,
	})
}

// Facets returns the buckets recorded for the given field in insertion
// order, or nil when the field has none.
func (fs *FacetSet) Facets(field string) []Facet {
	return fs.facets[field]
}

// FieldNames returns the facet fields in first-seen order.
func (fs *FacetSet) FieldNames() []string {
	return fs.order
}

// Len returns the total number of buckets across all fields.
func (fs *FacetSet) Len() int {
	n := 0
	for _, buckets := range fs.facets {
		n += len(buckets)
	}
	return n
}
