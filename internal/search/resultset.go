package search

import (
	"context"
	"fmt"

	"github.com/prismet/entitysearch/internal/storage"
	"github.com/prismet/entitysearch/pkg/model"
)

// Paginator turns the result set's deferred query into a page view.
// Implementations must execute the same underlying query the result set
// uses for GetResults, so both paths see an identical row set.
type Paginator interface {
	Paginate(ctx context.Context, rs *ResultSet, page, pageSize int) (*Page, error)
}

// Page is one page of search results.
type Page struct {
	Items      []*model.BaseDocument
	Page       int
	PageSize   int
	TotalItems int64
}

// TotalPages returns the number of pages at this page size.
func (p *Page) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return int((p.TotalItems + int64(p.PageSize) - 1) / int64(p.PageSize))
}

// ResultSet wraps the deferred search query together with the search term.
// Nothing is materialized until GetResults or Paginate is called, and
// materialization is repeatable.
type ResultSet struct {
	rel       storage.Relational
	query     *storage.DocumentQuery
	term      string
	startTag  string
	endTag    string
	paginator Paginator
	facets    *model.FacetSet
}

func newResultSet(rel storage.Relational, query *storage.DocumentQuery, term, startTag, endTag string) *ResultSet {
	return &ResultSet{
		rel:       rel,
		query:     query,
		term:      term,
		startTag:  startTag,
		endTag:    endTag,
		paginator: limitOffsetPaginator{},
	}
}

// Term returns the search term the result set was built for.
func (r *ResultSet) Term() string {
	return r.term
}

// SetPaginator replaces the pagination collaborator. The default paginates
// with limit/offset over the deferred query.
func (r *ResultSet) SetPaginator(p Paginator) {
	if p != nil {
		r.paginator = p
	}
}

// GetResults materializes one page of matching documents. limit <= 0 means
// no cap. Duplicate matches from join fan-out are already eliminated by the
// query.
func (r *ResultSet) GetResults(ctx context.Context, offset, limit int) ([]*model.BaseDocument, error) {
	records, err := r.rel.QueryDocuments(ctx, r.query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to materialize results: %w", err)
	}
	docs := make([]*model.BaseDocument, 0, len(records))
	for _, record := range records {
		doc, err := fromRecord(record)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// TotalCount returns the number of distinct matching documents.
func (r *ResultSet) TotalCount(ctx context.Context) (int64, error) {
	return r.rel.CountQuery(ctx, r.query)
}

// Paginate delegates to the pagination collaborator, passing through the
// same deferred query GetResults uses.
func (r *ResultSet) Paginate(ctx context.Context, page, pageSize int) (*Page, error) {
	return r.paginator.Paginate(ctx, r, page, pageSize)
}

// Excerpt produces a short snippet of the document's content field around
// the first occurrence of the search term, with the term wrapped in the
// highlight tags. The second return is false when the document has no
// content field.
func (r *ResultSet) Excerpt(doc *model.BaseDocument) (string, bool) {
	content, ok := contentText(doc)
	if !ok {
		return "", false
	}
	return buildExcerpt(content, r.term, r.startTag, r.endTag), true
}

// SetFacets attaches the facet counts computed for this search.
func (r *ResultSet) SetFacets(facets *model.FacetSet) {
	r.facets = facets
}

// Facets returns the attached facet counts, nil when none were computed.
func (r *ResultSet) Facets() *model.FacetSet {
	return r.facets
}

// contentText extracts the content field as one string, joining multi-value
// content in order.
func contentText(doc *model.BaseDocument) (string, bool) {
	value := doc.FieldValue(model.FieldContent)
	if value == nil {
		return "", false
	}
	switch v := value.(type) {
	case string:
		return v, true
	case []any:
		var parts []string
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
		return joinNonEmpty(parts), true
	default:
		return fmt.Sprint(v), true
	}
}

func joinNonEmpty(parts []string) string {
	var out string
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += p
	}
	return out
}

// limitOffsetPaginator is the default pagination provider: a limit/offset
// page over the deferred query plus a total count.
type limitOffsetPaginator struct{}

func (limitOffsetPaginator) Paginate(ctx context.Context, rs *ResultSet, page, pageSize int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	items, err := rs.GetResults(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}
	total, err := rs.TotalCount(ctx)
	if err != nil {
		return nil, err
	}
	return &Page{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
	}, nil
}
