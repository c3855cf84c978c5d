package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismet/entitysearch/pkg/model"
)

func searchBeck(t *testing.T, svc *Service) *ResultSet {
	t.Helper()
	result, err := svc.Search(context.Background(), model.NewQuery("Beck").WithUsedFacets())
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func TestResultSet_Term(t *testing.T) {
	svc := newTestService(t)
	seedBeers(t, svc)

	result := searchBeck(t, svc)
	assert.Equal(t, "Beck", result.Term())
}

func TestResultSet_GetResultsIsRepeatable(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seedBeers(t, svc)

	result := searchBeck(t, svc)

	first, err := result.GetResults(ctx, 0, 0)
	require.NoError(t, err)
	second, err := result.GetResults(ctx, 0, 0)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID(), second[i].ID())
	}
}

func TestResultSet_Paginate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seedBeers(t, svc)

	result := searchBeck(t, svc)

	page, err := result.Paginate(ctx, 1, 2)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, int64(3), page.TotalItems)
	assert.Equal(t, 2, page.TotalPages())

	page, err = result.Paginate(ctx, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 2, page.Page)
}

func TestResultSet_PaginateClampsArguments(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seedBeers(t, svc)

	result := searchBeck(t, svc)

	page, err := result.Paginate(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 10, page.PageSize)
	assert.Len(t, page.Items, 3)
}

func TestResultSet_PageBeyondEnd(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seedBeers(t, svc)

	result := searchBeck(t, svc)

	page, err := result.Paginate(ctx, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, int64(3), page.TotalItems)
}

// recordingPaginator verifies the paginator collaborator is honored.
type recordingPaginator struct {
	called bool
}

func (p *recordingPaginator) Paginate(ctx context.Context, rs *ResultSet, page, pageSize int) (*Page, error) {
	p.called = true
	return &Page{Page: page, PageSize: pageSize}, nil
}

func TestResultSet_SetPaginator(t *testing.T) {
	svc := newTestService(t)
	seedBeers(t, svc)

	result := searchBeck(t, svc)

	custom := &recordingPaginator{}
	result.SetPaginator(custom)
	page, err := result.Paginate(context.Background(), 3, 7)
	require.NoError(t, err)
	assert.True(t, custom.called)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, 7, page.PageSize)

	// nil keeps the current paginator
	result.SetPaginator(nil)
	custom.called = false
	_, err = result.Paginate(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.True(t, custom.called)
}

func TestResultSet_Excerpt(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.SaveDocument(ctx,
		beerDoc(t, "beer-1", "", "Haake Beck", "Haake Beck is brewed in Bremen")))

	result := searchBeck(t, svc)
	docs, err := result.GetResults(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	excerpt, ok := result.Excerpt(docs[0])
	require.True(t, ok)
	assert.Equal(t, "Haake <em>Beck</em> is brewed in Bremen", excerpt)
}

func TestResultSet_ExcerptWithoutContent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.SaveDocument(ctx, beerDoc(t, "beer-1", "", "Haake Beck", "")))

	result := searchBeck(t, svc)
	docs, err := result.GetResults(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	_, ok := result.Excerpt(docs[0])
	assert.False(t, ok)
}

func TestResultSet_ExcerptJoinsMultiValueContent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	doc := beerDoc(t, "beer-1", "", "Haake Beck", "")
	require.NoError(t, doc.AddMultiValueField(model.FieldContent, "First part."))
	require.NoError(t, doc.AddMultiValueField(model.FieldContent, "Beck appears here."))
	require.NoError(t, svc.SaveDocument(ctx, doc))

	result := searchBeck(t, svc)
	docs, err := result.GetResults(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	excerpt, ok := result.Excerpt(docs[0])
	require.True(t, ok)
	assert.Equal(t, "First part. <em>Beck</em> appears here.", excerpt)
}

func TestPage_TotalPages(t *testing.T) {
	assert.Equal(t, 0, (&Page{PageSize: 0, TotalItems: 5}).TotalPages())
	assert.Equal(t, 1, (&Page{PageSize: 10, TotalItems: 5}).TotalPages())
	assert.Equal(t, 2, (&Page{PageSize: 10, TotalItems: 11}).TotalPages())
	assert.Equal(t, 0, (&Page{PageSize: 10, TotalItems: 0}).TotalPages())
}
