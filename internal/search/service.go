package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/prismet/entitysearch/internal/codec"
	"github.com/prismet/entitysearch/internal/storage"
	"github.com/prismet/entitysearch/pkg/model"
)

// ErrNoBackend is returned when the service has no usable persistence
// backend. This is a configuration error, not a recoverable condition.
var ErrNoBackend = errors.New("no active persistence backend configured")

// InvalidDocumentTypeError is returned when a document of a foreign
// backend's concrete type is passed to a write operation.
type InvalidDocumentTypeError struct {
	Got  string
	Want string
}

func (e *InvalidDocumentTypeError) Error() string {
	return fmt.Sprintf("given document is of type %s, expected %s", e.Got, e.Want)
}

// Config contains configuration for the search service
type Config struct {
	// SearchableFields are matched against the search term (default:
	// title, content).
	SearchableFields []string
	// HighlightStartTag and HighlightEndTag wrap the matched term in
	// excerpts (default: <em> and </em>).
	HighlightStartTag string
	HighlightEndTag   string
	// ClearBatchSize bounds how many documents one clear-index batch
	// removes (default: 50).
	ClearBatchSize int
	// SuggestionCacheSize is the autocomplete cache capacity (default: 1000).
	SuggestionCacheSize int
	// SuggestionCacheTTL is how long cached suggestions stay valid
	// (default: 1 minute; the cache is purged on every index write anyway).
	SuggestionCacheTTL time.Duration
}

func (c *Config) applyDefaults() {
	if len(c.SearchableFields) == 0 {
		c.SearchableFields = []string{model.FieldTitle, model.FieldContent}
	}
	if c.HighlightStartTag == "" {
		c.HighlightStartTag = "<em>"
	}
	if c.HighlightEndTag == "" {
		c.HighlightEndTag = "</em>"
	}
	if c.ClearBatchSize <= 0 {
		c.ClearBatchSize = 50
	}
	if c.SuggestionCacheSize <= 0 {
		c.SuggestionCacheSize = 1000
	}
	if c.SuggestionCacheTTL <= 0 {
		c.SuggestionCacheTTL = time.Minute
	}
}

// suggestEntry is a cached autocomplete result with expiration time
type suggestEntry struct {
	suggestions []string
	expiresAt   time.Time
}

// Service indexes documents and executes substring-match searches with
// faceted aggregate counts over them.
type Service struct {
	backend storage.Backend
	cfg     Config
	logger  *zap.Logger
	cache   *lru.Cache[string, *suggestEntry]
}

// NewService creates a search service over the given backend.
func NewService(backend storage.Backend, cfg Config, logger *zap.Logger) *Service {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	cache, err := lru.New[string, *suggestEntry](cfg.SuggestionCacheSize)
	if err != nil {
		// Only possible with a non-positive size, which applyDefaults rules out
		panic(fmt.Sprintf("failed to create suggestion cache: %v", err))
	}

	return &Service{
		backend: backend,
		cfg:     cfg,
		logger:  logger,
		cache:   cache,
	}
}

// relational returns the backend's relational capability, or nil when the
// backend cannot build relational queries.
func (s *Service) relational() storage.Relational {
	if s.backend == nil {
		return nil
	}
	return s.backend.Relational()
}

// writeBackend returns the relational capability required by write
// operations, or ErrNoBackend when it is missing.
func (s *Service) writeBackend() (storage.Relational, error) {
	if s.backend == nil {
		return nil, ErrNoBackend
	}
	rel := s.backend.Relational()
	if rel == nil {
		return nil, ErrNoBackend
	}
	return rel, nil
}

// ClearIndex deletes all documents and fields. Deletion happens in batches
// so large indexes do not pin memory; an interrupted clear leaves a smaller
// but consistent index.
func (s *Service) ClearIndex(ctx context.Context) error {
	rel, err := s.writeBackend()
	if err != nil {
		return err
	}
	if err := rel.ClearDocuments(ctx, s.cfg.ClearBatchSize); err != nil {
		return err
	}
	s.cache.Purge()
	s.logger.Debug("search index cleared")
	return nil
}

// SaveDocument upserts a document: any existing document with the same
// (entity id, entity class) is removed first, then the document and its
// fields are persisted as one transaction. Re-indexing the same source
// entity therefore never duplicates a document.
func (s *Service) SaveDocument(ctx context.Context, doc model.Document) error {
	base, err := requireBaseDocument(doc)
	if err != nil {
		return err
	}
	rel, err := s.writeBackend()
	if err != nil {
		return err
	}

	tx, err := rel.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := saveOn(ctx, tx, base); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit document: %w", err)
	}

	s.cache.Purge()
	s.logger.Debug("document saved",
		zap.String("entity_class", base.EntityClass()),
		zap.String("entity_id", base.InternalEntityID()))
	return nil
}

// saveOn performs the delete-then-insert upsert on the given querier. When
// the querier is an open batch transaction, the delete also reconciles a
// pending insert of the same logical document staged earlier in that
// transaction, so one flush never carries a duplicate.
func saveOn(ctx context.Context, rel storage.Relational, doc *model.BaseDocument) error {
	if doc.InternalEntityID() != "" && doc.EntityClass() != "" {
		if _, err := rel.DeleteByEntity(ctx, doc.InternalEntityID(), doc.EntityClass()); err != nil {
			return err
		}
	}
	record, err := toRecord(doc)
	if err != nil {
		return err
	}
	if err := rel.SaveDocument(ctx, record); err != nil {
		return err
	}
	doc.SetID(record.ID)
	for i, field := range doc.InternalFields() {
		if i < len(record.Fields) {
			field.SetID(record.Fields[i].ID)
		}
	}
	return nil
}

// RemoveDocument deletes the persisted document matching the given
// document's (entity id, entity class). Removing a document that was never
// indexed is a no-op, not an error. Documents of a foreign backend's
// concrete type are rejected.
func (s *Service) RemoveDocument(ctx context.Context, doc model.Document) error {
	base, err := requireBaseDocument(doc)
	if err != nil {
		return err
	}
	rel, err := s.writeBackend()
	if err != nil {
		return err
	}

	// Without both key parts the lookup matches nothing; stay silent, the
	// entity was simply never indexed.
	if base.InternalEntityID() == "" || base.EntityClass() == "" {
		return nil
	}

	removed, err := rel.DeleteByEntity(ctx, base.InternalEntityID(), base.EntityClass())
	if err != nil {
		return err
	}
	if removed {
		s.cache.Purge()
		s.logger.Debug("document removed",
			zap.String("entity_class", base.EntityClass()),
			zap.String("entity_id", base.InternalEntityID()))
	}
	return nil
}

// requireBaseDocument guards write operations against documents of a
// foreign backend's concrete type.
func requireBaseDocument(doc model.Document) (*model.BaseDocument, error) {
	base, ok := doc.(*model.BaseDocument)
	if !ok {
		return nil, &InvalidDocumentTypeError{
			Got:  fmt.Sprintf("%T", doc),
			Want: fmt.Sprintf("%T", &model.BaseDocument{}),
		}
	}
	return base, nil
}

// Autocomplete returns up to maxResults distinct whitespace-delimited
// tokens drawn from searchable fields whose value contains term as a
// substring. Candidates are then filtered to tokens beginning with term,
// case-insensitively, preserving discovery order. A backend without
// relational query support yields an empty slice.
func (s *Service) Autocomplete(ctx context.Context, term string, maxResults int) ([]string, error) {
	if s.backend == nil {
		return nil, ErrNoBackend
	}
	if maxResults <= 0 {
		maxResults = 10
	}
	rel := s.relational()
	if rel == nil {
		return []string{}, nil
	}
	if strings.TrimSpace(term) == "" {
		return []string{}, nil
	}

	cacheKey := term + "|" + strconv.Itoa(maxResults)
	if entry, ok := s.cache.Get(cacheKey); ok {
		if time.Now().Before(entry.expiresAt) {
			return append([]string(nil), entry.suggestions...), nil
		}
		s.cache.Remove(cacheKey)
	}

	suggestions := make([]string, 0, maxResults)
	seen := make(map[string]struct{})
	err := rel.ScanFieldValues(ctx, term, s.cfg.SearchableFields, func(value string) bool {
		for _, token := range tokenize(value) {
			if !hasPrefixFold(token, term) {
				continue
			}
			if _, dup := seen[token]; dup {
				continue
			}
			seen[token] = struct{}{}
			suggestions = append(suggestions, token)
		}
		// One extra candidate proves the cut-off; no need to scan further
		return len(suggestions) <= maxResults
	})
	if err != nil {
		return nil, fmt.Errorf("autocomplete scan failed: %w", err)
	}

	if len(suggestions) > maxResults {
		suggestions = suggestions[:maxResults]
	}

	s.cache.Add(cacheKey, &suggestEntry{
		suggestions: append([]string(nil), suggestions...),
		expiresAt:   time.Now().Add(s.cfg.SuggestionCacheTTL),
	})
	return suggestions, nil
}

// Search executes the query and returns a result set with facet counts
// attached. A backend without relational query support yields a nil result
// set: "cannot search" and "no results" are different conditions and
// callers must be able to tell them apart.
func (s *Service) Search(ctx context.Context, query *model.Query) (*ResultSet, error) {
	if s.backend == nil {
		return nil, ErrNoBackend
	}
	rel := s.relational()
	if rel == nil {
		return nil, nil
	}

	dq := s.buildDocumentQuery(query)
	result := newResultSet(rel, dq, query.SearchTerm, s.cfg.HighlightStartTag, s.cfg.HighlightEndTag)

	facets, err := s.computeFacets(ctx, rel, query, dq)
	if err != nil {
		return nil, err
	}
	result.SetFacets(facets)

	return result, nil
}

// buildDocumentQuery translates the caller's query into the storage query:
// the term against the searchable fields, plus the facet filters with the
// reserved type facet mapped onto the entity type column.
func (s *Service) buildDocumentQuery(query *model.Query) *storage.DocumentQuery {
	dq := &storage.DocumentQuery{
		Term:         query.SearchTerm,
		SearchFields: s.cfg.SearchableFields,
	}
	for field, values := range query.Facets {
		if len(values) == 0 {
			continue
		}
		if field == model.FieldType {
			dq.TypeFilter = append(dq.TypeFilter, values...)
			continue
		}
		if dq.FieldFilters == nil {
			dq.FieldFilters = make(map[string][]string)
		}
		dq.FieldFilters[field] = append(dq.FieldFilters[field], values...)
	}
	return dq
}

// computeFacets aggregates the requested facets against the unfiltered base
// match, so every count answers "how many results would I get if I added
// this filter".
func (s *Service) computeFacets(ctx context.Context, rel storage.Relational, query *model.Query, dq *storage.DocumentQuery) (*model.FacetSet, error) {
	facets := model.NewFacetSet()

	if query.ComputeFacet(model.FieldType) {
		counts, err := rel.TypeFacetCounts(ctx, dq)
		if err != nil {
			return nil, fmt.Errorf("type facet aggregation failed: %w", err)
		}
		for _, fc := range counts {
			facets.AddFacetValue(model.FieldType, fc.Value, fc.Value, fc.Count)
		}
	}

	fieldFacets, all := s.requestedFieldFacets(query)
	if all || len(fieldFacets) > 0 {
		var restrict []string
		if !all {
			restrict = fieldFacets
		}
		counts, err := rel.FieldFacetCounts(ctx, dq, restrict)
		if err != nil {
			return nil, fmt.Errorf("field facet aggregation failed: %w", err)
		}
		for _, fc := range counts {
			display, err := codec.DecodeValue(fc.Value, fc.Serialized)
			if err != nil {
				return nil, err
			}
			facets.AddFacetValue(fc.Field, fc.Value, display, fc.Count)
		}
	}

	return facets, nil
}

// requestedFieldFacets returns the non-type facet fields to aggregate. The
// boolean is true when all fields are requested (used facets unset).
func (s *Service) requestedFieldFacets(query *model.Query) ([]string, bool) {
	if query.UsedFacets == nil {
		return nil, true
	}
	fields := make([]string, 0, len(query.UsedFacets))
	for _, f := range query.UsedFacets {
		if f == model.FieldType {
			continue
		}
		fields = append(fields, f)
	}
	return fields, false
}

// IndexSize returns the number of indexed documents, or zero when the
// backend cannot count them.
func (s *Service) IndexSize(ctx context.Context) (int64, error) {
	if s.backend == nil {
		return 0, ErrNoBackend
	}
	rel := s.relational()
	if rel == nil {
		return 0, nil
	}
	return rel.CountDocuments(ctx)
}

// tokenize splits a field value into candidate suggestion tokens:
// whitespace-delimited words with markup and surrounding punctuation
// stripped.
func tokenize(value string) []string {
	words := strings.Fields(stripTags(value))
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		word = strings.Trim(word, `.,;:"'+()`)
		if word != "" {
			tokens = append(tokens, word)
		}
	}
	return tokens
}

// stripTags removes <...> markup so tag fragments never become suggestions.
func stripTags(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
			b.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// hasPrefixFold reports whether s begins with prefix, case-insensitively.
func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
