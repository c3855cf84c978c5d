package storage

import "context"

// Backend is a persistence backend for the search index. Backends that
// cannot build ad-hoc relational queries (document stores, for instance)
// return nil from Relational; the search service degrades gracefully on
// such backends instead of failing.
type Backend interface {
	// Relational returns the relational query capability, or nil when the
	// backend does not support it.
	Relational() Relational
	Close() error
}

// Relational is the full document/field persistence and query surface of a
// relational backend.
type Relational interface {
	// SaveDocument inserts a document and its fields as one logical unit,
	// filling in the generated identifiers.
	SaveDocument(ctx context.Context, doc *DocumentRecord) error

	// DeleteByEntity removes the document matching the encoded entity id
	// and entity class, cascading to its fields. It reports whether a
	// document was removed; deleting an unindexed entity is not an error.
	DeleteByEntity(ctx context.Context, entityID, entityClass string) (bool, error)

	// GetByEntity loads the document matching the encoded entity id and
	// entity class, including its fields. Returns ErrNotFound when no
	// document matches.
	GetByEntity(ctx context.Context, entityID, entityClass string) (*DocumentRecord, error)

	// CountDocuments returns the number of indexed documents.
	CountDocuments(ctx context.Context) (int64, error)

	// ClearDocuments deletes all documents and fields in batches of the
	// given size. Fields are removed with their owning document in the
	// same batch, so an interrupted clear never leaves orphaned fields.
	ClearDocuments(ctx context.Context, batchSize int) error

	// QueryDocuments materializes one page of the documents matching the
	// query, fields included. limit <= 0 means no cap.
	QueryDocuments(ctx context.Context, q *DocumentQuery, offset, limit int) ([]*DocumentRecord, error)

	// CountQuery returns the number of distinct documents matching the
	// query.
	CountQuery(ctx context.Context, q *DocumentQuery) (int64, error)

	// TypeFacetCounts groups the base-match documents by entity type and
	// counts distinct documents per group, descending by count. Facet
	// filters on the query are deliberately ignored: counts answer "how
	// many results would this filter yield".
	TypeFacetCounts(ctx context.Context, q *DocumentQuery) ([]FacetCount, error)

	// FieldFacetCounts groups the fields of base-match documents by
	// (name, value) and counts distinct documents per group, descending
	// by count. A non-nil fields slice restricts the aggregation to the
	// named fields.
	FieldFacetCounts(ctx context.Context, q *DocumentQuery, fields []string) ([]FieldFacetCount, error)

	// ScanFieldValues streams the values of fields whose name is in
	// fieldNames and whose value contains term as a substring, in
	// discovery order. The callback returns false to stop early.
	ScanFieldValues(ctx context.Context, term string, fieldNames []string, fn func(value string) bool) error

	// BeginTx starts a transaction exposing the same surface.
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx is a transaction over a relational backend.
type Tx interface {
	Commit() error
	Rollback() error
	Relational
}

// DocumentRecord is the persisted form of a document.
type DocumentRecord struct {
	ID          int64
	EntityClass string
	EntityType  string
	EntityID    string // encoded form
	Fields      []FieldRecord
}

// FieldRecord is the persisted form of a field.
type FieldRecord struct {
	ID         int64
	DocumentID int64
	Name       string
	Value      string
	Serialized bool
}

// DocumentQuery describes a search: a substring term matched against the
// named searchable fields (the base match), narrowed by conjunctive facet
// filters.
type DocumentQuery struct {
	// Term is matched with LIKE %term% against the searchable fields.
	Term string
	// SearchFields are the field names the term is matched against.
	SearchFields []string
	// TypeFilter restricts results to documents with one of the given
	// entity types. Empty means unrestricted.
	TypeFilter []string
	// FieldFilters restricts results to documents having, per entry, a
	// field with the given name and one of the given values.
	FieldFilters map[string][]string
}

// FacetCount is one bucket of the entity type facet.
type FacetCount struct {
	Value string
	Count int64
}

// FieldFacetCount is one bucket of a field facet.
type FieldFacetCount struct {
	Field      string
	Value      string
	Serialized bool
	Count      int64
}
