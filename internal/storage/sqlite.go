package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when a requested document doesn't exist
	ErrNotFound = errors.New("not found")
)

// defaultClearBatch bounds how many documents one clear-index batch removes.
const defaultClearBatch = 50

// SQLiteBackend implements the Backend and Relational interfaces using SQLite
type SQLiteBackend struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Foreign keys drive the field-to-document cascade
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteBackend creates a new SQLite backend instance
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

// Relational returns the relational query capability. SQLite always
// supports it.
func (s *SQLiteBackend) Relational() Relational {
	return s
}

// Close closes the database connection
func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteBackend) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, backend: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	backend *SQLiteBackend
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteBackend) querier() querier {
	return s.db
}

// Document operations

// saveDocumentWithQuerier is the internal implementation that uses a querier
func (s *SQLiteBackend) saveDocumentWithQuerier(ctx context.Context, q querier, doc *DocumentRecord) error {
	query := `
		INSERT INTO documents (entity_class, entity_type, entity_id)
		VALUES (?, ?, ?)
	`
	result, err := q.ExecContext(ctx, query, doc.EntityClass, doc.EntityType, doc.EntityID)
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	doc.ID = id

	fieldQuery := `
		INSERT INTO fields (document_id, field_name, field_value, serialized)
		VALUES (?, ?, ?, ?)
	`
	for i := range doc.Fields {
		field := &doc.Fields[i]
		result, err := q.ExecContext(ctx, fieldQuery, doc.ID, field.Name, field.Value, field.Serialized)
		if err != nil {
			return fmt.Errorf("failed to save field %s: %w", field.Name, err)
		}
		fieldID, err := result.LastInsertId()
		if err != nil {
			return err
		}
		field.ID = fieldID
		field.DocumentID = doc.ID
	}

	return nil
}

func (s *SQLiteBackend) SaveDocument(ctx context.Context, doc *DocumentRecord) error {
	return s.saveDocumentWithQuerier(ctx, s.querier(), doc)
}

// deleteByEntityWithQuerier is the internal implementation that uses a querier
func (s *SQLiteBackend) deleteByEntityWithQuerier(ctx context.Context, q querier, entityID, entityClass string) (bool, error) {
	query := `DELETE FROM documents WHERE entity_id = ? AND entity_class = ?`
	result, err := q.ExecContext(ctx, query, entityID, entityClass)
	if err != nil {
		return false, fmt.Errorf("failed to delete document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *SQLiteBackend) DeleteByEntity(ctx context.Context, entityID, entityClass string) (bool, error) {
	return s.deleteByEntityWithQuerier(ctx, s.querier(), entityID, entityClass)
}

// getByEntityWithQuerier is the internal implementation that uses a querier
func (s *SQLiteBackend) getByEntityWithQuerier(ctx context.Context, q querier, entityID, entityClass string) (*DocumentRecord, error) {
	query := `
		SELECT id, entity_class, entity_type, entity_id
		FROM documents
		WHERE entity_id = ? AND entity_class = ?
	`
	var doc DocumentRecord
	err := q.QueryRowContext(ctx, query, entityID, entityClass).Scan(
		&doc.ID, &doc.EntityClass, &doc.EntityType, &doc.EntityID,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	fields, err := s.loadFieldsWithQuerier(ctx, q, []int64{doc.ID})
	if err != nil {
		return nil, err
	}
	doc.Fields = fields[doc.ID]
	return &doc, nil
}

func (s *SQLiteBackend) GetByEntity(ctx context.Context, entityID, entityClass string) (*DocumentRecord, error) {
	return s.getByEntityWithQuerier(ctx, s.querier(), entityID, entityClass)
}

// countDocumentsWithQuerier is the internal implementation that uses a querier
func (s *SQLiteBackend) countDocumentsWithQuerier(ctx context.Context, q querier) (int64, error) {
	var count int64
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

func (s *SQLiteBackend) CountDocuments(ctx context.Context) (int64, error) {
	return s.countDocumentsWithQuerier(ctx, s.querier())
}

// clearDocumentsWithQuerier is the internal implementation that uses a querier
func (s *SQLiteBackend) clearDocumentsWithQuerier(ctx context.Context, q querier, batchSize int) error {
	if batchSize <= 0 {
		batchSize = defaultClearBatch
	}
	// Each batch removes a slice of documents and, via the foreign key
	// cascade, their fields. An interruption between batches leaves a
	// smaller but consistent index.
	query := `DELETE FROM documents WHERE id IN (SELECT id FROM documents LIMIT ?)`
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		result, err := q.ExecContext(ctx, query, batchSize)
		if err != nil {
			return fmt.Errorf("failed to clear documents: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}
	}
}

func (s *SQLiteBackend) ClearDocuments(ctx context.Context, batchSize int) error {
	return s.clearDocumentsWithQuerier(ctx, s.querier(), batchSize)
}

// loadFieldsWithQuerier loads the fields of the given documents, keyed by
// document id and ordered by insertion.
func (s *SQLiteBackend) loadFieldsWithQuerier(ctx context.Context, q querier, docIDs []int64) (map[int64][]FieldRecord, error) {
	fields := make(map[int64][]FieldRecord, len(docIDs))
	if len(docIDs) == 0 {
		return fields, nil
	}

	args := make([]interface{}, len(docIDs))
	for i, id := range docIDs {
		args[i] = id
	}
	query := `
		SELECT id, document_id, field_name, field_value, serialized
		FROM fields
		WHERE document_id IN (` + placeholders(len(docIDs)) + `)
		ORDER BY id
	`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var field FieldRecord
		var value sql.NullString
		if err := rows.Scan(&field.ID, &field.DocumentID, &field.Name, &value, &field.Serialized); err != nil {
			return nil, err
		}
		field.Value = value.String
		fields[field.DocumentID] = append(fields[field.DocumentID], field)
	}
	return fields, rows.Err()
}

// Search operations

// baseMatchSQL builds the subquery selecting the ids of all documents where
// any searchable field contains the term as a substring.
func baseMatchSQL(q *DocumentQuery) (string, []interface{}) {
	if len(q.SearchFields) == 0 {
		return "SELECT d.id FROM documents d WHERE 1=0", nil
	}

	conditions := make([]string, 0, len(q.SearchFields))
	args := make([]interface{}, 0, len(q.SearchFields)*2)
	for _, field := range q.SearchFields {
		conditions = append(conditions, "(f.field_name = ? AND f.field_value LIKE ?)")
		args = append(args, field, "%"+q.Term+"%")
	}

	query := `SELECT DISTINCT d.id FROM documents d JOIN fields f ON f.document_id = d.id WHERE ` +
		strings.Join(conditions, " OR ")
	return query, args
}

// facetedWhereSQL builds the WHERE clause of the combined query: the base
// match constrained by the conjunctive facet filters.
func facetedWhereSQL(q *DocumentQuery) (string, []interface{}) {
	base, args := baseMatchSQL(q)
	conditions := []string{"d.id IN (" + base + ")"}

	if len(q.TypeFilter) > 0 {
		conditions = append(conditions, "d.entity_type IN ("+placeholders(len(q.TypeFilter))+")")
		for _, t := range q.TypeFilter {
			args = append(args, t)
		}
	}

	// Sorted iteration keeps the generated SQL deterministic
	fieldNames := make([]string, 0, len(q.FieldFilters))
	for name := range q.FieldFilters {
		fieldNames = append(fieldNames, name)
	}
	sort.Strings(fieldNames)
	for _, name := range fieldNames {
		values := q.FieldFilters[name]
		if len(values) == 0 {
			continue
		}
		conditions = append(conditions,
			"EXISTS (SELECT 1 FROM fields ff WHERE ff.document_id = d.id AND ff.field_name = ? AND ff.field_value IN ("+placeholders(len(values))+"))")
		args = append(args, name)
		for _, v := range values {
			args = append(args, v)
		}
	}

	return strings.Join(conditions, " AND "), args
}

// queryDocumentsWithQuerier is the internal implementation that uses a querier
func (s *SQLiteBackend) queryDocumentsWithQuerier(ctx context.Context, q querier, dq *DocumentQuery, offset, limit int) ([]*DocumentRecord, error) {
	where, args := facetedWhereSQL(dq)
	if limit <= 0 {
		limit = -1 // SQLite: negative limit means unbounded
	}
	if offset < 0 {
		offset = 0
	}
	query := `
		SELECT d.id, d.entity_class, d.entity_type, d.entity_id
		FROM documents d
		WHERE ` + where + `
		ORDER BY d.id
		LIMIT ? OFFSET ?
	`
	args = append(args, limit, offset)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	docs := make([]*DocumentRecord, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		var doc DocumentRecord
		if err := rows.Scan(&doc.ID, &doc.EntityClass, &doc.EntityType, &doc.EntityID); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
		ids = append(ids, doc.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fields, err := s.loadFieldsWithQuerier(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		doc.Fields = fields[doc.ID]
	}
	return docs, nil
}

func (s *SQLiteBackend) QueryDocuments(ctx context.Context, dq *DocumentQuery, offset, limit int) ([]*DocumentRecord, error) {
	return s.queryDocumentsWithQuerier(ctx, s.querier(), dq, offset, limit)
}

// countQueryWithQuerier is the internal implementation that uses a querier
func (s *SQLiteBackend) countQueryWithQuerier(ctx context.Context, q querier, dq *DocumentQuery) (int64, error) {
	where, args := facetedWhereSQL(dq)
	query := `SELECT COUNT(*) FROM documents d WHERE ` + where

	var count int64
	if err := q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count query results: %w", err)
	}
	return count, nil
}

func (s *SQLiteBackend) CountQuery(ctx context.Context, dq *DocumentQuery) (int64, error) {
	return s.countQueryWithQuerier(ctx, s.querier(), dq)
}

// typeFacetCountsWithQuerier is the internal implementation that uses a querier
func (s *SQLiteBackend) typeFacetCountsWithQuerier(ctx context.Context, q querier, dq *DocumentQuery) ([]FacetCount, error) {
	base, args := baseMatchSQL(dq)
	query := `
		SELECT d.entity_type, COUNT(DISTINCT d.id) AS result_count
		FROM documents d
		WHERE d.id IN (` + base + `)
		GROUP BY d.entity_type
		ORDER BY result_count DESC, d.entity_type ASC
	`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	counts := make([]FacetCount, 0)
	for rows.Next() {
		var fc FacetCount
		if err := rows.Scan(&fc.Value, &fc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, fc)
	}
	return counts, rows.Err()
}

func (s *SQLiteBackend) TypeFacetCounts(ctx context.Context, dq *DocumentQuery) ([]FacetCount, error) {
	return s.typeFacetCountsWithQuerier(ctx, s.querier(), dq)
}

// fieldFacetCountsWithQuerier is the internal implementation that uses a querier
func (s *SQLiteBackend) fieldFacetCountsWithQuerier(ctx context.Context, q querier, dq *DocumentQuery, fields []string) ([]FieldFacetCount, error) {
	base, args := baseMatchSQL(dq)
	query := `
		SELECT f.field_name, f.field_value, f.serialized, COUNT(DISTINCT d.id) AS result_count
		FROM documents d
		JOIN fields f ON f.document_id = d.id
		WHERE d.id IN (` + base + `)
	`
	if fields != nil {
		query += ` AND f.field_name IN (` + placeholders(len(fields)) + `)`
		for _, name := range fields {
			args = append(args, name)
		}
	}
	query += `
		GROUP BY f.field_name, f.field_value, f.serialized
		ORDER BY result_count DESC, f.field_name ASC, f.field_value ASC
	`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	counts := make([]FieldFacetCount, 0)
	for rows.Next() {
		var fc FieldFacetCount
		var value sql.NullString
		if err := rows.Scan(&fc.Field, &value, &fc.Serialized, &fc.Count); err != nil {
			return nil, err
		}
		fc.Value = value.String
		counts = append(counts, fc)
	}
	return counts, rows.Err()
}

func (s *SQLiteBackend) FieldFacetCounts(ctx context.Context, dq *DocumentQuery, fields []string) ([]FieldFacetCount, error) {
	return s.fieldFacetCountsWithQuerier(ctx, s.querier(), dq, fields)
}

// scanFieldValuesWithQuerier is the internal implementation that uses a querier
func (s *SQLiteBackend) scanFieldValuesWithQuerier(ctx context.Context, q querier, term string, fieldNames []string, fn func(value string) bool) error {
	if len(fieldNames) == 0 {
		return nil
	}

	conditions := make([]string, 0, len(fieldNames))
	args := make([]interface{}, 0, len(fieldNames)*2)
	for _, name := range fieldNames {
		conditions = append(conditions, "(field_name = ? AND field_value LIKE ?)")
		args = append(args, name, "%"+term+"%")
	}
	query := `SELECT field_value FROM fields WHERE ` + strings.Join(conditions, " OR ") + ` ORDER BY id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var value sql.NullString
		if err := rows.Scan(&value); err != nil {
			return err
		}
		if !fn(value.String) {
			break
		}
	}
	return rows.Err()
}

func (s *SQLiteBackend) ScanFieldValues(ctx context.Context, term string, fieldNames []string, fn func(value string) bool) error {
	return s.scanFieldValuesWithQuerier(ctx, s.querier(), term, fieldNames, fn)
}

// placeholders returns n comma-separated SQL parameter markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// Transaction implementations delegate to the backend using the tx querier

func (t *sqliteTx) SaveDocument(ctx context.Context, doc *DocumentRecord) error {
	return t.backend.saveDocumentWithQuerier(ctx, t.querier(), doc)
}

func (t *sqliteTx) DeleteByEntity(ctx context.Context, entityID, entityClass string) (bool, error) {
	return t.backend.deleteByEntityWithQuerier(ctx, t.querier(), entityID, entityClass)
}

func (t *sqliteTx) GetByEntity(ctx context.Context, entityID, entityClass string) (*DocumentRecord, error) {
	return t.backend.getByEntityWithQuerier(ctx, t.querier(), entityID, entityClass)
}

func (t *sqliteTx) CountDocuments(ctx context.Context) (int64, error) {
	return t.backend.countDocumentsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) ClearDocuments(ctx context.Context, batchSize int) error {
	return t.backend.clearDocumentsWithQuerier(ctx, t.querier(), batchSize)
}

func (t *sqliteTx) QueryDocuments(ctx context.Context, dq *DocumentQuery, offset, limit int) ([]*DocumentRecord, error) {
	return t.backend.queryDocumentsWithQuerier(ctx, t.querier(), dq, offset, limit)
}

func (t *sqliteTx) CountQuery(ctx context.Context, dq *DocumentQuery) (int64, error) {
	return t.backend.countQueryWithQuerier(ctx, t.querier(), dq)
}

func (t *sqliteTx) TypeFacetCounts(ctx context.Context, dq *DocumentQuery) ([]FacetCount, error) {
	return t.backend.typeFacetCountsWithQuerier(ctx, t.querier(), dq)
}

func (t *sqliteTx) FieldFacetCounts(ctx context.Context, dq *DocumentQuery, fields []string) ([]FieldFacetCount, error) {
	return t.backend.fieldFacetCountsWithQuerier(ctx, t.querier(), dq, fields)
}

func (t *sqliteTx) ScanFieldValues(ctx context.Context, term string, fieldNames []string, fn func(value string) bool) error {
	return t.backend.scanFieldValuesWithQuerier(ctx, t.querier(), term, fieldNames, fn)
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, errors.New("nested transactions not supported")
}
