// Package storage persists search documents and their fields in a
// relational store and executes the substring-match and facet queries the
// search service builds.
//
// # Schema
//
// Two tables hold the index:
//
//	documents(id, entity_class, entity_type, entity_id)
//	fields(id, document_id, field_name, field_value, serialized)
//
// fields.document_id cascades on delete, so removing a document always
// removes its fields in the same statement. The (entity_id, entity_class)
// index serves upsert and delete lookups; the field_name indexes serve
// search and facet aggregation.
//
// # Capability model
//
// Backend is the narrow interface handed to the search service. A backend
// advertises relational query support by returning a non-nil Relational;
// the service treats a nil Relational as "this backend cannot search" and
// degrades gracefully instead of erroring. SQLiteBackend is currently the
// only implementation.
//
// # Drivers
//
// The SQLite driver is selected at build time: modernc.org/sqlite (pure Go)
// by default, github.com/mattn/go-sqlite3 with the cgo_sqlite build tag.
// See build_purego.go and build_cgo.go.
package storage
