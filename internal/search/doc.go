// Package search orchestrates indexing and querying: it upserts documents
// into the storage backend, builds the substring-match queries with their
// conjunctive facet filters, computes facet aggregate counts against the
// unfiltered base match, and wraps results in a lazily materialized,
// paginatable result set with excerpt generation.
package search
