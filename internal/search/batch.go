package search

import (
	"context"
	"fmt"

	"github.com/prismet/entitysearch/internal/storage"
	"github.com/prismet/entitysearch/pkg/model"
)

// Batch is a unit of work grouping many document saves into a single
// transaction. Saving the same logical document twice within one batch is
// safe: the second save's delete step removes the pending insert staged by
// the first, so a flush never carries a duplicate.
type Batch struct {
	svc   *Service
	tx    storage.Tx
	saved int
	done  bool
}

// BeginBatch starts a unit of work for bulk indexing.
func (s *Service) BeginBatch(ctx context.Context) (*Batch, error) {
	rel, err := s.writeBackend()
	if err != nil {
		return nil, err
	}
	tx, err := rel.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin batch: %w", err)
	}
	return &Batch{svc: s, tx: tx}, nil
}

// SaveDocument upserts a document within the batch transaction.
func (b *Batch) SaveDocument(ctx context.Context, doc model.Document) error {
	if b.done {
		return fmt.Errorf("batch already closed")
	}
	base, err := requireBaseDocument(doc)
	if err != nil {
		return err
	}
	if err := saveOn(ctx, b.tx, base); err != nil {
		return err
	}
	b.saved++
	return nil
}

// Size returns the number of documents saved in this batch so far.
func (b *Batch) Size() int {
	return b.saved
}

// Commit flushes the batch. Cached suggestions are invalidated because the
// index contents changed.
func (b *Batch) Commit() error {
	if b.done {
		return nil
	}
	b.done = true
	if err := b.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	b.svc.cache.Purge()
	return nil
}

// Rollback discards the batch. Safe to call after Commit.
func (b *Batch) Rollback() error {
	if b.done {
		return nil
	}
	b.done = true
	return b.tx.Rollback()
}
