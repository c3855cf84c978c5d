// Package index drives source entities through document construction and
// into the search service in unit-of-work batches.
package index

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/prismet/entitysearch/internal/search"
	"github.com/prismet/entitysearch/pkg/model"
)

// Entity is a source object that can be indexed. The indexer creates an
// empty document pre-populated with the entity's class and id, then hands
// it to the entity to fill in its field values.
type Entity interface {
	EntityClass() string
	EntityID() any
	IndexEntity(doc model.Document) error
}

// Config contains configuration for the indexer
type Config struct {
	Workers   int // Number of concurrent document builders (default: runtime.NumCPU())
	BatchSize int // Number of documents to commit per transaction (default: 50)
}

// Statistics contains statistics about one indexing run
type Statistics struct {
	EntitiesIndexed int
	EntitiesFailed  int
	Duration        time.Duration
	ErrorMessages   []string
}

// Indexer builds documents from entities concurrently and saves them
// through a single writer in batched transactions.
type Indexer struct {
	svc     *search.Service
	logger  *zap.Logger
	workers int
}

// New creates a new Indexer instance
func New(svc *search.Service, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		svc:     svc,
		logger:  logger,
		workers: runtime.NumCPU(),
	}
}

// IndexAll indexes the given entities. Document construction runs on a
// worker pool; persistence stays on one goroutine because the upsert
// ordering (remove then insert) must be observed per batch.
func (idx *Indexer) IndexAll(ctx context.Context, entities []Entity, config *Config) (*Statistics, error) {
	if config == nil {
		config = &Config{}
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	idx.workers = config.Workers

	// An aborted save path returns before the builders drain the docs
	// channel; cancelling unblocks them so the pool always winds down.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	startTime := time.Now()
	stats := &Statistics{
		ErrorMessages: make([]string, 0),
	}

	docs := make(chan *model.BaseDocument, config.Workers)
	var failed atomic.Int32
	failures := make(chan string, len(entities))

	builders, buildCtx := errgroup.WithContext(ctx)
	builders.SetLimit(config.Workers)
	go func() {
		for _, entity := range entities {
			entity := entity
			builders.Go(func() error {
				doc, err := buildDocument(entity)
				if err != nil {
					failed.Add(1)
					failures <- fmt.Sprintf("%s: %v", entity.EntityClass(), err)
					return nil // One bad entity must not abort the run
				}
				select {
				case docs <- doc:
				case <-buildCtx.Done():
				}
				return nil
			})
		}
		_ = builders.Wait()
		close(docs)
		close(failures)
	}()

	if err := idx.saveAll(ctx, docs, config.BatchSize, stats); err != nil {
		return nil, err
	}

	for msg := range failures {
		stats.ErrorMessages = append(stats.ErrorMessages, msg)
	}
	stats.EntitiesFailed = int(failed.Load())
	stats.Duration = time.Since(startTime)

	idx.logger.Info("indexing run finished",
		zap.Int("indexed", stats.EntitiesIndexed),
		zap.Int("failed", stats.EntitiesFailed),
		zap.Duration("duration", stats.Duration))
	return stats, nil
}

// saveAll consumes built documents and commits them in batches.
func (idx *Indexer) saveAll(ctx context.Context, docs <-chan *model.BaseDocument, batchSize int, stats *Statistics) error {
	var batch *search.Batch
	var err error

	flush := func() error {
		if batch == nil {
			return nil
		}
		if err := batch.Commit(); err != nil {
			return err
		}
		batch = nil
		return nil
	}

	for doc := range docs {
		if batch == nil {
			batch, err = idx.svc.BeginBatch(ctx)
			if err != nil {
				return err
			}
		}
		if err := batch.SaveDocument(ctx, doc); err != nil {
			_ = batch.Rollback()
			return fmt.Errorf("failed to save document for %s: %w", doc.EntityClass(), err)
		}
		stats.EntitiesIndexed++
		if batch.Size() >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// buildDocument creates the document for one entity: identity first, then
// the entity's own field values via its indexing callback.
func buildDocument(entity Entity) (*model.BaseDocument, error) {
	doc := model.NewDocument()
	doc.SetEntityClass(entity.EntityClass())
	if err := doc.SetEntityID(entity.EntityID()); err != nil {
		return nil, err
	}
	if err := entity.IndexEntity(doc); err != nil {
		return nil, err
	}
	return doc, nil
}
