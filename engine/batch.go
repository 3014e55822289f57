package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dynsweep/bili-dynamic-cleaner/monitoring"
	"github.com/dynsweep/bili-dynamic-cleaner/types"
	"github.com/sirupsen/logrus"
)

// Deleter executes the removal of one item with its own retry discipline
type Deleter interface {
	DeleteDynamic(ctx context.Context, item *types.DynamicItem) types.DeletionOutcome
}

// ItemResult is the full pipeline result for one item: the decision and,
// for delete decisions, the classified deletion outcome
type ItemResult struct {
	Item     types.DynamicItem
	Decision Decision
	Outcome  *types.DeletionOutcome
}

// PageOutcome aggregates the results of one feed page
type PageOutcome struct {
	Processed int
	Deleted   int
	Failed    int
	Results   []ItemResult
}

// BatchRunner partitions a page's items into contiguous fixed-size batches
// and runs each batch's decision+deletion pipelines concurrently. Items in a
// batch complete independently: one failing pipeline never cancels its
// siblings, and every item produces a recorded result.
type BatchRunner struct {
	engine     *DecisionEngine
	deleter    Deleter
	batchSize  int
	batchDelay time.Duration
	journal    *Journal
	logger     *logrus.Logger
}

// NewBatchRunner creates a batch runner
func NewBatchRunner(engine *DecisionEngine, deleter Deleter, batchSize int, batchDelay time.Duration, journal *Journal, logger *logrus.Logger) *BatchRunner {
	if batchSize <= 0 {
		batchSize = 5
	}
	return &BatchRunner{
		engine:     engine,
		deleter:    deleter,
		batchSize:  batchSize,
		batchDelay: batchDelay,
		journal:    journal,
		logger:     logger,
	}
}

// RunPage processes one page of items. cont is consulted between batches
// only; a batch that has started always runs to completion, so a stop
// request never abandons in-flight items.
func (r *BatchRunner) RunPage(ctx context.Context, items []types.DynamicItem, mode types.CleanMode, param string, cont func() bool) PageOutcome {
	var outcome PageOutcome

	for start := 0; start < len(items); start += r.batchSize {
		if !cont() {
			break
		}
		if start > 0 {
			if err := sleepCtx(ctx, r.batchDelay); err != nil {
				break
			}
		}

		end := start + r.batchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		results := r.runBatch(ctx, batch, mode, param)
		for _, result := range results {
			outcome.Processed++
			if result.Decision.Action == ActionDelete {
				monitoring.RecordItemProcessed("delete")
				if result.Outcome != nil && result.Outcome.Deleted() {
					outcome.Deleted++
				} else {
					outcome.Failed++
				}
			} else {
				monitoring.RecordItemProcessed("skip")
				r.journal.Append(types.SeverityInfo, fmt.Sprintf("skipped: %s", result.Decision.Reason), result.Item.IDStr)
			}
		}
		outcome.Results = append(outcome.Results, results...)

		r.logger.WithFields(logrus.Fields{
			"batch_start": start,
			"batch_size":  len(batch),
			"deleted":     outcome.Deleted,
		}).Debug("Batch completed")
	}

	return outcome
}

// runBatch fans the batch out to one goroutine per item and joins all of
// them before returning partial results
func (r *BatchRunner) runBatch(ctx context.Context, batch []types.DynamicItem, mode types.CleanMode, param string) []ItemResult {
	results := make([]ItemResult, len(batch))
	var wg sync.WaitGroup

	for i := range batch {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			item := batch[idx]
			decision := r.engine.Decide(ctx, &item, mode, param)
			result := ItemResult{Item: item, Decision: decision}
			if decision.Action == ActionDelete {
				deletion := r.deleter.DeleteDynamic(ctx, &item)
				result.Outcome = &deletion
			}
			results[idx] = result
		}(i)
	}

	wg.Wait()
	return results
}
