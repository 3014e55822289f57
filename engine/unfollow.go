package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/dynsweep/bili-dynamic-cleaner/monitoring"
	"github.com/dynsweep/bili-dynamic-cleaner/types"
	"github.com/sirupsen/logrus"
)

// Unfollower executes one unfollow call against the remote platform
type Unfollower interface {
	Unfollow(ctx context.Context, mid int64) error
}

// SweepQueue is the sweep's view of the persisted unfollow queue
type SweepQueue interface {
	List() ([]types.UnfollowEntry, error)
	Remove(mid int64) error
	Clear() error
}

// UnfollowExecutor drains the unfollow queue sequentially after a completed
// run. Unfollow calls are never issued concurrently; a fixed delay separates
// them. Whatever happens, the queue is cleared at the end so a bad entry can
// never wedge future runs, and failures are surfaced through the returned
// ids and the journal instead.
type UnfollowExecutor struct {
	unfollower Unfollower
	queue      SweepQueue
	delay      time.Duration
	journal    *Journal
	logger     *logrus.Logger
}

// NewUnfollowExecutor creates an unfollow sweep executor
func NewUnfollowExecutor(unfollower Unfollower, queue SweepQueue, delay time.Duration, journal *Journal, logger *logrus.Logger) *UnfollowExecutor {
	return &UnfollowExecutor{
		unfollower: unfollower,
		queue:      queue,
		delay:      delay,
		journal:    journal,
		logger:     logger,
	}
}

// Sweep unfollows every queued author in order. cont is consulted before
// each call so a stop request ends the sweep between entries. It returns
// the number unfollowed and the ids of the entries that failed.
func (e *UnfollowExecutor) Sweep(ctx context.Context, cont func() bool) (int, []int64, error) {
	entries, err := e.queue.List()
	if err != nil {
		return 0, nil, fmt.Errorf("failed to list unfollow queue: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil, nil
	}

	e.journal.Append(types.SeverityInfo, fmt.Sprintf("unfollow sweep started: %d queued", len(entries)), "")

	unfollowed := 0
	var failed []int64
	for i, entry := range entries {
		if !cont() {
			break
		}
		if i > 0 {
			if err := sleepCtx(ctx, e.delay); err != nil {
				break
			}
		}

		if err := e.unfollower.Unfollow(ctx, entry.MID); err != nil {
			failed = append(failed, entry.MID)
			e.journal.Append(types.SeverityWarning, fmt.Sprintf("unfollow failed for %s (%d): %v", entry.Name, entry.MID, err), "")
			continue
		}

		unfollowed++
		e.journal.Append(types.SeveritySuccess, fmt.Sprintf("unfollowed %s (%d)", entry.Name, entry.MID), "")
		if err := e.queue.Remove(entry.MID); err != nil {
			e.logger.WithFields(logrus.Fields{"mid": entry.MID}).WithError(err).Warn("Failed to remove swept queue entry")
		}
	}

	// The queue is cleared even when entries failed or the sweep was cut
	// short; the failed ids above are the only record that survives.
	if err := e.queue.Clear(); err != nil {
		e.journal.Append(types.SeverityError, fmt.Sprintf("failed to clear unfollow queue: %v", err), "")
	}
	monitoring.SetUnfollowQueueSize(0)

	summary := fmt.Sprintf("unfollow sweep finished: %d unfollowed, %d failed", unfollowed, len(failed))
	if len(failed) > 0 {
		summary += fmt.Sprintf(" (failed ids: %v)", failed)
	}
	e.journal.Append(types.SeverityInfo, summary, "")

	return unfollowed, failed, nil
}
