package engine

import (
	"context"
	"time"

	"github.com/dynsweep/bili-dynamic-cleaner/types"
	"github.com/dynsweep/bili-dynamic-cleaner/utils"
)

// ForwardDateResolver determines the date the current user forwarded an
// item. The feed reports the forwarding timestamp in several fields
// depending on item age and API version; the first present candidate wins,
// most specific first. When none are present the item data may simply not be
// populated server-side yet, so the resolver retries a fixed number of times
// with a fixed backoff before giving up.
type ForwardDateResolver struct {
	retries int
	delay   time.Duration
}

// NewForwardDateResolver creates a resolver with the given retry schedule
func NewForwardDateResolver(retries int, delay time.Duration) *ForwardDateResolver {
	return &ForwardDateResolver{retries: retries, delay: delay}
}

// Resolve returns the forward date, or an unresolved outcome after the retry
// bound. It never reclassifies the missing-field state into an error.
func (r *ForwardDateResolver) Resolve(ctx context.Context, item *types.DynamicItem) types.ForwardDateOutcome {
	for attempt := 0; attempt < r.retries; attempt++ {
		if ts := forwardTimestamp(item); ts != 0 {
			return types.ForwardDateOutcome{
				Resolved:  true,
				Date:      utils.TimestampToDate(ts),
				Timestamp: ts,
				Attempts:  attempt,
			}
		}
		if attempt < r.retries-1 {
			if err := sleepCtx(ctx, r.delay); err != nil {
				return types.ForwardDateOutcome{Resolved: false, Attempts: attempt + 1}
			}
		}
	}
	return types.ForwardDateOutcome{Resolved: false, Attempts: r.retries}
}

// forwardTimestamp walks the candidate fields in fallback order
func forwardTimestamp(item *types.DynamicItem) int64 {
	if item.Modules != nil && item.Modules.ModuleAuthor != nil {
		if item.Modules.ModuleAuthor.PubTS != 0 {
			return item.Modules.ModuleAuthor.PubTS
		}
		if item.Modules.ModuleAuthor.PubTime != 0 {
			return item.Modules.ModuleAuthor.PubTime
		}
	}
	if item.PubTS != 0 {
		return item.PubTS
	}
	if item.PubTime != 0 {
		return item.PubTime
	}
	if item.CTime != 0 {
		return item.CTime
	}
	if item.Timestamp != 0 {
		return item.Timestamp
	}
	return 0
}

// sleepCtx waits for the given duration unless the context is cancelled first
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
