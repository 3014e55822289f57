/*
Package engine implements the feed-traversal/decision/execution pipeline:
the decision policies, the batch executor, the run controller state machine,
and the post-run unfollow sweep.
*/
package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dynsweep/bili-dynamic-cleaner/monitoring"
	"github.com/dynsweep/bili-dynamic-cleaner/types"
	"github.com/dynsweep/bili-dynamic-cleaner/utils"
	"github.com/sirupsen/logrus"
)

// LotteryResolver looks up the giveaway status of a post with bounded retry
type LotteryResolver interface {
	LotteryStatus(ctx context.Context, dynamicID string, maxRetries int) types.LotteryOutcome
}

// ForwardDater resolves the date an item was forwarded by the current user
type ForwardDater interface {
	Resolve(ctx context.Context, item *types.DynamicItem) types.ForwardDateOutcome
}

// Action is the verdict of the decision engine for one item
type Action int

const (
	ActionSkip Action = iota
	ActionDelete
)

// Decision is the result of evaluating one item against the run's policy.
// UnfollowCandidate is set on delete decisions whose origin author is
// currently followed; whether it is actually enqueued is decided at the
// aggregation point, and only after the deletion succeeds.
type Decision struct {
	Action            Action
	Reason            string
	UnfollowCandidate *types.Author
}

// DecisionEngine maps (item, mode, mode parameter) to a decision. It is pure
// apart from the injected resolvers: any unresolved lookup biases to skip,
// never to delete.
type DecisionEngine struct {
	lottery        LotteryResolver
	dates          ForwardDater
	lotteryRetries int
	logger         *logrus.Logger
	now            func() time.Time
}

// NewDecisionEngine creates a decision engine with the run's lottery retry bound
func NewDecisionEngine(lottery LotteryResolver, dates ForwardDater, lotteryRetries int, logger *logrus.Logger) *DecisionEngine {
	return &DecisionEngine{
		lottery:        lottery,
		dates:          dates,
		lotteryRetries: lotteryRetries,
		logger:         logger,
		now:            time.Now,
	}
}

// Decide evaluates one item under the given mode
func (e *DecisionEngine) Decide(ctx context.Context, item *types.DynamicItem, mode types.CleanMode, param string) Decision {
	// Items that are not forwards never reach the deletion pipeline
	if item.Origin == nil && !item.Type.IsForward() {
		return Decision{Action: ActionSkip, Reason: "not a forwarded dynamic"}
	}

	switch mode {
	case types.ModeAuto:
		return e.decideAuto(ctx, item)
	case types.ModeUser:
		return e.decideUserList(item, param)
	case types.ModeDaysAgo:
		return e.decideDaysAgo(ctx, item, param)
	default:
		return Decision{Action: ActionSkip, Reason: fmt.Sprintf("unknown mode %q", mode)}
	}
}

// decideAuto deletes forwards whose origin is gone or whose giveaway has
// concluded. The lottery resolver must not be invoked when the origin id is
// already known to be absent.
func (e *DecisionEngine) decideAuto(ctx context.Context, item *types.DynamicItem) Decision {
	if item.Origin == nil || item.Origin.IDStr == "" {
		return Decision{Action: ActionDelete, Reason: "origin removed", UnfollowCandidate: e.followedAuthor(item)}
	}

	outcome := e.lottery.LotteryStatus(ctx, item.Origin.IDStr, e.lotteryRetries)
	switch {
	case !outcome.Resolved:
		return Decision{Action: ActionSkip, Reason: fmt.Sprintf("giveaway lookup unresolved (%s after %d attempts)", outcome.ErrorKind, outcome.Attempts)}
	case !outcome.IsLottery:
		return Decision{Action: ActionSkip, Reason: "origin is not a giveaway"}
	case outcome.Status == types.LotteryConcluded:
		return Decision{Action: ActionDelete, Reason: "giveaway concluded", UnfollowCandidate: e.followedAuthor(item)}
	default:
		return Decision{Action: ActionSkip, Reason: fmt.Sprintf("giveaway %s", lotteryStatusText(outcome.Status))}
	}
}

// decideUserList deletes forwards whose origin author appears in the
// operator-specified list of names or numeric ids
func (e *DecisionEngine) decideUserList(item *types.DynamicItem, param string) Decision {
	author := item.Origin.AuthorInfo()
	if author == nil {
		return Decision{Action: ActionSkip, Reason: "origin author unavailable"}
	}

	users := utils.ParseUserList(param)
	_, byName := users[author.Name]
	_, byID := users[strconv.FormatInt(author.MID, 10)]
	if !byName && !byID {
		return Decision{Action: ActionSkip, Reason: "author not in list"}
	}

	return Decision{
		Action:            ActionDelete,
		Reason:            fmt.Sprintf("listed author: %s", author.Name),
		UnfollowCandidate: e.followedAuthor(item),
	}
}

// decideDaysAgo deletes forwards older than the day window, unless the
// origin is a giveaway that has not yet concluded
func (e *DecisionEngine) decideDaysAgo(ctx context.Context, item *types.DynamicItem, param string) Decision {
	days, err := strconv.Atoi(param)
	if err != nil || days <= 0 {
		return Decision{Action: ActionSkip, Reason: fmt.Sprintf("invalid day window %q", param)}
	}

	forwarded := e.dates.Resolve(ctx, item)
	if !forwarded.Resolved {
		return Decision{Action: ActionSkip, Reason: fmt.Sprintf("forward date unresolved after %d attempts", forwarded.Attempts)}
	}

	// String comparison on fixed-width YYYY-MM-DD dates is chronological
	// order; the cutoff day itself is inside the window.
	cutoff := utils.DateDaysAgo(e.now(), days)
	if forwarded.Date > cutoff {
		return Decision{Action: ActionSkip, Reason: fmt.Sprintf("too recent (%s > %s)", forwarded.Date, cutoff)}
	}

	if item.Origin == nil || item.Origin.IDStr == "" {
		return Decision{
			Action:            ActionDelete,
			Reason:            fmt.Sprintf("origin removed, within %d-day window", days),
			UnfollowCandidate: e.followedAuthor(item),
		}
	}

	outcome := e.lottery.LotteryStatus(ctx, item.Origin.IDStr, e.lotteryRetries)
	switch {
	case !outcome.Resolved:
		return Decision{Action: ActionSkip, Reason: fmt.Sprintf("within window but giveaway lookup unresolved (%s after %d attempts)", outcome.ErrorKind, outcome.Attempts)}
	case !outcome.IsLottery:
		return Decision{
			Action:            ActionDelete,
			Reason:            fmt.Sprintf("non-giveaway, within %d-day window", days),
			UnfollowCandidate: e.followedAuthor(item),
		}
	case outcome.Status == types.LotteryConcluded:
		return Decision{
			Action:            ActionDelete,
			Reason:            fmt.Sprintf("giveaway concluded, within %d-day window", days),
			UnfollowCandidate: e.followedAuthor(item),
		}
	default:
		return Decision{Action: ActionSkip, Reason: fmt.Sprintf("within window but giveaway %s", lotteryStatusText(outcome.Status))}
	}
}

// followedAuthor returns the origin author when they are currently followed
func (e *DecisionEngine) followedAuthor(item *types.DynamicItem) *types.Author {
	author := item.Origin.AuthorInfo()
	if author == nil || !author.Following {
		return nil
	}
	return author
}

// lotteryStatusText renders a lottery status for skip reasons
func lotteryStatusText(status types.LotteryStatus) string {
	switch status {
	case types.LotteryPending:
		return "pending"
	case types.LotteryDrawing:
		return "drawing"
	case types.LotteryConcluded:
		return "concluded"
	default:
		return fmt.Sprintf("status %d", int(status))
	}
}

// CachedLotteryResolver wraps a resolver with the outcome cache so repeated
// forwards of the same origin cost one lookup per TTL window
type CachedLotteryResolver struct {
	inner LotteryResolver
	cache interface {
		Get(dynamicID string) (types.LotteryOutcome, bool)
		Set(dynamicID string, outcome types.LotteryOutcome)
	}
}

// NewCachedLotteryResolver wraps the given resolver with a cache
func NewCachedLotteryResolver(inner LotteryResolver, cache interface {
	Get(dynamicID string) (types.LotteryOutcome, bool)
	Set(dynamicID string, outcome types.LotteryOutcome)
}) *CachedLotteryResolver {
	return &CachedLotteryResolver{inner: inner, cache: cache}
}

// LotteryStatus serves from the cache when possible; only resolved outcomes
// are ever cached
func (r *CachedLotteryResolver) LotteryStatus(ctx context.Context, dynamicID string, maxRetries int) types.LotteryOutcome {
	if outcome, ok := r.cache.Get(dynamicID); ok {
		monitoring.RecordCacheHit("lottery_status")
		return outcome
	}
	monitoring.RecordCacheMiss("lottery_status")

	outcome := r.inner.LotteryStatus(ctx, dynamicID, maxRetries)
	r.cache.Set(dynamicID, outcome)
	return outcome
}
