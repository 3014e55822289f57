package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dynsweep/bili-dynamic-cleaner/biliapi"
	"github.com/dynsweep/bili-dynamic-cleaner/config"
	"github.com/dynsweep/bili-dynamic-cleaner/monitoring"
	"github.com/dynsweep/bili-dynamic-cleaner/types"
	"github.com/dynsweep/bili-dynamic-cleaner/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// FeedFetcher pages through the subject user's feed
type FeedFetcher interface {
	FetchFeedPage(ctx context.Context, hostMID, offset string) (*types.PageResult, error)
}

// AuthorQueue is the controller's view of the persisted unfollow queue
type AuthorQueue interface {
	Add(entry types.UnfollowEntry) error
	Len() (int, error)
}

// Sweeper drains the unfollow queue after a completed run. It returns how
// many authors were unfollowed and the ids that could not be.
type Sweeper interface {
	Sweep(ctx context.Context, cont func() bool) (int, []int64, error)
}

// SettingsSource supplies the operator settings, re-read at the start of
// every run
type SettingsSource interface {
	Load() (config.Settings, error)
}

// ErrRunActive is returned by Start when a run is already in progress
var ErrRunActive = errors.New("a run is already active")

// Controller owns the run lifecycle. At most one run is active at a time;
// all aggregate state (counters, deletion records, the unfollow queue) is
// written only by the run goroutine, so collaborators observe it through
// snapshots instead of sharing mutable structures.
type Controller struct {
	fetcher  FeedFetcher
	deleter  Deleter
	lottery  LotteryResolver
	dates    ForwardDater
	queue    AuthorQueue
	sweeper  Sweeper
	settings SettingsSource
	journal  *Journal
	pipeline config.PipelineConfig
	hostMID  string
	logger   *logrus.Logger

	mu            sync.Mutex
	state         types.RunState
	runID         string
	mode          types.CleanMode
	param         string
	counters      types.RunCounters
	currentOffset string
	startedAt     *time.Time
	endedAt       *time.Time
	lastError     string
	report        *types.RunReport
	done          chan struct{}
}

// NewController creates a run controller in the idle state
func NewController(
	fetcher FeedFetcher,
	deleter Deleter,
	lottery LotteryResolver,
	dates ForwardDater,
	queue AuthorQueue,
	sweeper Sweeper,
	settings SettingsSource,
	journal *Journal,
	pipeline config.PipelineConfig,
	hostMID string,
	logger *logrus.Logger,
) *Controller {
	return &Controller{
		fetcher:  fetcher,
		deleter:  deleter,
		lottery:  lottery,
		dates:    dates,
		queue:    queue,
		sweeper:  sweeper,
		settings: settings,
		journal:  journal,
		pipeline: pipeline,
		hostMID:  hostMID,
		logger:   logger,
		state:    types.StateIdle,
	}
}

// Start launches a new run. It fails when a run is already active or when
// the mode parameter does not validate. The run goroutine detaches from the
// caller's context; only Stop and the run's own completion end it.
func (c *Controller) Start(ctx context.Context, mode types.CleanMode, param string) (string, error) {
	if err := validateModeParam(mode, param); err != nil {
		return "", err
	}

	settings, err := c.settings.Load()
	if err != nil {
		return "", fmt.Errorf("failed to load settings: %w", err)
	}

	c.mu.Lock()
	if c.state == types.StateRunning || c.state == types.StatePaused || c.state == types.StateStopping {
		state := c.state
		c.mu.Unlock()
		return "", fmt.Errorf("%w (state %s)", ErrRunActive, state)
	}

	runID := uuid.New().String()
	now := time.Now()
	c.state = types.StateRunning
	c.runID = runID
	c.mode = mode
	c.param = param
	c.counters = types.RunCounters{}
	c.currentOffset = ""
	c.startedAt = &now
	c.endedAt = nil
	c.lastError = ""
	c.report = nil
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	c.journal.Reset()
	c.journal.Append(types.SeverityInfo, fmt.Sprintf("run started: mode=%s param=%q lottery_retries=%d", mode, param, settings.LotteryQueryRetries), "")
	monitoring.SetRunActive(true)

	// The run outlives the request that started it, so the caller's
	// cancellation must not be inherited by the run goroutine.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	go func() {
		defer close(done)
		defer cancel()
		c.run(runCtx, settings)
	}()

	return runID, nil
}

// Pause suspends the run between batches. Items already in flight complete.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != types.StateRunning {
		return fmt.Errorf("cannot pause in state %s", c.state)
	}
	c.state = types.StatePaused
	c.journal.Append(types.SeverityInfo, "run paused", "")
	return nil
}

// Resume continues a paused run
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != types.StatePaused {
		return fmt.Errorf("cannot resume in state %s", c.state)
	}
	c.state = types.StateRunning
	c.journal.Append(types.SeverityInfo, "run resumed", "")
	return nil
}

// Stop requests the run to finish. The current batch completes before the
// run winds down; Stop never abandons in-flight items.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != types.StateRunning && c.state != types.StatePaused {
		return fmt.Errorf("cannot stop in state %s", c.state)
	}
	c.state = types.StateStopping
	c.journal.Append(types.SeverityInfo, "stop requested", "")
	return nil
}

// Done returns a channel closed when the current run's goroutine exits.
// It returns nil when no run has been started.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Snapshot returns a point-in-time view of the run
func (c *Controller) Snapshot() types.RunSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := types.RunSnapshot{
		RunID:         c.runID,
		State:         c.state,
		Mode:          c.mode,
		Counters:      c.counters,
		CurrentOffset: c.currentOffset,
		StartedAt:     c.startedAt,
		EndedAt:       c.endedAt,
		LastError:     c.lastError,
	}
	if c.startedAt != nil {
		end := time.Now()
		if c.endedAt != nil {
			end = *c.endedAt
		}
		snapshot.ElapsedMs = end.Sub(*c.startedAt).Milliseconds()
	}
	return snapshot
}

// Report returns the completed-run report, or nil while no stopped run exists
func (c *Controller) Report() *types.RunReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.report
}

// run is the single-writer run loop. It owns counters, deletion records and
// unfollow enqueueing; nothing else mutates them while the run is active.
func (c *Controller) run(ctx context.Context, settings config.Settings) {
	engine := NewDecisionEngine(c.lottery, c.dates, settings.LotteryQueryRetries, c.logger)
	runner := NewBatchRunner(engine, c.deleter, c.pipeline.BatchSize, c.pipeline.InterBatchDelay, c.journal, c.logger)

	var records []types.DeletionRecord
	var failedUnfollows []int64
	completed := false
	offset := ""

	cont := func() bool { return c.waitWhileResumed(ctx) }

	for {
		if !cont() {
			break
		}

		page, err := c.fetchPageWithRetry(ctx, offset)
		if err != nil {
			if biliapi.KindOf(err) == biliapi.KindRateLimit {
				// Rate limiting persisted through every page retry; the sweep
				// ends here with partial coverage rather than erroring out.
				c.journal.Append(types.SeverityWarning, "feed rate limit persisted, ending sweep with partial coverage", "")
				completed = true
			} else {
				c.journal.Append(types.SeverityError, fmt.Sprintf("feed fetch failed: %v", err), "")
				c.setLastError(err.Error())
			}
			break
		}
		if page == nil || len(page.Items) == 0 {
			completed = true
			break
		}

		monitoring.RecordPageVisited()
		outcome := runner.RunPage(ctx, page.Items, c.mode, c.param, cont)
		records = append(records, c.aggregate(outcome, settings)...)

		c.mu.Lock()
		c.counters.PagesVisited++
		c.counters.ItemsProcessed += outcome.Processed
		c.counters.ItemsDeleted += outcome.Deleted
		c.counters.ItemsFailed += outcome.Failed
		c.currentOffset = page.NextOffset
		pages := c.counters.PagesVisited
		c.mu.Unlock()

		if page.NextOffset == "" {
			completed = true
			break
		}
		offset = page.NextOffset

		if settings.AutoPauseEnabled && c.pipeline.AutoPauseEvery > 0 && pages%c.pipeline.AutoPauseEvery == 0 {
			c.autoPause(pages)
		}

		if err := sleepCtx(ctx, c.pipeline.InterPageDelay); err != nil {
			break
		}
	}

	if completed && settings.UnfollowEnabled {
		unfollowed, failed, err := c.sweeper.Sweep(ctx, cont)
		if err != nil {
			c.journal.Append(types.SeverityError, fmt.Sprintf("unfollow sweep failed: %v", err), "")
		}
		failedUnfollows = failed
		c.mu.Lock()
		c.counters.UsersUnfollowed += unfollowed
		c.mu.Unlock()
	}

	c.finalize(settings, records, failedUnfollows, completed)
}

// fetchPageWithRetry fetches one page, retrying only rate-limit responses up
// to the configured bound. Every other failure is surfaced immediately.
func (c *Controller) fetchPageWithRetry(ctx context.Context, offset string) (*types.PageResult, error) {
	var lastErr error
	for attempt := 0; attempt <= c.pipeline.PageMaxRetries; attempt++ {
		page, err := c.fetcher.FetchFeedPage(ctx, c.hostMID, offset)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if biliapi.KindOf(err) != biliapi.KindRateLimit {
			return nil, err
		}
		if attempt < c.pipeline.PageMaxRetries {
			c.journal.Append(types.SeverityWarning, fmt.Sprintf("feed rate limited, retrying page in %s (attempt %d/%d)", c.pipeline.PageRetryDelay, attempt+1, c.pipeline.PageMaxRetries), "")
			if err := sleepCtx(ctx, c.pipeline.PageRetryDelay); err != nil {
				return nil, lastErr
			}
		}
	}
	return nil, lastErr
}

// aggregate turns a page outcome into deletion records and unfollow queue
// entries. Records are created here, on the run goroutine, never inside the
// batch workers.
func (c *Controller) aggregate(outcome PageOutcome, settings config.Settings) []types.DeletionRecord {
	var records []types.DeletionRecord
	for _, result := range outcome.Results {
		if result.Decision.Action != ActionDelete || result.Outcome == nil {
			continue
		}
		switch {
		case result.Outcome.Deleted():
			reason := result.Decision.Reason
			if result.Outcome.Status == types.DeleteAlreadyGone {
				reason += " (already removed)"
			}
			records = append(records, types.DeletionRecord{
				Timestamp: time.Now(),
				ItemID:    result.Item.IDStr,
				Reason:    reason,
				ItemType:  result.Item.Type,
				Content:   utils.SummarizeContent(originContent(&result.Item)),
			})
			c.journal.Append(types.SeveritySuccess, fmt.Sprintf("deleted: %s", reason), result.Item.IDStr)
			if settings.UnfollowEnabled && result.Decision.UnfollowCandidate != nil {
				c.enqueueUnfollow(result.Decision.UnfollowCandidate)
			}
		default:
			c.journal.Append(types.SeverityError, fmt.Sprintf("deletion failed (%s): %s", result.Outcome.Status, result.Outcome.Message), result.Item.IDStr)
		}
	}
	return records
}

// enqueueUnfollow adds a followed origin author to the persisted queue
func (c *Controller) enqueueUnfollow(author *types.Author) {
	entry := types.UnfollowEntry{MID: author.MID, Name: author.Name}
	if err := c.queue.Add(entry); err != nil {
		c.journal.Append(types.SeverityWarning, fmt.Sprintf("failed to queue unfollow for %s (%d): %v", author.Name, author.MID, err), "")
		return
	}
	if size, err := c.queue.Len(); err == nil {
		monitoring.SetUnfollowQueueSize(size)
	}
}

// waitWhileResumed blocks while the run is paused and reports whether the
// run should keep going
func (c *Controller) waitWhileResumed(ctx context.Context) bool {
	for {
		c.mu.Lock()
		state := c.state
		c.mu.Unlock()

		switch state {
		case types.StateRunning:
			return true
		case types.StatePaused:
			if err := sleepCtx(ctx, c.pipeline.PausePollInterval); err != nil {
				return false
			}
		default:
			return false
		}
	}
}

// autoPause flips the run to paused after the configured page interval
func (c *Controller) autoPause(pages int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != types.StateRunning {
		return
	}
	c.state = types.StatePaused
	c.journal.Append(types.SeverityInfo, fmt.Sprintf("auto-paused after %d pages", pages), "")
}

// setLastError records the run's terminal error
func (c *Controller) setLastError(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastError = message
}

// finalize transitions to stopped and publishes the run report
func (c *Controller) finalize(settings config.Settings, records []types.DeletionRecord, failedUnfollows []int64, completed bool) {
	now := time.Now()

	c.mu.Lock()
	c.state = types.StateStopped
	c.endedAt = &now
	duration := time.Duration(0)
	if c.startedAt != nil {
		duration = now.Sub(*c.startedAt)
	}
	c.report = &types.RunReport{
		RunID:           c.runID,
		Mode:            c.mode,
		Counters:        c.counters,
		Duration:        duration,
		LotteryRetries:  settings.LotteryQueryRetries,
		DeletionRecords: records,
		FailedUnfollows: failedUnfollows,
		GeneratedAt:     now,
	}
	counters := c.counters
	c.mu.Unlock()

	monitoring.SetRunActive(false)
	status := "stopped"
	if completed {
		status = "completed"
	}
	c.journal.Append(types.SeverityInfo, fmt.Sprintf("run %s: %d pages, %d processed, %d deleted, %d failed", status, counters.PagesVisited, counters.ItemsProcessed, counters.ItemsDeleted, counters.ItemsFailed), "")
}

// validateModeParam validates the mode parameter before a run starts
func validateModeParam(mode types.CleanMode, param string) error {
	switch mode {
	case types.ModeAuto:
		return nil
	case types.ModeUser:
		if len(utils.ParseUserList(param)) == 0 {
			return fmt.Errorf("user mode requires a non-empty user list")
		}
		return nil
	case types.ModeDaysAgo:
		days, err := strconv.Atoi(strings.TrimSpace(param))
		if err != nil || days <= 0 {
			return fmt.Errorf("days_ago mode requires a positive day count, got %q", param)
		}
		return nil
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

// originContent extracts the origin post's text for deletion records
func originContent(item *types.DynamicItem) string {
	if item.Origin == nil {
		return ""
	}
	return item.Origin.Content
}
