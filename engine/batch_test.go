package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dynsweep/bili-dynamic-cleaner/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDeleter returns canned outcomes per item id
type fakeDeleter struct {
	mu       sync.Mutex
	outcomes map[string]types.DeletionOutcome
	deleted  []string
}

func (f *fakeDeleter) DeleteDynamic(ctx context.Context, item *types.DynamicItem) types.DeletionOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, item.IDStr)
	if outcome, ok := f.outcomes[item.IDStr]; ok {
		return outcome
	}
	return types.DeletionOutcome{Status: types.DeleteSucceeded, Attempts: 1}
}

func alwaysCont() bool { return true }

func newTestRunner(t *testing.T, lottery *fakeLottery, deleter *fakeDeleter, batchSize int) *BatchRunner {
	t.Helper()
	logger := testLogger()
	engine := NewDecisionEngine(lottery, &fakeDates{}, 2, logger)
	journal := NewJournal(100, logger)
	return NewBatchRunner(engine, deleter, batchSize, time.Millisecond, journal, logger)
}

func TestRunPageProcessesEveryItem(t *testing.T) {
	lottery := &fakeLottery{outcomes: map[string]types.LotteryOutcome{
		"concluded": concludedOutcome(),
		"pending":   pendingOutcome(),
	}}
	deleter := &fakeDeleter{}
	runner := newTestRunner(t, lottery, deleter, 5)

	items := []types.DynamicItem{
		*forwardItem("1", "concluded", nil),
		*forwardItem("2", "pending", nil),
		*forwardItem("3", "", nil),
	}

	outcome := runner.RunPage(context.Background(), items, types.ModeAuto, "", alwaysCont)

	assert.Equal(t, 3, outcome.Processed)
	assert.Equal(t, 2, outcome.Deleted)
	assert.Equal(t, 0, outcome.Failed)
	assert.ElementsMatch(t, []string{"1", "3"}, deleter.deleted)
	require.Len(t, outcome.Results, 3)
}

func TestRunPagePartitionsIntoBatches(t *testing.T) {
	deleter := &fakeDeleter{}
	runner := newTestRunner(t, &fakeLottery{}, deleter, 2)

	items := make([]types.DynamicItem, 5)
	for i := range items {
		items[i] = *forwardItem(string(rune('a'+i)), "", nil)
	}

	outcome := runner.RunPage(context.Background(), items, types.ModeAuto, "", alwaysCont)

	assert.Equal(t, 5, outcome.Processed)
	assert.Equal(t, 5, outcome.Deleted)
}

func TestRunPageSiblingFailureDoesNotCancelBatch(t *testing.T) {
	deleter := &fakeDeleter{outcomes: map[string]types.DeletionOutcome{
		"2": {Status: types.DeleteFailed, Message: "boom", Attempts: 3},
	}}
	runner := newTestRunner(t, &fakeLottery{}, deleter, 5)

	items := []types.DynamicItem{
		*forwardItem("1", "", nil),
		*forwardItem("2", "", nil),
		*forwardItem("3", "", nil),
	}

	outcome := runner.RunPage(context.Background(), items, types.ModeAuto, "", alwaysCont)

	assert.Equal(t, 3, outcome.Processed)
	assert.Equal(t, 2, outcome.Deleted)
	assert.Equal(t, 1, outcome.Failed)
}

func TestRunPageStopsBetweenBatches(t *testing.T) {
	deleter := &fakeDeleter{}
	runner := newTestRunner(t, &fakeLottery{}, deleter, 2)

	items := make([]types.DynamicItem, 6)
	for i := range items {
		items[i] = *forwardItem(string(rune('a'+i)), "", nil)
	}

	// Allow exactly one batch
	calls := 0
	cont := func() bool {
		calls++
		return calls == 1
	}

	outcome := runner.RunPage(context.Background(), items, types.ModeAuto, "", cont)

	// The started batch finished in full, no later batch began
	assert.Equal(t, 2, outcome.Processed)
	assert.Len(t, deleter.deleted, 2)
}

func TestRunPageAlreadyGoneCountsAsDeleted(t *testing.T) {
	deleter := &fakeDeleter{outcomes: map[string]types.DeletionOutcome{
		"1": {Status: types.DeleteAlreadyGone, Attempts: 1},
	}}
	runner := newTestRunner(t, &fakeLottery{}, deleter, 5)

	outcome := runner.RunPage(context.Background(), []types.DynamicItem{*forwardItem("1", "", nil)}, types.ModeAuto, "", alwaysCont)

	assert.Equal(t, 1, outcome.Deleted)
	assert.Equal(t, 0, outcome.Failed)
}
