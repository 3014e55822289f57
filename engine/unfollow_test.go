package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dynsweep/bili-dynamic-cleaner/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUnfollower fails for the ids in failFor
type fakeUnfollower struct {
	mu      sync.Mutex
	calls   []int64
	failFor map[int64]bool
}

func (f *fakeUnfollower) Unfollow(ctx context.Context, mid int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, mid)
	if f.failFor[mid] {
		return errors.New("relation service rejected the call")
	}
	return nil
}

// sweepMemQueue is an in-memory queue with full sweep operations
type sweepMemQueue struct {
	mu      sync.Mutex
	entries []types.UnfollowEntry
	cleared bool
}

func (q *sweepMemQueue) List() ([]types.UnfollowEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]types.UnfollowEntry(nil), q.entries...), nil
}

func (q *sweepMemQueue) Remove(mid int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, entry := range q.entries {
		if entry.MID == mid {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (q *sweepMemQueue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = nil
	q.cleared = true
	return nil
}

func newSweepFixture(t *testing.T, entries []types.UnfollowEntry, failFor map[int64]bool) (*UnfollowExecutor, *fakeUnfollower, *sweepMemQueue) {
	t.Helper()
	logger := testLogger()
	unfollower := &fakeUnfollower{failFor: failFor}
	queue := &sweepMemQueue{entries: entries}
	executor := NewUnfollowExecutor(unfollower, queue, time.Millisecond, NewJournal(100, logger), logger)
	return executor, unfollower, queue
}

func TestSweepUnfollowsEveryEntryInOrder(t *testing.T) {
	executor, unfollower, queue := newSweepFixture(t, []types.UnfollowEntry{
		{MID: 1, Name: "a"},
		{MID: 2, Name: "b"},
		{MID: 3, Name: "c"},
	}, nil)

	unfollowed, failed, err := executor.Sweep(context.Background(), alwaysCont)

	require.NoError(t, err)
	assert.Equal(t, 3, unfollowed)
	assert.Empty(t, failed)
	assert.Equal(t, []int64{1, 2, 3}, unfollower.calls)
	assert.True(t, queue.cleared)
}

func TestSweepCollectsFailuresAndContinues(t *testing.T) {
	executor, unfollower, queue := newSweepFixture(t, []types.UnfollowEntry{
		{MID: 1, Name: "a"},
		{MID: 2, Name: "b"},
		{MID: 3, Name: "c"},
	}, map[int64]bool{2: true})

	unfollowed, failed, err := executor.Sweep(context.Background(), alwaysCont)

	require.NoError(t, err)
	assert.Equal(t, 2, unfollowed)
	assert.Equal(t, []int64{2}, failed)
	// A failure never stops the sweep
	assert.Equal(t, []int64{1, 2, 3}, unfollower.calls)
	assert.True(t, queue.cleared)
}

func TestSweepClearsQueueUnconditionally(t *testing.T) {
	executor, _, queue := newSweepFixture(t, []types.UnfollowEntry{
		{MID: 1, Name: "a"},
		{MID: 2, Name: "b"},
	}, map[int64]bool{1: true, 2: true})

	unfollowed, failed, err := executor.Sweep(context.Background(), alwaysCont)

	require.NoError(t, err)
	assert.Zero(t, unfollowed)
	assert.Len(t, failed, 2)
	assert.True(t, queue.cleared)
	remaining, _ := queue.List()
	assert.Empty(t, remaining)
}

func TestSweepStopsBetweenEntries(t *testing.T) {
	executor, unfollower, queue := newSweepFixture(t, []types.UnfollowEntry{
		{MID: 1, Name: "a"},
		{MID: 2, Name: "b"},
		{MID: 3, Name: "c"},
	}, nil)

	calls := 0
	cont := func() bool {
		calls++
		return calls <= 1
	}

	unfollowed, _, err := executor.Sweep(context.Background(), cont)

	require.NoError(t, err)
	assert.Equal(t, 1, unfollowed)
	assert.Equal(t, []int64{1}, unfollower.calls)
	// Even a cut-short sweep ends with an empty queue
	assert.True(t, queue.cleared)
}

func TestSweepEmptyQueueIsNoop(t *testing.T) {
	executor, unfollower, queue := newSweepFixture(t, nil, nil)

	unfollowed, failed, err := executor.Sweep(context.Background(), alwaysCont)

	require.NoError(t, err)
	assert.Zero(t, unfollowed)
	assert.Empty(t, failed)
	assert.Empty(t, unfollower.calls)
	assert.False(t, queue.cleared)
}
