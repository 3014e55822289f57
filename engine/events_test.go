package engine

import (
	"fmt"
	"testing"

	"github.com/dynsweep/bili-dynamic-cleaner/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalSequencesEvents(t *testing.T) {
	journal := NewJournal(10, testLogger())

	journal.Append(types.SeverityInfo, "first", "")
	journal.Append(types.SeverityWarning, "second", "item1")

	events := journal.EventsAfter(0)
	require.Len(t, events, 2)
	assert.Equal(t, int64(1), events[0].Seq)
	assert.Equal(t, int64(2), events[1].Seq)
	assert.Equal(t, "item1", events[1].ItemID)
}

func TestJournalEventsAfterFilters(t *testing.T) {
	journal := NewJournal(10, testLogger())
	for i := 0; i < 5; i++ {
		journal.Append(types.SeverityInfo, fmt.Sprintf("event %d", i), "")
	}

	events := journal.EventsAfter(3)
	require.Len(t, events, 2)
	assert.Equal(t, int64(4), events[0].Seq)
	assert.Equal(t, int64(5), events[1].Seq)
}

func TestJournalEvictsOldestBeyondCapacity(t *testing.T) {
	journal := NewJournal(3, testLogger())
	for i := 0; i < 5; i++ {
		journal.Append(types.SeverityInfo, fmt.Sprintf("event %d", i), "")
	}

	events := journal.EventsAfter(0)
	require.Len(t, events, 3)
	// Oldest two were evicted, sequence numbers keep counting
	assert.Equal(t, int64(3), events[0].Seq)
	assert.Equal(t, int64(5), events[2].Seq)
}

func TestJournalResetKeepsSequence(t *testing.T) {
	journal := NewJournal(10, testLogger())
	journal.Append(types.SeverityInfo, "before reset", "")
	journal.Reset()
	journal.Append(types.SeverityInfo, "after reset", "")

	events := journal.EventsAfter(0)
	require.Len(t, events, 1)
	// Sequence numbers never restart, so pollers holding an old cursor
	// cannot see duplicates
	assert.Equal(t, int64(2), events[0].Seq)
}
