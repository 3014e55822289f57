package engine

import (
	"sync"
	"time"

	"github.com/dynsweep/bili-dynamic-cleaner/types"
	"github.com/sirupsen/logrus"
)

// Journal is the bounded, ordered run journal exposed to collaborators.
// Every classified outcome ends up here; nothing is silently dropped short
// of the capacity bound, which evicts oldest-first. Events are mirrored to
// the structured logger.
type Journal struct {
	mu       sync.RWMutex
	events   []types.LogEvent
	capacity int
	nextSeq  int64
	logger   *logrus.Logger
}

// NewJournal creates a journal with the given capacity
func NewJournal(capacity int, logger *logrus.Logger) *Journal {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Journal{
		capacity: capacity,
		logger:   logger,
		nextSeq:  1,
	}
}

// Append adds one event. itemID may be empty for run-level events.
func (j *Journal) Append(severity types.LogSeverity, message, itemID string) {
	j.mu.Lock()
	event := types.LogEvent{
		Seq:       j.nextSeq,
		Timestamp: time.Now(),
		Severity:  severity,
		Message:   message,
		ItemID:    itemID,
	}
	j.nextSeq++
	j.events = append(j.events, event)
	if len(j.events) > j.capacity {
		j.events = j.events[len(j.events)-j.capacity:]
	}
	j.mu.Unlock()

	fields := logrus.Fields{"seq": event.Seq}
	if itemID != "" {
		fields["item_id"] = itemID
	}
	entry := j.logger.WithFields(fields)
	switch severity {
	case types.SeverityError:
		entry.Error(message)
	case types.SeverityWarning:
		entry.Warn(message)
	default:
		entry.Info(message)
	}
}

// EventsAfter returns all retained events with a sequence number greater
// than afterSeq, oldest first
func (j *Journal) EventsAfter(afterSeq int64) []types.LogEvent {
	j.mu.RLock()
	defer j.mu.RUnlock()

	result := make([]types.LogEvent, 0, len(j.events))
	for _, event := range j.events {
		if event.Seq > afterSeq {
			result = append(result, event)
		}
	}
	return result
}

// Reset clears the journal for a fresh run
func (j *Journal) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = nil
}
