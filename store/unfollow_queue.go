/*
Package store provides the persisted unfollow queue.

Authors whose forwards were deleted are queued here until the post-run sweep
drains them. The queue survives process restarts, so authors collected in one
run are still unfollowed if the sweep happens in a later run.
*/
package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/dynsweep/bili-dynamic-cleaner/types"
	"go.etcd.io/bbolt"
)

const unfollowBucket = "unfollow_queue"

// UnfollowQueue is a bbolt-backed set of authors pending an unfollow call,
// keyed (and deduplicated) by the author's numeric id. All mutations happen
// on the controller thread; bbolt's own locking covers concurrent readers.
type UnfollowQueue struct {
	db *bbolt.DB
}

// OpenUnfollowQueue opens (or creates) the queue database at the given path
func OpenUnfollowQueue(path string) (*UnfollowQueue, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue database %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(unfollowBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create queue bucket: %w", err)
	}

	return &UnfollowQueue{db: db}, nil
}

// Close closes the underlying database
func (q *UnfollowQueue) Close() error {
	return q.db.Close()
}

// Add queues an author. Adding an already queued author is a no-op.
func (q *UnfollowQueue) Add(entry types.UnfollowEntry) error {
	return q.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(unfollowBucket))
		key := []byte(strconv.FormatInt(entry.MID, 10))
		if b.Get(key) != nil {
			return nil
		}
		val, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return b.Put(key, val)
	})
}

// List returns all queued authors ordered by numeric id
func (q *UnfollowQueue) List() ([]types.UnfollowEntry, error) {
	var entries []types.UnfollowEntry
	err := q.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(unfollowBucket))
		return b.ForEach(func(k, v []byte) error {
			var entry types.UnfollowEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("corrupt queue entry %s: %w", string(k), err)
			}
			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].MID < entries[j].MID })
	return entries, nil
}

// Remove deletes one queued author
func (q *UnfollowQueue) Remove(mid int64) error {
	return q.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(unfollowBucket))
		return b.Delete([]byte(strconv.FormatInt(mid, 10)))
	})
}

// Clear empties the queue
func (q *UnfollowQueue) Clear() error {
	return q.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(unfollowBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(unfollowBucket))
		return err
	})
}

// Len returns the number of queued authors
func (q *UnfollowQueue) Len() (int, error) {
	var count int
	err := q.db.View(func(tx *bbolt.Tx) error {
		count = q.bucketLen(tx)
		return nil
	})
	return count, err
}

func (q *UnfollowQueue) bucketLen(tx *bbolt.Tx) int {
	b := tx.Bucket([]byte(unfollowBucket))
	if b == nil {
		return 0
	}
	return b.Stats().KeyN
}
