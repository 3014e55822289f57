package cache

import (
	"testing"
	"time"

	"github.com/dynsweep/bili-dynamic-cleaner/types"
	"github.com/stretchr/testify/assert"
)

func resolvedOutcome(status types.LotteryStatus) types.LotteryOutcome {
	return types.LotteryOutcome{Resolved: true, IsLottery: true, Status: status}
}

func TestCacheSetAndGet(t *testing.T) {
	cache := NewInMemoryCache(time.Minute)
	defer cache.Close()

	cache.Set("orig1", resolvedOutcome(types.LotteryConcluded))

	outcome, ok := cache.Get("orig1")
	assert.True(t, ok)
	assert.True(t, outcome.Concluded())
}

func TestCacheMiss(t *testing.T) {
	cache := NewInMemoryCache(time.Minute)
	defer cache.Close()

	_, ok := cache.Get("missing")
	assert.False(t, ok)
}

func TestCacheDropsUnresolvedOutcomes(t *testing.T) {
	cache := NewInMemoryCache(time.Minute)
	defer cache.Close()

	cache.Set("orig1", types.LotteryOutcome{Resolved: false, ErrorKind: types.LotteryErrTimeout})

	_, ok := cache.Get("orig1")
	assert.False(t, ok)
}

func TestCacheExpiry(t *testing.T) {
	cache := NewInMemoryCache(10 * time.Millisecond)
	defer cache.Close()

	cache.Set("orig1", resolvedOutcome(types.LotteryPending))
	time.Sleep(20 * time.Millisecond)

	_, ok := cache.Get("orig1")
	assert.False(t, ok)
}

func TestCacheClear(t *testing.T) {
	cache := NewInMemoryCache(time.Minute)
	defer cache.Close()

	cache.Set("orig1", resolvedOutcome(types.LotteryConcluded))
	cache.Set("orig2", resolvedOutcome(types.LotteryPending))
	cache.Clear()

	_, ok := cache.Get("orig1")
	assert.False(t, ok)
	_, ok = cache.Get("orig2")
	assert.False(t, ok)
}
