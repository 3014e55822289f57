package engine

import (
	"context"
	"testing"
	"time"

	"github.com/dynsweep/bili-dynamic-cleaner/types"
	"github.com/stretchr/testify/assert"
)

func TestForwardDateResolveFallbackOrder(t *testing.T) {
	resolver := NewForwardDateResolver(3, time.Millisecond)

	// The author module's pub_ts wins over everything else
	item := &types.DynamicItem{
		Modules:   &types.Modules{ModuleAuthor: &types.Author{PubTS: 100, PubTime: 200}},
		PubTS:     300,
		PubTime:   400,
		CTime:     500,
		Timestamp: 600,
	}
	outcome := resolver.Resolve(context.Background(), item)
	assert.True(t, outcome.Resolved)
	assert.Equal(t, int64(100), outcome.Timestamp)

	// Then the author module's pubtime
	item.Modules.ModuleAuthor.PubTS = 0
	outcome = resolver.Resolve(context.Background(), item)
	assert.Equal(t, int64(200), outcome.Timestamp)

	// Then the item-level candidates in order
	item.Modules = nil
	outcome = resolver.Resolve(context.Background(), item)
	assert.Equal(t, int64(300), outcome.Timestamp)

	item.PubTS = 0
	outcome = resolver.Resolve(context.Background(), item)
	assert.Equal(t, int64(400), outcome.Timestamp)

	item.PubTime = 0
	outcome = resolver.Resolve(context.Background(), item)
	assert.Equal(t, int64(500), outcome.Timestamp)

	item.CTime = 0
	outcome = resolver.Resolve(context.Background(), item)
	assert.Equal(t, int64(600), outcome.Timestamp)
}

func TestForwardDateResolveUnresolvedAfterRetries(t *testing.T) {
	resolver := NewForwardDateResolver(3, time.Millisecond)

	outcome := resolver.Resolve(context.Background(), &types.DynamicItem{})

	assert.False(t, outcome.Resolved)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Empty(t, outcome.Date)
}

func TestForwardDateResolveImmediateHitSkipsBackoff(t *testing.T) {
	resolver := NewForwardDateResolver(3, time.Hour)

	start := time.Now()
	outcome := resolver.Resolve(context.Background(), &types.DynamicItem{Timestamp: 42})

	assert.True(t, outcome.Resolved)
	assert.Zero(t, outcome.Attempts)
	assert.Less(t, time.Since(start), time.Second)
}

func TestForwardDateResolveDateRendering(t *testing.T) {
	resolver := NewForwardDateResolver(1, 0)

	ts := time.Date(2024, 3, 9, 23, 30, 0, 0, time.Local).Unix()
	outcome := resolver.Resolve(context.Background(), &types.DynamicItem{Timestamp: ts})

	assert.Equal(t, "2024-03-09", outcome.Date)
}
