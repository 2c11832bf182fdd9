package completeness

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlagCacheAbsentRendersComplete(t *testing.T) {
	c := NewFlagCache()
	assert.False(t, c.IsIncomplete("m1"))
	_, ok := c.Lookup("m1")
	assert.False(t, ok)
	assert.Equal(t, []string{"m1", "m2"}, c.Missing([]string{"m1", "m2"}))
}

func TestFlagCacheMergeIsPartial(t *testing.T) {
	c := NewFlagCache()
	c.Merge(map[string]bool{"m1": true, "m2": false})
	c.Merge(map[string]bool{"m2": true})

	assert.True(t, c.IsIncomplete("m1"))
	assert.True(t, c.IsIncomplete("m2"))
	assert.Equal(t, 2, c.Len())

	c.Merge(nil)
	assert.Equal(t, 2, c.Len())
}

func TestFlagCacheMergeUnlessDone(t *testing.T) {
	c := NewFlagCache()
	assert.True(t, c.MergeUnlessDone(context.Background(), map[string]bool{"m1": true}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, c.MergeUnlessDone(ctx, map[string]bool{"m1": false, "m2": true}))
	assert.Equal(t, map[string]bool{"m1": true}, c.Snapshot([]string{"m1", "m2"}))
}

func TestFlagCacheSeed(t *testing.T) {
	c := NewFlagCache()
	complete, incomplete := true, false
	c.Seed("a", &complete)
	c.Seed("b", &incomplete)
	c.Seed("c", nil)

	assert.Equal(t, map[string]bool{"a": false, "b": true}, c.Snapshot([]string{"a", "b", "c"}))
	assert.Equal(t, []string{"c"}, c.Missing([]string{"a", "b", "c"}))
}

func TestFlagCacheEvict(t *testing.T) {
	c := NewFlagCache()
	c.Merge(map[string]bool{"a": true, "b": true})
	c.Evict("a", "unknown")

	assert.Equal(t, []string{"a"}, c.Missing([]string{"a", "b"}))
	assert.False(t, c.IsIncomplete("a"))
}

func TestFlagCacheConcurrentUse(t *testing.T) {
	c := NewFlagCache()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i)
			c.Merge(map[string]bool{id: i%2 == 0})
			c.IsIncomplete(id)
			c.Snapshot([]string{id})
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 20, c.Len())
}
