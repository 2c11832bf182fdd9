package completeness

import (
	"context"
	"sync"
)

// FlagCache maps entity id to an "incomplete" flag. An absent id renders as
// complete until reconciliation fills it in. Safe for concurrent use.
type FlagCache struct {
	mu    sync.RWMutex
	flags map[string]bool
}

func NewFlagCache() *FlagCache {
	return &FlagCache{flags: make(map[string]bool)}
}

// IsIncomplete is true only for ids explicitly flagged incomplete.
func (c *FlagCache) IsIncomplete(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.flags[id]
}

// Lookup returns the flag and whether the id is known.
func (c *FlagCache) Lookup(id string) (incomplete, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	incomplete, ok = c.flags[id]
	return incomplete, ok
}

// Seed records a persisted isComplete value. Nil leaves the id absent.
func (c *FlagCache) Seed(id string, isComplete *bool) {
	if isComplete == nil {
		return
	}
	c.Merge(map[string]bool{id: !*isComplete})
}

// Merge applies a partial update. Ids not in update are left untouched.
func (c *FlagCache) Merge(update map[string]bool) {
	if len(update) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, incomplete := range update {
		c.flags[id] = incomplete
	}
}

// MergeUnlessDone applies update only if ctx is still live. The check and
// the write happen under one lock, so a pass cancelled before a concurrent
// Evict can never write behind it. It reports whether update was applied.
func (c *FlagCache) MergeUnlessDone(ctx context.Context, update map[string]bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	for id, incomplete := range update {
		c.flags[id] = incomplete
	}
	return true
}

// Evict forgets the given ids so the next view reconciles them.
func (c *FlagCache) Evict(ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.flags, id)
	}
}

// Missing returns the ids that have no entry, preserving input order.
func (c *FlagCache) Missing(ids []string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []string
	for _, id := range ids {
		if _, ok := c.flags[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// Snapshot copies the flags for ids. Absent ids are omitted.
func (c *FlagCache) Snapshot(ids []string) map[string]bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		if v, ok := c.flags[id]; ok {
			out[id] = v
		}
	}
	return out
}

// Len is the number of known ids.
func (c *FlagCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.flags)
}
