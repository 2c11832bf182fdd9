// Package querycache is a small keyed cache for read models. Keys are
// hierarchical and invalidating a key drops everything beneath it.
package querycache

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
)

// Key is a hierarchical cache key, e.g. Key{"program", id, "modules"}.
type Key []string

func (k Key) String() string {
	parts := make([]string, len(k))
	for i, seg := range k {
		parts[i] = url.PathEscape(seg)
	}
	return "qc/" + strings.Join(parts, "/")
}

// Child extends the key by more segments.
func (k Key) Child(segments ...string) Key {
	out := make(Key, 0, len(k)+len(segments))
	out = append(out, k...)
	return append(out, segments...)
}

// covers reports whether stored key s equals or sits beneath prefix p.
func covers(p, s string) bool {
	return s == p || strings.HasPrefix(s, p+"/")
}

var ErrEmptyKey = errors.New("querycache: empty key")

// Cache stores JSON-encodable values under hierarchical keys.
type Cache interface {
	// Get decodes the value at key into dest. It reports false on a miss.
	Get(ctx context.Context, key Key, dest interface{}) (bool, error)
	Set(ctx context.Context, key Key, value interface{}) error
	// Invalidate drops key and every key beneath it.
	Invalidate(ctx context.Context, prefix Key) error
}

// GetOrLoad returns the cached value or calls load and stores its result.
// A cache error never hides a successful load.
func GetOrLoad[T any](ctx context.Context, c Cache, key Key, load func(ctx context.Context) (T, error)) (T, error) {
	var v T
	if hit, err := c.Get(ctx, key, &v); err == nil && hit {
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	_ = c.Set(ctx, key, v)
	return v, nil
}

func expiry(ttl time.Duration, now time.Time) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
