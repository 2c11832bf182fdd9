package querycache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyString(t *testing.T) {
	assert.Equal(t, "qc/program/abc/modules", Key{"program", "abc", "modules"}.String())
	assert.Equal(t, "qc/library/a%2Fb", Key{"library", "a/b"}.String())

	parent := Key{"program", "abc"}
	child := parent.Child("module", "m1")
	assert.Equal(t, Key{"program", "abc", "module", "m1"}, child)
	assert.Equal(t, Key{"program", "abc"}, parent, "Child must not alias the parent")
}

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(0)

	var got []string
	hit, err := c.Get(ctx, Key{"program", "p1"}, &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, Key{"program", "p1"}, []string{"a", "b"}))
	hit, err = c.Get(ctx, Key{"program", "p1"}, &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestMemoryInvalidateIsHierarchical(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(0)
	program := Key{"program", "p1"}
	require.NoError(t, c.Set(ctx, program, 1))
	require.NoError(t, c.Set(ctx, program.Child("modules"), 2))
	require.NoError(t, c.Set(ctx, program.Child("module", "m1", "sessions"), 3))
	require.NoError(t, c.Set(ctx, Key{"program", "p10"}, 4))

	require.NoError(t, c.Invalidate(ctx, program))

	var v int
	for _, k := range []Key{program, program.Child("modules"), program.Child("module", "m1", "sessions")} {
		hit, err := c.Get(ctx, k, &v)
		require.NoError(t, err)
		assert.False(t, hit, k.String())
	}
	hit, err := c.Get(ctx, Key{"program", "p10"}, &v)
	require.NoError(t, err)
	assert.True(t, hit, "sibling with a common string prefix must survive")
	assert.Equal(t, 4, v)
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute).(*memoryCache)
	now := time.Now()
	c.now = func() time.Time { return now }
	require.NoError(t, c.Set(ctx, Key{"k"}, "v"))

	var v string
	hit, _ := c.Get(ctx, Key{"k"}, &v)
	assert.True(t, hit)

	now = now.Add(2 * time.Minute)
	hit, _ = c.Get(ctx, Key{"k"}, &v)
	assert.False(t, hit)
}

func TestMemoryEmptyKey(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(0)
	assert.ErrorIs(t, c.Set(ctx, nil, 1), ErrEmptyKey)
	assert.ErrorIs(t, c.Invalidate(ctx, Key{}), ErrEmptyKey)
	_, err := c.Get(ctx, nil, new(int))
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestGetOrLoad(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(0)
	calls := 0
	load := func(context.Context) (bool, error) {
		calls++
		return true, nil
	}

	for i := 0; i < 3; i++ {
		v, err := GetOrLoad(ctx, c, Key{"library", "lib", "complete", "Squat"}, load)
		require.NoError(t, err)
		assert.True(t, v)
	}
	assert.Equal(t, 1, calls)

	_, err := GetOrLoad(ctx, c, Key{"other"}, func(context.Context) (int, error) {
		return 0, errors.New("load failed")
	})
	assert.EqualError(t, err, "load failed")
	hit, _ := c.Get(ctx, Key{"other"}, new(int))
	assert.False(t, hit, "failed loads are not cached")
}
