package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Hour)
	defer c.Close()

	now := time.Now()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)

	c.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	c.removeExpired()
	assert.Zero(t, c.Len())
}

func TestMemoryCache_GetOrSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Hour)
	defer c.Close()

	calls := 0
	load := func() ([]byte, error) {
		calls++
		return []byte("loaded"), nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrSet(ctx, "k", time.Minute, load)
		require.NoError(t, err)
		assert.Equal(t, "loaded", string(v))
	}
	assert.Equal(t, 1, calls)

	_, err := c.GetOrSet(ctx, "bad", time.Minute, func() ([]byte, error) {
		return nil, errors.New("boom")
	})
	require.Error(t, err)
	_, err = c.Get(ctx, "bad")
	assert.ErrorIs(t, err, ErrCacheMiss, "failed loads are not cached")

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Hour)
	defer c.Close()

	buf := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", buf, time.Minute))
	buf[0] = 'x'

	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(v))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "close is idempotent")
}
