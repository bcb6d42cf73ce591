package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dropbox/godropbox/time2"
	"github.com/layer-3/garant/core"
	"github.com/layer-3/garant/ports"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, s ports.Store, advance func(time.Duration)) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		_, err := s.Get(ctx, "missing")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("set get delete", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k1", "v1", time.Minute))

		got, err := s.Get(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, "v1", got)

		require.NoError(t, s.Delete(ctx, "k1"))
		_, err = s.Get(ctx, "k1")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k2", "first", time.Minute))
		require.NoError(t, s.Set(ctx, "k2", "second", time.Minute))

		got, err := s.Get(ctx, "k2")
		require.NoError(t, err)
		assert.Equal(t, "second", got)
	})

	t.Run("expiry", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k3", "v3", 10*time.Second))
		advance(11 * time.Second)

		_, err := s.Get(ctx, "k3")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("compare and delete", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k4", "v4", time.Minute))

		removed, err := s.CompareAndDelete(ctx, "k4", "other")
		require.NoError(t, err)
		assert.False(t, removed)

		removed, err = s.CompareAndDelete(ctx, "k4", "v4")
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = s.CompareAndDelete(ctx, "k4", "v4")
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("compare and delete race", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k5", "v5", time.Minute))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				removed, err := s.CompareAndDelete(ctx, "k5", "v5")
				assert.NoError(t, err)
				if removed {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
	})
}

func TestMemoryStore(t *testing.T) {
	clock := time2.NewMockClock(time.Now())
	s := NewMemoryStore(testContext(t), clock)

	testStore(t, s, clock.Advance)
}

func TestMemoryStore_Sweep(t *testing.T) {
	clock := time2.NewMockClock(time.Now())
	s := NewMemoryStore(testContext(t), clock)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "short", "v", time.Second))
	require.NoError(t, s.Set(ctx, "long", "v", time.Hour))
	require.NoError(t, s.Set(ctx, "forever", "v", 0))
	assert.Equal(t, 3, s.Len())

	clock.Advance(time.Minute)
	s.Sweep()
	assert.Equal(t, 2, s.Len())
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := NewRedisStore(client)
	testStore(t, s, mr.FastForward)

	t.Run("prefix", func(t *testing.T) {
		require.NoError(t, s.Set(context.Background(), "nonce:0xabc", "v", time.Minute))
		assert.True(t, mr.Exists("garant:nonce:0xabc"))
	})
}
