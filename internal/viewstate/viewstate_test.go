package viewstate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard(t *testing.T) {
	t.Run("reset invalidates", func(t *testing.T) {
		var g Guard
		tk := g.Begin()
		assert.True(t, g.Valid(tk))
		g.Reset()
		assert.False(t, g.Valid(tk))
		assert.True(t, g.Valid(g.Begin()))
	})

	t.Run("newer key ticket wins", func(t *testing.T) {
		var g Guard
		first := g.BeginKey("o1")
		second := g.BeginKey("o1")
		other := g.BeginKey("o2")

		assert.False(t, g.Valid(first))
		assert.True(t, g.Valid(second))
		assert.True(t, g.Valid(other))
	})

	t.Run("close until open", func(t *testing.T) {
		var g Guard
		tk := g.Begin()
		g.Close()
		assert.True(t, g.Closed())
		assert.False(t, g.Valid(tk))
		assert.False(t, g.Valid(g.Begin()))

		g.Open()
		assert.False(t, g.Valid(tk), "tickets from before close stay stale")
		assert.True(t, g.Valid(g.Begin()))
	})
}

func TestKeyedMutexSerializes(t *testing.T) {
	var m KeyedMutex
	ctx := context.Background()

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(ctx, "p1")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Empty(t, m.locks)
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	var m KeyedMutex
	ctx := context.Background()

	unlockA, err := m.Lock(ctx, "a")
	require.NoError(t, err)
	defer unlockA()

	unlockB, err := m.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestKeyedMutexContext(t *testing.T) {
	var m KeyedMutex
	unlock, err := m.Lock(context.Background(), "p1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = m.Lock(ctx, "p1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.Empty(t, m.locks)
}
