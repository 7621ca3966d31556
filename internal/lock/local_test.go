package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-booking/internal/booking"
)

func TestLocal_MutualExclusion(t *testing.T) {
	l := NewLocal(time.Second)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
		counter int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Lock(ctx, "seats:1:2025-03-01")
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			counter++ // guarded by the keyed lock only
			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 20, counter)
	assert.Zero(t, l.Len(), "idle keys are dropped")
}

func TestLocal_KeysAreIndependent(t *testing.T) {
	l := NewLocal(50 * time.Millisecond)
	ctx := context.Background()

	relA, err := l.Lock(ctx, "a")
	require.NoError(t, err)
	defer relA()

	relB, err := l.Lock(ctx, "b")
	require.NoError(t, err)
	relB()
}

func TestLocal_WaitTimeout(t *testing.T) {
	l := NewLocal(20 * time.Millisecond)
	ctx := context.Background()

	release, err := l.Lock(ctx, "k")
	require.NoError(t, err)

	_, err = l.Lock(ctx, "k")
	require.ErrorIs(t, err, booking.ErrLockTimeout)

	release()
	release() // idempotent

	again, err := l.Lock(ctx, "k")
	require.NoError(t, err)
	again()
	assert.Zero(t, l.Len())
}

func TestLocal_ContextCancel(t *testing.T) {
	l := NewLocal(time.Second)
	release, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocal_CancelledContextNeverAcquiresFreeKey(t *testing.T) {
	l := NewLocal(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// a free slot and a done context are both ready; the lock must not be granted
	for i := 0; i < 50; i++ {
		release, err := l.Lock(ctx, "k")
		require.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, release)
	}
	assert.Zero(t, l.Len())
}
