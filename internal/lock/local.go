// Package lock provides the per show+date mutual exclusion used around
// seat claims: an in-process keyed lock and a Redis lease for running
// several API instances against one database.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iliyamo/movie-booking/internal/booking"
)

// DefaultWait bounds how long a caller queues for a key.
const DefaultWait = 5 * time.Second

// Local is a keyed mutex. Each key is a one-slot semaphore; entries are
// dropped once nobody holds or waits for them.
type Local struct {
	wait time.Duration

	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocal returns a keyed lock whose Lock gives up after wait.
func NewLocal(wait time.Duration) *Local {
	if wait <= 0 {
		wait = DefaultWait
	}
	return &Local{wait: wait, slots: make(map[string]*slot)}
}

// Lock blocks until key is free, ctx is done or the wait elapses. The
// returned release is idempotent.
func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := l.acquireSlot(key)
	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.releaseSlot(key, s)
		return nil, ctx.Err()
	case <-timer.C:
		l.releaseSlot(key, s)
		return nil, fmt.Errorf("%w: %s after %s", booking.ErrLockTimeout, key, l.wait)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.releaseSlot(key, s)
		})
	}, nil
}

func (l *Local) acquireSlot(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Local) releaseSlot(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// Len reports how many keys are currently tracked.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
