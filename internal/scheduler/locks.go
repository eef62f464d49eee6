package scheduler

import (
	"context"
	"sync"

	"github.com/hamed0406/statuspulse/internal/domain"
)

// keyedLocks holds one single-slot semaphore per monitor.
type keyedLocks struct {
	mu    sync.Mutex
	slots map[domain.MonitorID]chan struct{}
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{slots: make(map[domain.MonitorID]chan struct{})}
}

func (k *keyedLocks) slot(id domain.MonitorID) chan struct{} {
	k.mu.Lock()
	defer k.mu.Unlock()
	c, ok := k.slots[id]
	if !ok {
		c = make(chan struct{}, 1)
		k.slots[id] = c
	}
	return c
}

// TryLock returns false immediately if the monitor is already being checked.
func (k *keyedLocks) TryLock(id domain.MonitorID) (unlock func(), ok bool) {
	c := k.slot(id)
	select {
	case c <- struct{}{}:
		return func() { <-c }, true
	default:
		return nil, false
	}
}

// Lock waits for the monitor's slot or ctx.
func (k *keyedLocks) Lock(ctx context.Context, id domain.MonitorID) (unlock func(), err error) {
	c := k.slot(id)
	select {
	case c <- struct{}{}:
		return func() { <-c }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
