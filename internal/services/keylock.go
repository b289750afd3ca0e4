package services

import (
	"context"
	"sync"
)

// keyLock serializes work per key. Entries are reference counted and
// removed when the last holder or waiter leaves, so the map stays bounded
// by the number of in-flight keys.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*keyEntry
}

// keyEntry is a one-slot semaphore; a buffered channel lets waiters give up
// when their context ends.
type keyEntry struct {
	slot chan struct{}
	refs int
}

// lock blocks until key is free or ctx is done. On success the returned
// func releases the key; on failure it returns ctx.Err() and holds nothing.
func (k *keyLock) lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyEntry)
	}
	e, ok := k.locks[key]
	if !ok {
		e = &keyEntry{slot: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.slot <- struct{}{}:
	case <-ctx.Done():
		k.release(key, e)
		return nil, ctx.Err()
	}
	return func() {
		<-e.slot
		k.release(key, e)
	}, nil
}

func (k *keyLock) release(key string, e *keyEntry) {
	k.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()
}

func (k *keyLock) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
