package vault

import "sync"

// keyLocks serializes the write/move/delete operation family per source id.
// Without it, a concurrent edit and delete of the same capture can interleave
// the move's write-new/remove-old steps.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*lockEntry)}
}

// acquire blocks until the lock for key is held and returns the release
// function. Entries are reference-counted so the table does not grow with
// every source id ever seen.
func (k *keyLocks) acquire(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &lockEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
