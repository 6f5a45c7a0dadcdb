package session

import "sync"

// KeyedLock serializes work per key. Every state-machine transition for a
// given user must run between Lock(userID) and Unlock(userID) so two
// rapid-fire events from the same user cannot interleave session mutations.
type KeyedLock struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedLock creates an empty keyed lock.
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{locks: make(map[string]*lockEntry)}
}

// Lock acquires the lock for key, creating it on first use.
func (l *KeyedLock) Lock(key string) {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &lockEntry{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
}

// Unlock releases the lock for key and frees it once no waiter remains.
func (l *KeyedLock) Unlock(key string) {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if ok {
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
	}
	l.mu.Unlock()

	if ok {
		entry.mu.Unlock()
	}
}

// With runs fn while holding the lock for key.
func (l *KeyedLock) With(key string, fn func()) {
	l.Lock(key)
	defer l.Unlock(key)
	fn()
}
