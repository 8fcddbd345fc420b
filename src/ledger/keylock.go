package ledger

import "sync"

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// KeyMutex serializes operations per entity address. Engines hold the
// lock for exactly one operation; locks are never held across
// operations. Entries are evicted once the last holder releases, so
// the map stays bounded by in-flight keys.
type KeyMutex struct {
	mu    sync.Mutex
	locks map[Address]*keyLock
}

func NewKeyMutex() *KeyMutex {
	return &KeyMutex{locks: make(map[Address]*keyLock)}
}

// Lock acquires the mutex for key and returns its unlock func.
func (k *KeyMutex) Lock(key Address) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
