package utils

import "sync"

// KeyMutex provides per-key mutual exclusion. It is used to serialize
// load-mutate-save cycles on a single user's state so concurrent handlers
// cannot interleave between a store read and the matching write.
type KeyMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyMutex creates an empty KeyMutex.
func NewKeyMutex() *KeyMutex {
	return &KeyMutex{
		locks: make(map[string]*keyLock),
	}
}

// Lock acquires the mutex for the given key, blocking until it is available.
func (k *KeyMutex) Lock(key string) {
	k.mu.Lock()

	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}

	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
}

// Unlock releases the mutex for the given key. The per-key entry is removed
// once no goroutine holds or waits on it, so the map stays bounded by the
// number of concurrently active keys.
func (k *KeyMutex) Unlock(key string) {
	k.mu.Lock()

	l, ok := k.locks[key]
	if !ok {
		k.mu.Unlock()
		panic("utils: unlock of unheld key " + key)
	}

	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}

	k.mu.Unlock()
	l.mu.Unlock()
}
