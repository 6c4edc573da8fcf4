package engine

import (
	"sync"

	"github.com/google/uuid"
)

// keyMutex serializes work per id while letting different ids proceed
// concurrently. Entries are reference-counted so the map does not grow
// with every request ever seen.
type keyMutex struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyMutex() *keyMutex {
	return &keyMutex{entries: make(map[uuid.UUID]*lockEntry)}
}

func (k *keyMutex) Lock(id uuid.UUID) {
	k.mu.Lock()
	e, ok := k.entries[id]
	if !ok {
		e = &lockEntry{}
		k.entries[id] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
}

func (k *keyMutex) Unlock(id uuid.UUID) {
	k.mu.Lock()
	e := k.entries[id]
	e.refs--
	if e.refs == 0 {
		delete(k.entries, id)
	}
	k.mu.Unlock()

	e.mu.Unlock()
}
