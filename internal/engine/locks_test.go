package engine

import (
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestKeyMutexSerializesPerKey(t *testing.T) {
	km := newKeyMutex()
	id := uuid.New()

	const goroutines = 50
	var counter int
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			km.Lock(id)
			defer km.Unlock(id)
			counter++
		}()
	}
	wg.Wait()

	if counter != goroutines {
		t.Fatalf("counter = %d, want %d", counter, goroutines)
	}
	if len(km.entries) != 0 {
		t.Fatalf("lock table not drained: %d entries", len(km.entries))
	}
}

func TestKeyMutexIndependentKeys(t *testing.T) {
	km := newKeyMutex()
	a, b := uuid.New(), uuid.New()

	km.Lock(a)
	done := make(chan struct{})
	go func() {
		km.Lock(b)
		km.Unlock(b)
		close(done)
	}()
	<-done // a being held must not block b
	km.Unlock(a)

	if len(km.entries) != 0 {
		t.Fatalf("lock table not drained: %d entries", len(km.entries))
	}
}
