package utils

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyMutex(t *testing.T) {
	t.Run("serializes same key", func(t *testing.T) {
		km := NewKeyMutex()

		var (
			wg      sync.WaitGroup
			counter int
		)

		for range 100 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				km.Lock("user")
				counter++
				km.Unlock("user")
			}()
		}

		wg.Wait()
		assert.Equal(t, 100, counter)
	})

	t.Run("different keys are independent", func(t *testing.T) {
		km := NewKeyMutex()
		km.Lock("a")

		done := make(chan struct{})
		go func() {
			km.Lock("b")
			km.Unlock("b")
			close(done)
		}()

		// Holding "a" must not block "b".
		<-done
		km.Unlock("a")
	})

	t.Run("entries are reclaimed", func(t *testing.T) {
		km := NewKeyMutex()
		km.Lock("a")
		km.Unlock("a")
		assert.Empty(t, km.locks)
	})

	t.Run("unlock of unheld key panics", func(t *testing.T) {
		km := NewKeyMutex()
		assert.Panics(t, func() { km.Unlock("missing") })
	})
}
