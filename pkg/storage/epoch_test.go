package storage

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEpochTracker(t *testing.T) {
	t.Run("starts at given value", func(t *testing.T) {
		tracker := NewEpochTracker(42)
		assert.Equal(t, uint64(42), tracker.Current())
	})

	t.Run("increment is monotonic", func(t *testing.T) {
		tracker := NewEpochTracker(0)
		assert.Equal(t, uint64(1), tracker.Increment())
		assert.Equal(t, uint64(2), tracker.Increment())
		assert.Equal(t, uint64(2), tracker.Current())
	})

	t.Run("concurrent increments never lose updates", func(t *testing.T) {
		tracker := NewEpochTracker(0)
		const goroutines = 8
		const perGoroutine = 1000

		var wg sync.WaitGroup
		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < perGoroutine; j++ {
					tracker.Increment()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, uint64(goroutines*perGoroutine), tracker.Current())
	})
}
