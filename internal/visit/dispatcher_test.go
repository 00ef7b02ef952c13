package visit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcher(t *testing.T) {
	t.Run("records dispatched visits", func(t *testing.T) {
		store := &fakeStore{}
		rec := NewRecorder(store, noopGeo{}, Options{TrackingEnabled: true}, discardLogger)
		d := NewDispatcher(rec, 64, 4, discardLogger)

		const n = 50
		for i := 0; i < n; i++ {
			d.Dispatch(trackedRecord(), browserSnapshot())
		}
		d.Stop()

		assert.Equal(t, n, store.count())
	})

	t.Run("full queue drops instead of blocking", func(t *testing.T) {
		store := &fakeStore{}
		rec := NewRecorder(store, noopGeo{}, Options{TrackingEnabled: true}, discardLogger)

		// No workers consume until Stop, so only queueSize jobs survive.
		d := &Dispatcher{
			recorder: rec,
			jobs:     make(chan job, 2),
			logger:   discardLogger,
		}

		for i := 0; i < 10; i++ {
			d.Dispatch(trackedRecord(), browserSnapshot())
		}

		d.wg.Add(1)
		go d.worker()
		d.Stop()

		assert.Equal(t, 2, store.count())
	})

	t.Run("concurrent dispatchers lose nothing", func(t *testing.T) {
		store := &fakeStore{}
		rec := NewRecorder(store, noopGeo{}, Options{TrackingEnabled: true}, discardLogger)
		d := NewDispatcher(rec, 256, 4, discardLogger)

		const goroutines, perGoroutine = 8, 25
		var wg sync.WaitGroup
		wg.Add(goroutines)

		for i := 0; i < goroutines; i++ {
			go func() {
				defer wg.Done()
				for j := 0; j < perGoroutine; j++ {
					d.Dispatch(trackedRecord(), browserSnapshot())
				}
			}()
		}
		wg.Wait()
		d.Stop()

		assert.Equal(t, goroutines*perGoroutine, store.count())
	})

	t.Run("stop drains the queue", func(t *testing.T) {
		store := &fakeStore{}
		rec := NewRecorder(store, noopGeo{}, Options{TrackingEnabled: true}, discardLogger)
		d := NewDispatcher(rec, 128, 1, discardLogger)

		for i := 0; i < 100; i++ {
			d.Dispatch(trackedRecord(), browserSnapshot())
		}
		d.Stop()

		assert.Equal(t, 100, store.count())
	})
}
