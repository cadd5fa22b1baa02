package registry

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler() *LoadedHandler {
	return &LoadedHandler{EndpointID: uuid.New()}
}

func TestAcquireIncrementsRefcount(t *testing.T) {
	h := newTestHandler()
	guard, ok := Acquire(h)
	require.True(t, ok)
	assert.Equal(t, int64(1), h.Refcount())

	guard.Release()
	assert.Equal(t, int64(0), h.Refcount())
}

func TestAcquireFailsWhenDraining(t *testing.T) {
	h := newTestHandler()
	h.draining.Store(true)

	guard, ok := Acquire(h)
	assert.False(t, ok)
	assert.Nil(t, guard)
	assert.Equal(t, int64(0), h.Refcount())
}

func TestReleaseIsIdempotent(t *testing.T) {
	h := newTestHandler()
	guard, ok := Acquire(h)
	require.True(t, ok)

	guard.Release()
	guard.Release()
	assert.Equal(t, int64(0), h.Refcount())
}

func TestConcurrentAcquireRelease(t *testing.T) {
	h := newTestHandler()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			guard, ok := Acquire(h)
			if ok {
				guard.Release()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(0), h.Refcount())
}
