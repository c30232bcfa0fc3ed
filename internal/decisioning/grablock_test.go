package decisioning

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTitleLock(t *testing.T) {
	lock := NewTitleLock()

	unlock, ok := lock.TryLock(1)
	require.True(t, ok)

	_, ok = lock.TryLock(1)
	assert.False(t, ok, "held title")

	unlockOther, ok := lock.TryLock(2)
	require.True(t, ok, "other titles are independent")
	unlockOther()

	unlock()
	unlock()

	again, ok := lock.TryLock(1)
	require.True(t, ok, "free after unlock")
	again()
}

func TestTitleLock_Concurrent(t *testing.T) {
	lock := NewTitleLock()
	var acquired atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := lock.TryLock(7); ok {
				acquired.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), acquired.Load())
}
