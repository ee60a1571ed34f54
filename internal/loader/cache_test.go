package loader

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeCache_ProducesOnce(t *testing.T) {
	c := NewCodeCache()
	var calls atomic.Int32
	produce := func() (Entry, error) {
		calls.Add(1)
		return Entry{Code: []byte("x"), Instrumented: true}, nil
	}

	e, hit, err := c.GetOrProduce("a.B", produce)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.True(t, e.Instrumented)

	e, hit, err = c.GetOrProduce("a.B", produce)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []byte("x"), e.Code)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestCodeCache_FailuresAreNotStored(t *testing.T) {
	c := NewCodeCache()
	boom := errors.New("boom")

	_, _, err := c.GetOrProduce("a.B", func() (Entry, error) { return Entry{}, boom })
	assert.ErrorIs(t, err, boom)
	_, ok := c.Get("a.B")
	assert.False(t, ok)
	assert.Zero(t, c.Len())

	_, hit, err := c.GetOrProduce("a.B", func() (Entry, error) { return Entry{Code: []byte("ok")}, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, c.Len())
}

func TestCodeCache_ConcurrentMiss(t *testing.T) {
	c := NewCodeCache()
	var calls atomic.Int32
	release := make(chan struct{})
	produce := func() (Entry, error) {
		calls.Add(1)
		<-release
		return Entry{Code: []byte("x")}, nil
	}

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrProduce("a.B", produce)
			assert.NoError(t, err)
		}()
	}
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, c.Len())
}
