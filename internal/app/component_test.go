package app

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponent_BuildsOnce(t *testing.T) {
	var c component[*int]
	calls := 0
	build := func() (*int, error) {
		calls++
		v := calls
		return &v, nil
	}

	_, ok := c.built()
	assert.False(t, ok)

	var wg sync.WaitGroup
	results := make([]*int, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = c.get(build)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, calls)
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
	v, ok := c.built()
	require.True(t, ok)
	assert.Equal(t, 1, *v)
}

func TestComponent_ErrorIsSticky(t *testing.T) {
	var c component[string]
	boom := errors.New("dial tcp: connection refused")

	_, err := c.get(func() (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)

	_, err = c.get(func() (string, error) { return "recovered", nil })
	assert.ErrorIs(t, err, boom)

	_, ok := c.built()
	assert.False(t, ok)
}
