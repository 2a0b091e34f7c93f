package app

import (
	"sync"
	"sync/atomic"
)

// component builds one container dependency on first use. The first outcome, error
// included, is returned to every later caller.
type component[T any] struct {
	once  sync.Once
	ready atomic.Bool
	val   T
	err   error
}

func (c *component[T]) get(build func() (T, error)) (T, error) {
	c.once.Do(func() {
		c.val, c.err = build()
		c.ready.Store(c.err == nil)
	})
	return c.val, c.err
}

// value is get for constructors that cannot fail.
func (c *component[T]) value(build func() T) T {
	v, _ := c.get(func() (T, error) { return build(), nil })
	return v
}

// built reports the component without building it, for teardown.
func (c *component[T]) built() (T, bool) {
	if !c.ready.Load() {
		var zero T
		return zero, false
	}
	return c.val, true
}
