package cache

import (
	"context"
	"sync"
	"time"
)

type LoadFunc[T any] func(context.Context) (T, error)

// Loader keeps one value in memory and reloads it once the TTL has passed.
type Loader[T any] struct {
	mu       sync.RWMutex
	value    T
	loaded   bool
	expires  time.Time
	ttl      time.Duration
	loadFunc LoadFunc[T]
	now      func() time.Time
}

func NewLoader[T any](ttl time.Duration, load LoadFunc[T]) *Loader[T] {
	return &Loader[T]{
		ttl:      ttl,
		loadFunc: load,
		now:      time.Now,
	}
}

func (c *Loader[T]) Get(ctx context.Context) (T, error) {
	c.mu.RLock()
	if c.loaded && c.now().Before(c.expires) {
		defer c.mu.RUnlock()
		return c.value, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded && c.now().Before(c.expires) {
		return c.value, nil
	}
	v, err := c.loadFunc(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	c.value = v
	c.loaded = true
	c.expires = c.now().Add(c.ttl)
	return v, nil
}

func (c *Loader[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.value = zero
	c.loaded = false
	c.expires = time.Time{}
}
