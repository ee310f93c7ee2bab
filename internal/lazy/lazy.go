// Package lazy provides a single-assignment deferred value: a bound function
// executed at most once, on first access, with the result memoized for every
// later reader.
package lazy

import (
	"context"
	"sync"
)

// Cell wraps a deferred computation. The zero value is not usable; construct
// with Defer. Safe for concurrent use: the function runs exactly once even
// under concurrent Get calls, and an error result is memoized the same as a
// success so a failed remote call is not retried through the same cell.
type Cell[T any] struct {
	once  sync.Once
	fn    func(ctx context.Context) (T, error)
	value T
	err   error
	done  bool
	mu    sync.Mutex
}

// Defer binds fn without calling it.
func Defer[T any](fn func(ctx context.Context) (T, error)) *Cell[T] {
	return &Cell[T]{fn: fn}
}

// Resolve returns a cell already holding a value, for members supplied
// explicitly rather than fetched.
func Resolve[T any](v T) *Cell[T] {
	c := &Cell[T]{value: v, done: true}
	c.once.Do(func() {})
	return c
}

// Get evaluates the deferred function on first call and returns the memoized
// result on every call after that.
func (c *Cell[T]) Get(ctx context.Context) (T, error) {
	c.once.Do(func() {
		v, err := c.fn(ctx)
		c.mu.Lock()
		c.value, c.err, c.done = v, err, true
		c.mu.Unlock()
		c.fn = nil
	})
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.err
}

// Resolved reports whether the cell has been evaluated.
func (c *Cell[T]) Resolved() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}
