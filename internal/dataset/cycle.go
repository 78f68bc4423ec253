package dataset

import (
	"errors"
)

// ErrEmptySource is returned by Cycle.Next when a freshly opened pass yields
// nothing, which would otherwise spin forever.
var ErrEmptySource = errors.New("cycle: source yields no items")

// Cycle turns a finite, restartable source into an endless one.
//
// When the current pass is exhausted, Cycle opens a new one and continues,
// so callers never observe the end of a pass. Within a pass, items follow
// the underlying iterator's order.
type Cycle[T any] struct {
	open   func() Iterator[T]
	cur    Iterator[T]
	passes int
}

// NewCycle creates a cycle over the passes produced by open.
//
// The first pass is opened lazily on the first call to Next.
func NewCycle[T any](open func() Iterator[T]) *Cycle[T] {
	return &Cycle[T]{open: open}
}

// Next returns the next item, restarting the source on exhaustion.
func (c *Cycle[T]) Next() (T, error) {
	if c.cur != nil {
		if item, ok := c.cur.Next(); ok {
			return item, nil
		}
	}

	c.cur = c.open()
	c.passes++
	item, ok := c.cur.Next()
	if !ok {
		var zero T
		return zero, ErrEmptySource
	}
	return item, nil
}

// Passes returns how many passes have been opened so far.
func (c *Cycle[T]) Passes() int {
	return c.passes
}

// CycleBatches is a convenience for NewCycle(l.Iter).
func CycleBatches(l *Loader) *Cycle[Batch] {
	return NewCycle(l.Iter)
}
