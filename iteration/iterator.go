package iteration

import (
	"iter"
	"sync"
)

// Source is a random-access container.
type Source[T any] interface {
	Len() int
	At(i int) T
}

// Slice adapts a Go slice to Source.
type Slice[T any] []T

func (s Slice[T]) Len() int { return len(s) }

func (s Slice[T]) At(i int) T { return s[i] }

// Step is the result of one advance: an item, or the terminal exhausted
// marker. Exhaustion is not an error.
type Step[T any] struct {
	item T
	done bool
}

// Item returns a step carrying v.
func Item[T any](v T) Step[T] { return Step[T]{item: v} }

// Exhausted returns the terminal step.
func Exhausted[T any]() Step[T] { return Step[T]{done: true} }

// Done reports whether the iterator is exhausted.
func (s Step[T]) Done() bool { return s.done }

// Value returns the item. It is the zero value for the terminal step.
func (s Step[T]) Value() T { return s.item }

// Iterator walks a source between two cursors. Once exhausted it stays
// exhausted.
type Iterator[T any] struct {
	src Source[T]
	cur int
	end int
	mu  sync.Mutex
}

// New creates an iterator over the whole source. The end cursor is fixed
// at creation.
func New[T any](src Source[T]) *Iterator[T] {
	return &Iterator[T]{src: src, end: src.Len()}
}

// Next returns the next item or the exhausted step.
func (it *Iterator[T]) Next() Step[T] {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.cur >= it.end {
		return Exhausted[T]()
	}
	v := it.src.At(it.cur)
	it.cur++
	return Item(v)
}

// Remaining returns how many items are left.
func (it *Iterator[T]) Remaining() int {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.end - it.cur
}

// All returns a sequence that drains the iterator.
func (it *Iterator[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			step := it.Next()
			if step.Done() || !yield(step.Value()) {
				return
			}
		}
	}
}
