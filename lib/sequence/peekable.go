// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package sequence

import "iter"

// Peekable wraps a forward-only producer with one element of
// lookahead. The producer is called at most once per element: a value
// pulled by Peek is cached and handed out by the following Next.
//
// The end of the producer is cached as well, so a producer is never
// called again after it has reported exhaustion.
type Peekable[T any] struct {
	pull func() (T, bool)

	// peeked is true while head holds a pulled, unconsumed element.
	peeked bool
	head   T

	// done is set once pull reports the end.
	done bool
}

// NewPeekable wraps pull, a function returning the next element and
// true, or the zero value and false at the end.
func NewPeekable[T any](pull func() (T, bool)) *Peekable[T] {
	return &Peekable[T]{pull: pull}
}

// PeekableSlice returns a Peekable over the elements of items in order.
// The slice is not copied.
func PeekableSlice[T any](items []T) *Peekable[T] {
	position := 0
	return NewPeekable(func() (T, bool) {
		if position >= len(items) {
			var zero T
			return zero, false
		}
		item := items[position]
		position++
		return item, true
	})
}

// PeekableSeq returns a Peekable over seq. The returned stop function
// releases the underlying iterator and must be called once the caller
// is done, whether or not the sequence was drained.
func PeekableSeq[T any](seq iter.Seq[T]) (*Peekable[T], func()) {
	next, stop := iter.Pull(seq)
	return NewPeekable(next), stop
}

// Next returns and consumes the next element. The second result is
// false once the producer is exhausted.
func (p *Peekable[T]) Next() (T, bool) {
	if p.peeked {
		value := p.head
		var zero T
		p.head = zero
		p.peeked = false
		return value, true
	}
	return p.advance()
}

// Peek returns the next element without consuming it. Repeated calls
// without an intervening Next return the same element.
func (p *Peekable[T]) Peek() (T, bool) {
	if p.peeked {
		return p.head, true
	}
	value, ok := p.advance()
	if ok {
		p.head = value
		p.peeked = true
	}
	return value, ok
}

func (p *Peekable[T]) advance() (T, bool) {
	if p.done {
		var zero T
		return zero, false
	}
	value, ok := p.pull()
	if !ok {
		p.done = true
	}
	return value, ok
}
