// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package sequence

import "iter"

// Grouping partitions a Peekable source into maximal runs of adjacent
// elements. An element joins the current run when
// belongsTogether(last, element) is true, where last is the most
// recently accepted element of that run, not its first. Comparisons
// therefore chain forward: with a "differs by at most one" predicate,
// 1 2 3 4 forms a single run even though 1 and 4 differ by three.
//
// Grouping is single-pass and never backtracks; each source element is
// pulled exactly once.
type Grouping[T any] struct {
	source          *Peekable[T]
	belongsTogether func(previous, candidate T) bool
}

// NewGrouping returns a Grouping over source.
func NewGrouping[T any](source *Peekable[T], belongsTogether func(previous, candidate T) bool) *Grouping[T] {
	return &Grouping[T]{source: source, belongsTogether: belongsTogether}
}

// Next returns the next run. Runs are never empty. The second result
// is false once the source is exhausted.
func (g *Grouping[T]) Next() ([]T, bool) {
	seed, ok := g.source.Next()
	if !ok {
		return nil, false
	}
	run := []T{seed}
	for {
		candidate, ok := g.source.Peek()
		if !ok || !g.belongsTogether(run[len(run)-1], candidate) {
			return run, true
		}
		g.source.Next()
		run = append(run, candidate)
	}
}

// Groups returns an iterator over the runs of seq under
// belongsTogether. Breaking out of the range loop releases seq.
func Groups[T any](seq iter.Seq[T], belongsTogether func(previous, candidate T) bool) iter.Seq[[]T] {
	return func(yield func([]T) bool) {
		source, stop := PeekableSeq(seq)
		defer stop()
		grouping := NewGrouping(source, belongsTogether)
		for {
			run, ok := grouping.Next()
			if !ok || !yield(run) {
				return
			}
		}
	}
}

// GroupSlice partitions items into runs. The runs share no backing
// storage with items.
func GroupSlice[T any](items []T, belongsTogether func(previous, candidate T) bool) [][]T {
	grouping := NewGrouping(PeekableSlice(items), belongsTogether)
	var runs [][]T
	for {
		run, ok := grouping.Next()
		if !ok {
			return runs
		}
		runs = append(runs, run)
	}
}
