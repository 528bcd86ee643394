// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package sequence provides generic single-pass sequence primitives
// used to turn flat event streams into presentation order.
//
// [Peekable] adds one element of lookahead to any forward-only
// producer. [Grouping] builds on it to partition a sequence into
// maximal runs of adjacent elements that belong together according to
// a pairwise predicate; [Groups] exposes the same partition as an
// iter.Seq. [InsertionIndex] and [InsertionIndexFunc] locate, by
// binary search, where a key belongs in a slice already ordered by
// that key, so ordered indexes can be maintained without re-sorting.
//
// Nothing here is safe for concurrent use. Producers are pulled from
// the goroutine calling Next or Peek.
package sequence
