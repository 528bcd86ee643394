// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package sequence

import (
	"cmp"
	"slices"
	"sort"
)

// InsertionIndexFunc returns the index at which an element with key
// value belongs in s, which must already be sorted ascending by keyOf
// under less. The result is the first index i for which
// less(keyOf(s[i]), value) is false, or len(s) if there is none. With
// a strict less the new element lands in front of any equal keys.
//
// The search is a binary search: O(log n) comparisons.
func InsertionIndexFunc[S ~[]E, E, K any](s S, value K, keyOf func(E) K, less func(a, b K) bool) int {
	return sort.Search(len(s), func(i int) bool {
		return !less(keyOf(s[i]), value)
	})
}

// InsertionIndex is InsertionIndexFunc for naturally ordered keys,
// comparing with <.
func InsertionIndex[S ~[]E, E any, K cmp.Ordered](s S, value K, keyOf func(E) K) int {
	return InsertionIndexFunc(s, value, keyOf, cmp.Less[K])
}

// InsertSortedFunc inserts element into s at the position reported by
// InsertionIndexFunc for its key and returns the updated slice. The
// binary search is O(log n); shifting the tail is O(n).
func InsertSortedFunc[S ~[]E, E, K any](s S, element E, keyOf func(E) K, less func(a, b K) bool) S {
	index := InsertionIndexFunc(s, keyOf(element), keyOf, less)
	return slices.Insert(s, index, element)
}
