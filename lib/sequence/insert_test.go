// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package sequence

import (
	"math/rand/v2"
	"slices"
	"testing"
)

type aged struct {
	name string
	age  int64
}

func ageOf(entry aged) int64 { return entry.age }

func TestInsertionIndex(t *testing.T) {
	entries := []aged{{"a", 10}, {"b", 20}, {"c", 20}, {"d", 30}}
	tests := []struct {
		value int64
		want  int
	}{
		{5, 0},
		{10, 0},
		{15, 1},
		{20, 1},
		{25, 3},
		{30, 3},
		{31, 4},
	}
	for _, test := range tests {
		if got := InsertionIndex(entries, test.value, ageOf); got != test.want {
			t.Errorf("InsertionIndex(%d) = %d, want %d", test.value, got, test.want)
		}
	}

	if got := InsertionIndex([]aged(nil), 1, ageOf); got != 0 {
		t.Errorf("InsertionIndex on empty slice = %d, want 0", got)
	}
}

func TestInsertionIndexNonStrictComparator(t *testing.T) {
	entries := []aged{{"a", 10}, {"b", 20}, {"c", 20}, {"d", 30}}
	lessOrEqual := func(a, b int64) bool { return a <= b }
	if got := InsertionIndexFunc(entries, 20, ageOf, lessOrEqual); got != 3 {
		t.Errorf("InsertionIndexFunc with <= = %d, want 3 (after equal keys)", got)
	}
}

func TestInsertionIndexPartitions(t *testing.T) {
	random := rand.New(rand.NewPCG(3, 4))
	for trial := 0; trial < 500; trial++ {
		ages := make([]int64, random.IntN(40))
		for i := range ages {
			ages[i] = random.Int64N(50)
		}
		slices.Sort(ages)
		query := random.Int64N(60) - 5

		identity := func(age int64) int64 { return age }
		index := InsertionIndex(ages, query, identity)
		for i, age := range ages {
			if i < index && age >= query {
				t.Fatalf("ages=%v query=%d index=%d: element %d (%d) before index is not < query", ages, query, index, i, age)
			}
			if i >= index && age < query {
				t.Fatalf("ages=%v query=%d index=%d: element %d (%d) at/after index is < query", ages, query, index, i, age)
			}
		}
	}
}

func TestInsertSortedFunc(t *testing.T) {
	var entries []aged
	for _, entry := range []aged{{"c", 30}, {"a", 10}, {"b", 20}, {"a2", 10}} {
		entries = InsertSortedFunc(entries, entry, ageOf, func(a, b int64) bool { return a < b })
	}
	var names []string
	for _, entry := range entries {
		names = append(names, entry.name)
	}
	want := []string{"a2", "a", "b", "c"}
	if !slices.Equal(names, want) {
		t.Errorf("order = %v, want %v", names, want)
	}
}
