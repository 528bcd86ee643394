// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"testing"
	"time"

	"github.com/parley-chat/parley/lib/clock"
)

func eventIDs[E Event](events []E) []string {
	ids := make([]string, len(events))
	for i, event := range events {
		ids[i] = event.EventID().String()
	}
	return ids
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEvictStashZeroPolicy(t *testing.T) {
	state := NewRoomState()
	if err := state.Add(like("l1", 1, "ghost")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if evicted := state.EvictStash(time.Now().Add(24 * time.Hour)); len(evicted) != 0 {
		t.Errorf("evicted %v under zero policy", eventIDs(evicted))
	}
	if state.StashedCount() != 1 {
		t.Errorf("StashedCount = %d, want 1", state.StashedCount())
	}
}

func TestEvictStashTTL(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fake := clock.Fake(start)
	state := NewRoomState(WithClock(fake), WithStashPolicy(StashPolicy{TTL: time.Minute}))

	if err := state.Add(like("l1", 1, "ghost")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	fake.Advance(30 * time.Second)
	if err := state.Add(like("l2", 2, "ghost")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if evicted := state.EvictStash(fake.Now()); len(evicted) != 0 {
		t.Fatalf("evicted %v before TTL", eventIDs(evicted))
	}
	fake.Advance(30 * time.Second)
	evicted := state.EvictStash(fake.Now())
	if got := eventIDs(evicted); !equalStrings(got, []string{"$l1"}) {
		t.Errorf("evicted = %v, want [$l1]", got)
	}
	if state.StashedCount() != 1 {
		t.Errorf("StashedCount = %d, want 1", state.StashedCount())
	}
}

func TestEvictStashMaxPerTarget(t *testing.T) {
	state := NewRoomState(WithStashPolicy(StashPolicy{MaxPerTarget: 2}))
	for _, event := range []Event{
		like("l3", 3, "a"),
		like("l1", 1, "a"),
		like("l2", 2, "a"),
		like("l4", 4, "b"),
	} {
		if err := state.Add(event); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	evicted := state.EvictStash(time.Now())
	if got := eventIDs(evicted); !equalStrings(got, []string{"$l1"}) {
		t.Errorf("evicted = %v, want [$l1]", got)
	}
	if got := eventIDs(state.Stashed()[id("a")]); !equalStrings(got, []string{"$l2", "$l3"}) {
		t.Errorf("stash for a = %v, want [$l2 $l3]", got)
	}
}

func TestEvictStashMaxTotal(t *testing.T) {
	state := NewRoomState(WithStashPolicy(StashPolicy{MaxTotal: 2}))
	for _, event := range []Event{
		like("l2", 2, "a"),
		like("l4", 4, "b"),
		like("l1", 1, "b"),
		like("l3", 3, "c"),
	} {
		if err := state.Add(event); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	evicted := state.EvictStash(time.Now())
	if got := eventIDs(evicted); !equalStrings(got, []string{"$l1", "$l2"}) {
		t.Errorf("evicted = %v, want [$l1 $l2]", got)
	}
	if state.StashedCount() != 2 {
		t.Errorf("StashedCount = %d, want 2", state.StashedCount())
	}
	if _, found := state.Stashed()[id("a")]; found {
		t.Error("emptied target still present in stash")
	}
}

func TestEvictStashMaxTotalDuplicates(t *testing.T) {
	state := NewRoomState(WithStashPolicy(StashPolicy{MaxTotal: 1}))
	duplicate := like("l1", 1, "a")
	for _, event := range []Event{duplicate, duplicate} {
		if err := state.Add(event); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	evicted := state.EvictStash(time.Now())
	if len(evicted) != 1 {
		t.Fatalf("evicted %d modifiers, want 1", len(evicted))
	}
	if state.StashedCount() != 1 {
		t.Errorf("StashedCount = %d, want 1", state.StashedCount())
	}
}
