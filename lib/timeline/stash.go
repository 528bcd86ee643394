// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"cmp"
	"slices"
	"time"

	"github.com/parley-chat/parley/lib/ref"
)

// stashedModifier is a modifier waiting for its target, with the time
// it entered the stash.
type stashedModifier struct {
	modifier  Modifier
	stashedAt time.Time
}

// StashPolicy bounds how long and how many modifiers wait for targets
// that may never arrive. Zero fields are unbounded.
type StashPolicy struct {
	// TTL evicts modifiers stashed at least this long ago.
	TTL time.Duration
	// MaxPerTarget keeps at most this many modifiers per target,
	// evicting the oldest by age.
	MaxPerTarget int
	// MaxTotal keeps at most this many modifiers in the whole stash,
	// evicting the oldest by age.
	MaxTotal int
}

// IsZero reports whether the policy imposes no bound.
func (p StashPolicy) IsZero() bool {
	return p.TTL <= 0 && p.MaxPerTarget <= 0 && p.MaxTotal <= 0
}

// StashedCount returns the number of stashed modifiers across all
// targets.
func (s *RoomState) StashedCount() int {
	count := 0
	for _, pending := range s.stash {
		count += len(pending)
	}
	return count
}

// Stashed returns a copy of the stash: target ID to the modifiers
// waiting for it, in stash order.
func (s *RoomState) Stashed() map[ref.EventID][]Modifier {
	stashed := make(map[ref.EventID][]Modifier, len(s.stash))
	for target, pending := range s.stash {
		modifiers := make([]Modifier, len(pending))
		for i, entry := range pending {
			modifiers[i] = entry.modifier
		}
		stashed[target] = modifiers
	}
	return stashed
}

// EvictStash applies the stash policy as of now and returns the
// evicted modifiers, oldest first. The TTL is applied first, then
// MaxPerTarget, then MaxTotal. Add never evicts; owners call this
// after applying a batch.
func (s *RoomState) EvictStash(now time.Time) []Modifier {
	if s.policy.IsZero() || len(s.stash) == 0 {
		return nil
	}
	var evicted []stashedModifier

	if s.policy.TTL > 0 {
		for target, pending := range s.stash {
			kept := pending[:0]
			for _, entry := range pending {
				if now.Sub(entry.stashedAt) >= s.policy.TTL {
					evicted = append(evicted, entry)
				} else {
					kept = append(kept, entry)
				}
			}
			s.storePending(target, kept)
		}
	}

	if s.policy.MaxPerTarget > 0 {
		for target, pending := range s.stash {
			if len(pending) <= s.policy.MaxPerTarget {
				continue
			}
			slices.SortStableFunc(pending, compareStashedByAge)
			excess := len(pending) - s.policy.MaxPerTarget
			evicted = append(evicted, pending[:excess]...)
			s.storePending(target, slices.Clone(pending[excess:]))
		}
	}

	if s.policy.MaxTotal > 0 {
		if total := s.StashedCount(); total > s.policy.MaxTotal {
			type located struct {
				target ref.EventID
				entry  stashedModifier
			}
			var all []located
			for target, pending := range s.stash {
				for _, entry := range pending {
					all = append(all, located{target: target, entry: entry})
				}
			}
			slices.SortStableFunc(all, func(a, b located) int {
				return compareStashedByAge(a.entry, b.entry)
			})
			// Doomed entries are counted per target and event ID:
			// the same modifier may have been stashed twice.
			type slot struct {
				target ref.EventID
				id     ref.EventID
			}
			doomed := make(map[slot]int)
			for _, item := range all[:total-s.policy.MaxTotal] {
				evicted = append(evicted, item.entry)
				doomed[slot{item.target, item.entry.modifier.EventID()}]++
			}
			for target, pending := range s.stash {
				s.storePending(target, slices.DeleteFunc(pending, func(entry stashedModifier) bool {
					key := slot{target, entry.modifier.EventID()}
					if doomed[key] == 0 {
						return false
					}
					doomed[key]--
					return true
				}))
			}
		}
	}

	slices.SortStableFunc(evicted, compareStashedByAge)
	modifiers := make([]Modifier, len(evicted))
	for i, entry := range evicted {
		modifiers[i] = entry.modifier
	}
	return modifiers
}

// stashTargets returns the stash keys in ID order.
func (s *RoomState) stashTargets() []ref.EventID {
	targets := make([]ref.EventID, 0, len(s.stash))
	for target := range s.stash {
		targets = append(targets, target)
	}
	slices.SortFunc(targets, ref.EventID.Compare)
	return targets
}

// storePending replaces the stash list for target, removing the key
// when the list is empty.
func (s *RoomState) storePending(target ref.EventID, pending []stashedModifier) {
	if len(pending) == 0 {
		delete(s.stash, target)
		return
	}
	s.stash[target] = pending
}

func compareStashedByAge(a, b stashedModifier) int {
	if order := cmp.Compare(a.modifier.EventAge(), b.modifier.EventAge()); order != 0 {
		return order
	}
	return a.modifier.EventID().Compare(b.modifier.EventID())
}
