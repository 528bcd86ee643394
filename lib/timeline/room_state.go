// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/parley-chat/parley/lib/clock"
	"github.com/parley-chat/parley/lib/ref"
	"github.com/parley-chat/parley/lib/sequence"
)

// RoomState holds the reconciled timeline of one room.
//
// Invariants: every key of viewModels appears exactly once in byAge
// and vice versa; byAge is sorted by (age, event ID); stash keys are
// never keys of viewModels outside of a replay in progress; consumed
// holds only modifier IDs.
type RoomState struct {
	viewModels map[ref.EventID]EventViewModel
	byAge      []ageEntry
	stash      map[ref.EventID][]stashedModifier
	consumed   map[ref.EventID]consumedModifier

	clock  clock.Clock
	policy StashPolicy
}

// ageEntry is one element of the age-ordered index.
type ageEntry struct {
	id  ref.EventID
	age Age
}

// ageEntryLess orders by age, then by event ID so that events sharing
// an age have a position independent of arrival order.
func ageEntryLess(a, b ageEntry) bool {
	if a.age != b.age {
		return a.age < b.age
	}
	return a.id.Compare(b.id) < 0
}

func ageEntryKey(entry ageEntry) ageEntry { return entry }

func sortAgeIndex(entries []ageEntry) {
	slices.SortFunc(entries, func(a, b ageEntry) int {
		switch {
		case ageEntryLess(a, b):
			return -1
		case ageEntryLess(b, a):
			return 1
		default:
			return 0
		}
	})
}

// Option configures a RoomState.
type Option func(*config)

type config struct {
	clock  clock.Clock
	policy StashPolicy
	stash  map[ref.EventID][]Modifier
}

// WithStash seeds the stash, typically with modifiers saved from an
// earlier session. Each list is filed under its map key as given and
// stamped with the construction time.
func WithStash(stash map[ref.EventID][]Modifier) Option {
	return func(c *config) { c.stash = stash }
}

// WithClock sets the clock used to stamp stashed modifiers. Defaults
// to clock.Real().
func WithClock(c clock.Clock) Option {
	return func(cfg *config) { cfg.clock = c }
}

// WithStashPolicy bounds the stash; see [RoomState.EvictStash]. The
// zero policy keeps stashed modifiers indefinitely.
func WithStashPolicy(policy StashPolicy) Option {
	return func(c *config) { c.policy = policy }
}

// NewRoomState returns an empty RoomState.
func NewRoomState(options ...Option) *RoomState {
	cfg := config{clock: clock.Real()}
	for _, option := range options {
		option(&cfg)
	}
	state := &RoomState{
		viewModels: make(map[ref.EventID]EventViewModel),
		stash:      make(map[ref.EventID][]stashedModifier),
		consumed:   make(map[ref.EventID]consumedModifier),
		clock:      cfg.clock,
		policy:     cfg.policy,
	}
	now := state.clock.Now()
	for target, modifiers := range cfg.stash {
		for _, modifier := range modifiers {
			state.stash[target] = append(state.stash[target], stashedModifier{modifier: modifier, stashedAt: now})
		}
	}
	return state
}

// AddEvents applies a batch. The batch is sorted by age (stable, so
// equal ages keep their batch order) and applied event by event. The
// first failure stops the batch and is returned; events applied before
// it stay applied. The caller's slice is not modified.
func (s *RoomState) AddEvents(events []Event) error {
	ordered := slices.Clone(events)
	slices.SortStableFunc(ordered, func(a, b Event) int {
		return cmp.Compare(a.EventAge(), b.EventAge())
	})
	for _, event := range ordered {
		if err := s.Add(event); err != nil {
			return err
		}
	}
	return nil
}

// Add applies one event.
//
// An event whose ID already has a view model, or names a modifier that
// was already consumed, is ignored. A Message creates a view model and
// replays any modifiers stashed for it. A modifier is applied to its
// target's view model, or stashed if the target has not arrived. A
// Redact aimed at another modifier takes back a Like, withdraws a
// stashed modifier, and is otherwise a no-op.
func (s *RoomState) Add(event Event) error {
	if event == nil {
		return &InvalidOperationError{Reason: "nothing to apply"}
	}
	if _, exists := s.viewModels[event.EventID()]; exists {
		return nil
	}
	if _, done := s.consumed[event.EventID()]; done {
		return nil
	}
	switch event := event.(type) {
	case Message:
		return s.addRoot(event)
	case Modifier:
		return s.addModifier(event)
	default:
		return &InvalidOperationError{Event: event, Reason: "unknown event kind"}
	}
}

func (s *RoomState) addRoot(message Message) error {
	s.viewModels[message.ID] = newMessageViewModel(message)
	s.byAge = sequence.InsertSortedFunc(s.byAge, ageEntry{id: message.ID, age: message.Age}, ageEntryKey, ageEntryLess)
	return s.replayStash(message.ID)
}

func (s *RoomState) addModifier(modifier Modifier) error {
	if s.withdrawStashedRedaction(modifier) {
		return nil
	}
	target := modifier.TargetID()
	viewModel, found := s.viewModels[target]
	if !found {
		if redact, ok := modifier.(Redact); ok && s.redactModifier(redact) {
			return nil
		}
		s.stash[target] = append(s.stash[target], stashedModifier{modifier: modifier, stashedAt: s.clock.Now()})
		return nil
	}
	updated, err := viewModel.Applying(modifier)
	if err != nil {
		return err
	}
	s.viewModels[target] = updated
	s.consume(modifier, false)
	return nil
}

// redactModifier resolves a redaction whose target is a modifier
// rather than a message, and reports whether it did. Redacting a
// consumed Like takes the like back from its message. Redacting a
// consumed Edit or Redact changes nothing: the previous body is gone
// and a tombstone stays a tombstone. Redacting a stashed modifier
// withdraws it from the stash. Either way the redaction is consumed.
func (s *RoomState) redactModifier(redact Redact) bool {
	if target, found := s.consumed[redact.Target]; found {
		if target.kind == "like" && !target.retracted {
			if viewModel, ok := s.viewModels[target.target].(MessageViewModel); ok {
				s.viewModels[target.target] = viewModel.withoutLike()
			}
		}
		if target.kind == "like" {
			target.retracted = true
			s.consumed[redact.Target] = target
		}
		s.consume(redact, false)
		return true
	}
	for key, pending := range s.stash {
		i := slices.IndexFunc(pending, func(entry stashedModifier) bool {
			return entry.modifier.EventID() == redact.Target
		})
		if i < 0 {
			continue
		}
		if _, isRedact := pending[i].modifier.(Redact); !isRedact {
			s.consume(pending[i].modifier, true)
			s.storePending(key, slices.Delete(slices.Clone(pending), i, i+1))
		}
		s.consume(redact, false)
		return true
	}
	return false
}

// withdrawStashedRedaction handles a modifier arriving after its own
// redaction, which was stashed under the modifier's ID. The redaction
// is consumed. An Edit or Like is withdrawn and never takes effect; a
// Redact cannot be undone and still applies.
func (s *RoomState) withdrawStashedRedaction(modifier Modifier) bool {
	pending := s.stash[modifier.EventID()]
	i := slices.IndexFunc(pending, func(entry stashedModifier) bool {
		_, ok := entry.modifier.(Redact)
		return ok
	})
	if i < 0 {
		return false
	}
	s.consume(pending[i].modifier, false)
	s.storePending(modifier.EventID(), slices.Delete(slices.Clone(pending), i, i+1))
	if _, isRedact := modifier.(Redact); isRedact {
		return false
	}
	s.consume(modifier, true)
	return true
}

// consumedModifier remembers a modifier that took effect or was
// withdrawn, so re-deliveries are ignored and a later redaction of it
// can be resolved.
type consumedModifier struct {
	kind   string
	target ref.EventID
	// retracted is set once the modifier was redacted.
	retracted bool
}

func (s *RoomState) consume(modifier Modifier, retracted bool) {
	s.consumed[modifier.EventID()] = consumedModifier{
		kind:      RecordEvent(modifier).Kind,
		target:    modifier.TargetID(),
		retracted: retracted,
	}
}

// Consumed reports whether the modifier with this ID already took
// effect or was withdrawn by a redaction.
func (s *RoomState) Consumed(id ref.EventID) bool {
	_, found := s.consumed[id]
	return found
}

// replayStash applies the modifiers stashed under id to its (new) view
// model, oldest first. On failure the failing modifier is dropped, the
// modifiers not yet replayed go back into the stash, and the error is
// returned.
func (s *RoomState) replayStash(id ref.EventID) error {
	pending, found := s.stash[id]
	if !found {
		return nil
	}
	delete(s.stash, id)

	// Newest first, so popping from the end yields oldest first.
	slices.SortStableFunc(pending, func(a, b stashedModifier) int {
		return cmp.Compare(b.modifier.EventAge(), a.modifier.EventAge())
	})
	for len(pending) > 0 {
		next := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		updated, err := s.viewModels[id].Applying(next.modifier)
		if err != nil {
			if len(pending) > 0 {
				slices.Reverse(pending)
				s.stash[id] = pending
			}
			return fmt.Errorf("replaying stashed %s: %w", describe(next.modifier), err)
		}
		s.viewModels[id] = updated
		s.consume(next.modifier, false)
	}
	return nil
}

// Len returns the number of view models.
func (s *RoomState) Len() int { return len(s.viewModels) }

// ViewModel returns the view model for a root event ID.
func (s *RoomState) ViewModel(id ref.EventID) (EventViewModel, bool) {
	viewModel, found := s.viewModels[id]
	return viewModel, found
}

// EventIDsByAge returns root event IDs, oldest first.
func (s *RoomState) EventIDsByAge() []ref.EventID {
	ids := make([]ref.EventID, len(s.byAge))
	for i, entry := range s.byAge {
		ids[i] = entry.id
	}
	return ids
}

// Timeline returns the view models, oldest first. The slice is the
// caller's; view models are values, so it shares nothing with s.
func (s *RoomState) Timeline() []EventViewModel {
	timeline := make([]EventViewModel, len(s.byAge))
	for i, entry := range s.byAge {
		timeline[i] = s.viewModels[entry.id]
	}
	return timeline
}
