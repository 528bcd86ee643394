// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"fmt"
	"slices"
	"time"

	"github.com/parley-chat/parley/lib/ref"
)

// SnapshotVersion is the current Snapshot layout version. Version 2
// added Consumed; version 1 snapshots still restore, with nothing
// consumed.
const SnapshotVersion = 2

// Snapshot is a serializable copy of a RoomState. The json tags serve
// both JSON (CLI output) and CBOR (lib/snapshot) encodings.
type Snapshot struct {
	Version int `json:"version"`
	// ViewModels lists the view models oldest first.
	ViewModels []ViewModelRecord `json:"view_models"`
	// Stash lists stashed modifiers with their targets.
	Stash []StashRecord `json:"stash,omitempty"`
	// Consumed lists the modifiers that took effect or were withdrawn,
	// ordered by ID.
	Consumed []ConsumedRecord `json:"consumed,omitempty"`
}

// ConsumedRecord is one consumed modifier.
type ConsumedRecord struct {
	ID        ref.EventID `json:"id"`
	Kind      string      `json:"kind"` // "edit", "redact", or "like"
	Target    ref.EventID `json:"target"`
	Retracted bool        `json:"retracted,omitempty"`
}

// ViewModelRecord is the flattened form of an EventViewModel.
type ViewModelRecord struct {
	Kind      string      `json:"kind"` // "message" or "tombstone"
	ID        ref.EventID `json:"id"`
	Age       Age         `json:"age"`
	Sender    ref.UserID  `json:"sender,omitzero"`
	Body      string      `json:"body,omitempty"`
	LikeCount int         `json:"like_count,omitempty"`
	Edited    bool        `json:"edited,omitempty"`
}

// EventRecord is the flattened form of an Event.
type EventRecord struct {
	Kind   string      `json:"kind"` // "message", "edit", "redact", or "like"
	ID     ref.EventID `json:"id"`
	Age    Age         `json:"age"`
	Sender ref.UserID  `json:"sender,omitzero"`
	Target ref.EventID `json:"target,omitzero"`
	Body   string      `json:"body,omitempty"`
}

// StashRecord is one stashed modifier. Target is the stash key, which
// normally equals Event.Target.
type StashRecord struct {
	Target    ref.EventID `json:"target"`
	Event     EventRecord `json:"event"`
	StashedAt time.Time   `json:"stashed_at"`
}

// Record flattens a view model.
func Record(viewModel EventViewModel) ViewModelRecord {
	switch viewModel := viewModel.(type) {
	case MessageViewModel:
		return ViewModelRecord{
			Kind:      "message",
			ID:        viewModel.ID,
			Age:       viewModel.Age,
			Sender:    viewModel.Sender,
			Body:      viewModel.Body,
			LikeCount: viewModel.LikeCount,
			Edited:    viewModel.Edited,
		}
	case TombstoneViewModel:
		return ViewModelRecord{Kind: "tombstone", ID: viewModel.ID, Age: viewModel.Age}
	default:
		panic(fmt.Sprintf("timeline: unknown view model %T", viewModel))
	}
}

// ViewModel rebuilds the view model.
func (r ViewModelRecord) ViewModel() (EventViewModel, error) {
	if r.ID.IsZero() {
		return nil, fmt.Errorf("view model record has no id")
	}
	switch r.Kind {
	case "message":
		return MessageViewModel{
			ID:        r.ID,
			Age:       r.Age,
			Sender:    r.Sender,
			Body:      r.Body,
			LikeCount: r.LikeCount,
			Edited:    r.Edited,
		}, nil
	case "tombstone":
		return TombstoneViewModel{ID: r.ID, Age: r.Age}, nil
	default:
		return nil, fmt.Errorf("view model %s: unknown kind %q", r.ID, r.Kind)
	}
}

// RecordEvent flattens an event.
func RecordEvent(event Event) EventRecord {
	switch event := event.(type) {
	case Message:
		return EventRecord{Kind: "message", ID: event.ID, Age: event.Age, Sender: event.Sender, Body: event.Body}
	case Edit:
		return EventRecord{Kind: "edit", ID: event.ID, Age: event.Age, Sender: event.Sender, Target: event.Target, Body: event.NewBody}
	case Redact:
		return EventRecord{Kind: "redact", ID: event.ID, Age: event.Age, Sender: event.Sender, Target: event.Target}
	case Like:
		return EventRecord{Kind: "like", ID: event.ID, Age: event.Age, Sender: event.Sender, Target: event.Target}
	default:
		panic(fmt.Sprintf("timeline: unknown event %T", event))
	}
}

// Event rebuilds the event.
func (r EventRecord) Event() (Event, error) {
	if r.ID.IsZero() {
		return nil, fmt.Errorf("event record has no id")
	}
	if r.Kind != "message" && r.Target.IsZero() {
		return nil, fmt.Errorf("%s %s has no target", r.Kind, r.ID)
	}
	switch r.Kind {
	case "message":
		return Message{ID: r.ID, Age: r.Age, Sender: r.Sender, Body: r.Body}, nil
	case "edit":
		return Edit{ID: r.ID, Age: r.Age, Sender: r.Sender, Target: r.Target, NewBody: r.Body}, nil
	case "redact":
		return Redact{ID: r.ID, Age: r.Age, Sender: r.Sender, Target: r.Target}, nil
	case "like":
		return Like{ID: r.ID, Age: r.Age, Sender: r.Sender, Target: r.Target}, nil
	default:
		return nil, fmt.Errorf("event %s: unknown kind %q", r.ID, r.Kind)
	}
}

// Snapshot captures the state. Stash records are ordered by target
// and then stash order, so equal states give equal snapshots.
func (s *RoomState) Snapshot() Snapshot {
	snapshot := Snapshot{
		Version:    SnapshotVersion,
		ViewModels: make([]ViewModelRecord, 0, len(s.byAge)),
	}
	for _, entry := range s.byAge {
		snapshot.ViewModels = append(snapshot.ViewModels, Record(s.viewModels[entry.id]))
	}
	for _, target := range s.stashTargets() {
		for _, entry := range s.stash[target] {
			snapshot.Stash = append(snapshot.Stash, StashRecord{
				Target:    target,
				Event:     RecordEvent(entry.modifier),
				StashedAt: entry.stashedAt,
			})
		}
	}
	for id, consumed := range s.consumed {
		snapshot.Consumed = append(snapshot.Consumed, ConsumedRecord{
			ID:        id,
			Kind:      consumed.kind,
			Target:    consumed.target,
			Retracted: consumed.retracted,
		})
	}
	slices.SortFunc(snapshot.Consumed, func(a, b ConsumedRecord) int { return a.ID.Compare(b.ID) })
	return snapshot
}

// Restore rebuilds a RoomState from a snapshot. Options apply as for
// NewRoomState; a WithStash option is ignored in favour of the
// snapshot's stash.
//
// Stash records are restored as saved, including ones filed under an
// ID that now has a view model. Those are modifiers a replay re-stashed
// after an earlier one failed; they never replay again and leave only
// through eviction, exactly as they would have without the restore.
func Restore(snapshot Snapshot, options ...Option) (*RoomState, error) {
	if snapshot.Version < 1 || snapshot.Version > SnapshotVersion {
		return nil, fmt.Errorf("timeline: unsupported snapshot version %d", snapshot.Version)
	}
	state := NewRoomState(append(options, WithStash(nil))...)

	for _, record := range snapshot.ViewModels {
		viewModel, err := record.ViewModel()
		if err != nil {
			return nil, fmt.Errorf("timeline: restoring snapshot: %w", err)
		}
		if _, exists := state.viewModels[record.ID]; exists {
			return nil, fmt.Errorf("timeline: restoring snapshot: duplicate view model %s", record.ID)
		}
		state.viewModels[record.ID] = viewModel
		state.byAge = append(state.byAge, ageEntry{id: record.ID, age: record.Age})
	}
	sortAgeIndex(state.byAge)

	for _, record := range snapshot.Stash {
		event, err := record.Event.Event()
		if err != nil {
			return nil, fmt.Errorf("timeline: restoring snapshot stash: %w", err)
		}
		modifier, ok := event.(Modifier)
		if !ok {
			return nil, fmt.Errorf("timeline: restoring snapshot stash: %s is not a modifier", describe(event))
		}
		state.stash[record.Target] = append(state.stash[record.Target], stashedModifier{
			modifier:  modifier,
			stashedAt: record.StashedAt,
		})
	}

	for _, record := range snapshot.Consumed {
		switch {
		case record.ID.IsZero():
			return nil, fmt.Errorf("timeline: restoring snapshot: consumed record has no id")
		case record.Kind != "edit" && record.Kind != "redact" && record.Kind != "like":
			return nil, fmt.Errorf("timeline: restoring snapshot: consumed %s: unknown kind %q", record.ID, record.Kind)
		}
		state.consumed[record.ID] = consumedModifier{
			kind:      record.Kind,
			target:    record.Target,
			retracted: record.Retracted,
		}
	}
	return state, nil
}
