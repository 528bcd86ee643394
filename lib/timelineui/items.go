// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package timelineui

import (
	"cmp"
	"errors"
	"slices"

	"github.com/parley-chat/parley/lib/ref"
	"github.com/parley-chat/parley/lib/timeline"
	"github.com/parley-chat/parley/messaging"
)

// Item is one row of a rendered timeline: a view model, or a raw event
// that produced none.
type Item struct {
	EventID ref.EventID
	Type    ref.EventType
	Sender  ref.UserID
	Age     timeline.Age

	// StateKey and Content are set for items built from raw events.
	StateKey *string
	Content  map[string]any
}

// EventType implements timeline.Groupable.
func (i Item) EventType() ref.EventType { return i.Type }

// EventSender implements timeline.Groupable.
func (i Item) EventSender() ref.UserID { return i.Sender }

// Items merges view models with the raw events that are not timeline
// events, ordered by age then event ID. Modifiers are not items of
// their own; their effect is already in the view models. events may
// be nil, for a room restored from a snapshot. A tombstone's sender
// comes from its original event when events includes it.
func Items(viewModels []timeline.EventViewModel, events []messaging.Event) []Item {
	senders := make(map[ref.EventID]ref.UserID, len(events))
	for _, event := range events {
		if !event.EventID.IsZero() {
			senders[event.EventID] = event.Sender
		}
	}

	present := make(map[ref.EventID]struct{}, len(viewModels))
	items := make([]Item, 0, len(viewModels))
	for _, viewModel := range viewModels {
		item := Item{
			EventID: viewModel.EventID(),
			Type:    ref.EventTypeMessage,
			Sender:  senders[viewModel.EventID()],
			Age:     viewModel.EventAge(),
		}
		if message, ok := viewModel.(timeline.MessageViewModel); ok {
			item.Sender = message.Sender
		}
		present[item.EventID] = struct{}{}
		items = append(items, item)
	}

	for _, event := range events {
		if _, seen := present[event.EventID]; seen {
			continue
		}
		if _, err := messaging.ToTimelineEvent(event); !errors.Is(err, messaging.ErrNotTimelineEvent) {
			continue
		}
		if !event.EventID.IsZero() {
			present[event.EventID] = struct{}{}
		}
		items = append(items, Item{
			EventID:  event.EventID,
			Type:     event.Type,
			Sender:   event.Sender,
			Age:      timeline.Age(event.OriginServerTS),
			StateKey: event.StateKey,
			Content:  event.Content,
		})
	}

	slices.SortFunc(items, func(a, b Item) int {
		return cmp.Or(cmp.Compare(a.Age, b.Age), a.EventID.Compare(b.EventID))
	})
	return items
}
