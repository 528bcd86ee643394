// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"iter"

	"github.com/parley-chat/parley/lib/ref"
	"github.com/parley-chat/parley/lib/sequence"
)

// Kind is the display category of an event type.
type Kind uint8

const (
	KindOther Kind = iota
	KindMessage
	KindSticker
	KindEncrypted
	KindMembership
	KindName
	KindTopic
	KindAvatar
	KindCreate
	KindPowerLevels
	KindRedaction
	KindReaction
)

var kindNames = [...]string{
	KindOther:       "other",
	KindMessage:     "message",
	KindSticker:     "sticker",
	KindEncrypted:   "encrypted",
	KindMembership:  "membership",
	KindName:        "name",
	KindTopic:       "topic",
	KindAvatar:      "avatar",
	KindCreate:      "create",
	KindPowerLevels: "power_levels",
	KindRedaction:   "redaction",
	KindReaction:    "reaction",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "other"
}

// MessageLike reports whether events of this kind are shown as chat
// bubbles, which group per sender.
func (k Kind) MessageLike() bool {
	switch k {
	case KindMessage, KindSticker, KindEncrypted:
		return true
	default:
		return false
	}
}

// KindOf classifies a Matrix event type.
func KindOf(eventType ref.EventType) Kind {
	switch eventType {
	case ref.EventTypeMessage:
		return KindMessage
	case ref.EventTypeSticker:
		return KindSticker
	case ref.EventTypeEncrypted:
		return KindEncrypted
	case ref.EventTypeMember:
		return KindMembership
	case ref.EventTypeName:
		return KindName
	case ref.EventTypeTopic:
		return KindTopic
	case ref.EventTypeAvatar:
		return KindAvatar
	case ref.EventTypeCreate:
		return KindCreate
	case ref.EventTypePowerLevels:
		return KindPowerLevels
	case ref.EventTypeRedaction:
		return KindRedaction
	case ref.EventTypeReaction:
		return KindReaction
	default:
		return KindOther
	}
}

// Groupable is anything exposing an event type and sender. Raw Matrix
// events (messaging.Event) and timeline Events both qualify.
type Groupable interface {
	EventType() ref.EventType
	EventSender() ref.UserID
}

// Group is a run of adjacent events sharing a Kind. For message-like
// kinds every event in the group also has the same Sender; for other
// kinds Sender is the sender of the first event.
type Group[E Groupable] struct {
	Kind   Kind
	Sender ref.UserID
	Events []E
}

type tagged[E Groupable] struct {
	kind  Kind
	event E
}

func belongTogether[E Groupable](previous, candidate tagged[E]) bool {
	if previous.kind != candidate.kind {
		return false
	}
	return !previous.kind.MessageLike() || previous.event.EventSender() == candidate.event.EventSender()
}

// GroupEventSeq partitions events into display groups, in order. The
// concatenation of all groups' Events is exactly the input.
func GroupEventSeq[E Groupable](events iter.Seq[E]) iter.Seq[Group[E]] {
	return func(yield func(Group[E]) bool) {
		taggedEvents := func(yieldTagged func(tagged[E]) bool) {
			for event := range events {
				if !yieldTagged(tagged[E]{kind: KindOf(event.EventType()), event: event}) {
					return
				}
			}
		}
		for run := range sequence.Groups(taggedEvents, belongTogether[E]) {
			group := Group[E]{
				Kind:   run[0].kind,
				Sender: run[0].event.EventSender(),
				Events: make([]E, len(run)),
			}
			for i, item := range run {
				group.Events[i] = item.event
			}
			if !yield(group) {
				return
			}
		}
	}
}

// GroupEvents is GroupEventSeq over a slice.
func GroupEvents[E Groupable](events []E) []Group[E] {
	var groups []Group[E]
	for group := range GroupEventSeq(func(yield func(E) bool) {
		for _, event := range events {
			if !yield(event) {
				return
			}
		}
	}) {
		groups = append(groups, group)
	}
	return groups
}
