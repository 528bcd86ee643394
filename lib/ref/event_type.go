// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package ref

// EventType names a Matrix event type ("m.room.message",
// "m.reaction"). It is a plain named string: event types need no
// validation, the type only keeps them from being confused with state
// keys or message bodies.
type EventType string

// Well-known event types the timeline understands.
const (
	EventTypeMessage     EventType = "m.room.message"
	EventTypeSticker     EventType = "m.sticker"
	EventTypeEncrypted   EventType = "m.room.encrypted"
	EventTypeMember      EventType = "m.room.member"
	EventTypeName        EventType = "m.room.name"
	EventTypeTopic       EventType = "m.room.topic"
	EventTypeAvatar      EventType = "m.room.avatar"
	EventTypeCreate      EventType = "m.room.create"
	EventTypePowerLevels EventType = "m.room.power_levels"
	EventTypeRedaction   EventType = "m.room.redaction"
	EventTypeReaction    EventType = "m.reaction"
)

// String returns the event type string.
func (t EventType) String() string { return string(t) }
