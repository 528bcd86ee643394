// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"fmt"

	"github.com/parley-chat/parley/lib/ref"
)

// Age orders events: lower is older. For Matrix events it is the
// origin_server_ts in milliseconds. Ages need not arrive in order.
type Age int64

// Event is a timeline event: one of [Message], [Edit], [Redact], or
// [Like]. The set is closed.
type Event interface {
	// EventID returns the event's own ID.
	EventID() ref.EventID
	// EventAge returns the event's age.
	EventAge() Age
	// EventType returns the Matrix event type the event was decoded
	// from, so timeline events can be grouped like raw events.
	EventType() ref.EventType
	// EventSender returns the sender, which may be the zero value.
	EventSender() ref.UserID

	isEvent()
}

// Modifier is an [Event] that changes an existing item: [Edit],
// [Redact], or [Like].
type Modifier interface {
	Event
	// TargetID returns the ID of the Message being modified.
	TargetID() ref.EventID
}

// Message is a root event introducing a displayable item.
type Message struct {
	ID     ref.EventID
	Age    Age
	Sender ref.UserID
	Body   string
}

// Edit replaces the body of the Message identified by Target.
type Edit struct {
	ID      ref.EventID
	Age     Age
	Sender  ref.UserID
	Target  ref.EventID
	NewBody string
}

// Redact tombstones the Message identified by Target. A Target naming
// another modifier is resolved by [RoomState.Add]: a redacted Like is
// taken back.
type Redact struct {
	ID     ref.EventID
	Age    Age
	Sender ref.UserID
	Target ref.EventID
}

// Like adds one like to the Message identified by Target.
type Like struct {
	ID     ref.EventID
	Age    Age
	Sender ref.UserID
	Target ref.EventID
}

func (m Message) EventID() ref.EventID     { return m.ID }
func (m Message) EventAge() Age            { return m.Age }
func (m Message) EventType() ref.EventType { return ref.EventTypeMessage }
func (m Message) EventSender() ref.UserID  { return m.Sender }
func (Message) isEvent()                   {}

func (e Edit) EventID() ref.EventID     { return e.ID }
func (e Edit) EventAge() Age            { return e.Age }
func (e Edit) EventType() ref.EventType { return ref.EventTypeMessage }
func (e Edit) EventSender() ref.UserID  { return e.Sender }
func (e Edit) TargetID() ref.EventID    { return e.Target }
func (Edit) isEvent()                   {}

func (r Redact) EventID() ref.EventID     { return r.ID }
func (r Redact) EventAge() Age            { return r.Age }
func (r Redact) EventType() ref.EventType { return ref.EventTypeRedaction }
func (r Redact) EventSender() ref.UserID  { return r.Sender }
func (r Redact) TargetID() ref.EventID    { return r.Target }
func (Redact) isEvent()                   {}

func (l Like) EventID() ref.EventID     { return l.ID }
func (l Like) EventAge() Age            { return l.Age }
func (l Like) EventType() ref.EventType { return ref.EventTypeReaction }
func (l Like) EventSender() ref.UserID  { return l.Sender }
func (l Like) TargetID() ref.EventID    { return l.Target }
func (Like) isEvent()                   {}

// describe names an event for error messages: "edit $abc".
func describe(event Event) string {
	switch event.(type) {
	case nil:
		return "nil event"
	case Message:
		return fmt.Sprintf("message %s", event.EventID())
	case Edit:
		return fmt.Sprintf("edit %s", event.EventID())
	case Redact:
		return fmt.Sprintf("redact %s", event.EventID())
	case Like:
		return fmt.Sprintf("like %s", event.EventID())
	default:
		return fmt.Sprintf("%T %s", event, event.EventID())
	}
}
