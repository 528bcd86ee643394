// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import "github.com/parley-chat/parley/lib/ref"

// EventViewModel is the materialized state of one root event: a
// [MessageViewModel] or a [TombstoneViewModel]. View models are
// values; Applying returns a new one and leaves the receiver alone.
type EventViewModel interface {
	// EventID returns the ID of the root Message.
	EventID() ref.EventID
	// EventAge returns the age of the root Message.
	EventAge() Age
	// Applying returns the view model that results from applying
	// modifier, or an *InvalidOperationError.
	Applying(modifier Modifier) (EventViewModel, error)

	isViewModel()
}

// MessageViewModel is a live message.
type MessageViewModel struct {
	ID        ref.EventID
	Age       Age
	Sender    ref.UserID
	Body      string
	LikeCount int
	// Edited is set once any Edit has been applied.
	Edited bool
}

// TombstoneViewModel is what remains of a redacted message. It is
// terminal: every modifier applied to it fails.
type TombstoneViewModel struct {
	ID  ref.EventID
	Age Age
}

func newMessageViewModel(message Message) MessageViewModel {
	return MessageViewModel{
		ID:     message.ID,
		Age:    message.Age,
		Sender: message.Sender,
		Body:   message.Body,
	}
}

func (m MessageViewModel) EventID() ref.EventID { return m.ID }
func (m MessageViewModel) EventAge() Age        { return m.Age }
func (MessageViewModel) isViewModel()           {}

// Applying applies an Edit, Redact, or Like addressed to this message.
// A Redact discards body and likes and yields a tombstone with the same
// ID and age.
func (m MessageViewModel) Applying(modifier Modifier) (EventViewModel, error) {
	if modifier.TargetID() != m.ID {
		return nil, &InvalidOperationError{
			Event:     modifier,
			ViewModel: m,
			Reason:    "modifier targets " + modifier.TargetID().String(),
		}
	}
	switch modifier := modifier.(type) {
	case Edit:
		m.Body = modifier.NewBody
		m.Edited = true
		return m, nil
	case Like:
		m.LikeCount++
		return m, nil
	case Redact:
		return TombstoneViewModel{ID: m.ID, Age: m.Age}, nil
	default:
		return nil, &InvalidOperationError{Event: modifier, ViewModel: m, Reason: "unsupported modifier"}
	}
}

// withoutLike takes back one like. The count never drops below zero.
func (m MessageViewModel) withoutLike() MessageViewModel {
	if m.LikeCount > 0 {
		m.LikeCount--
	}
	return m
}

func (t TombstoneViewModel) EventID() ref.EventID { return t.ID }
func (t TombstoneViewModel) EventAge() Age        { return t.Age }
func (TombstoneViewModel) isViewModel()           {}

// Applying always fails: a redacted message cannot be modified.
func (t TombstoneViewModel) Applying(modifier Modifier) (EventViewModel, error) {
	return nil, &InvalidOperationError{Event: modifier, ViewModel: t, Reason: "message is redacted"}
}
