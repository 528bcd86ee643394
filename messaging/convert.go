// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"errors"
	"fmt"
	"strings"

	"github.com/parley-chat/parley/lib/ref"
	"github.com/parley-chat/parley/lib/timeline"
)

// Relation types from m.relates_to.
const (
	RelationReplace    = "m.replace"
	RelationAnnotation = "m.annotation"
)

// editFallbackPrefix is prepended to the body of an edit for clients
// that do not understand m.new_content.
const editFallbackPrefix = "* "

// ToTimelineEvent converts a Matrix event. It returns
// ErrNotTimelineEvent for events that do not take part in
// reconciliation and a wrapped ErrMalformedEvent for timeline events
// missing a required field. The event's age is its origin_server_ts.
func ToTimelineEvent(event Event) (timeline.Event, error) {
	switch event.Type {
	case ref.EventTypeMessage, ref.EventTypeSticker, ref.EventTypeRedaction, ref.EventTypeReaction:
	default:
		return nil, ErrNotTimelineEvent
	}
	if event.StateKey != nil {
		return nil, ErrNotTimelineEvent
	}
	if event.EventID.IsZero() {
		return nil, fmt.Errorf("%w: %s event has no event_id", ErrMalformedEvent, event.Type)
	}
	age := timeline.Age(event.OriginServerTS)

	switch event.Type {
	case ref.EventTypeRedaction:
		target := event.Redacts
		if target.IsZero() {
			var err error
			if target, err = contentEventID(event.Content, "redacts"); err != nil {
				return nil, malformed(event, err)
			}
		}
		if target.IsZero() {
			return nil, malformed(event, errors.New("redaction has no target"))
		}
		return timeline.Redact{ID: event.EventID, Age: age, Sender: event.Sender, Target: target}, nil

	case ref.EventTypeReaction:
		relType, target, err := relation(event.Content)
		if err != nil {
			return nil, malformed(event, err)
		}
		if relType != RelationAnnotation {
			return nil, ErrNotTimelineEvent
		}
		return timeline.Like{ID: event.EventID, Age: age, Sender: event.Sender, Target: target}, nil

	default:
		body, _ := event.Content["body"].(string)
		relType, target, err := relation(event.Content)
		if err != nil {
			return nil, malformed(event, err)
		}
		if event.Type == ref.EventTypeMessage && relType == RelationReplace {
			return timeline.Edit{
				ID:      event.EventID,
				Age:     age,
				Sender:  event.Sender,
				Target:  target,
				NewBody: editedBody(event.Content, body),
			}, nil
		}
		return timeline.Message{ID: event.EventID, Age: age, Sender: event.Sender, Body: body}, nil
	}
}

// ToTimelineEvents converts events in order, skipping those that are
// not timeline events. The first malformed event stops the conversion.
func ToTimelineEvents(events []Event) ([]timeline.Event, error) {
	converted := make([]timeline.Event, 0, len(events))
	for _, event := range events {
		timelineEvent, err := ToTimelineEvent(event)
		if errors.Is(err, ErrNotTimelineEvent) {
			continue
		}
		if err != nil {
			return nil, err
		}
		converted = append(converted, timelineEvent)
	}
	return converted, nil
}

func malformed(event Event, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrMalformedEvent, event.Type, event.EventID, err)
}

// relation returns the rel_type and target of content's m.relates_to,
// or empty values if there is none. A relation with a rel_type but no
// valid event_id is an error.
func relation(content map[string]any) (string, ref.EventID, error) {
	relatesTo, ok := content["m.relates_to"].(map[string]any)
	if !ok {
		return "", ref.EventID{}, nil
	}
	relType, _ := relatesTo["rel_type"].(string)
	if relType == "" {
		// Replies use m.in_reply_to without a rel_type.
		return "", ref.EventID{}, nil
	}
	target, err := contentEventID(relatesTo, "event_id")
	if err != nil {
		return "", ref.EventID{}, err
	}
	if target.IsZero() {
		return "", ref.EventID{}, fmt.Errorf("%s relation has no event_id", relType)
	}
	return relType, target, nil
}

func contentEventID(content map[string]any, key string) (ref.EventID, error) {
	raw, present := content[key]
	if !present {
		return ref.EventID{}, nil
	}
	text, ok := raw.(string)
	if !ok {
		return ref.EventID{}, fmt.Errorf("%s is %T, not a string", key, raw)
	}
	eventID, err := ref.ParseEventID(text)
	if err != nil {
		return ref.EventID{}, fmt.Errorf("%s: %w", key, err)
	}
	return eventID, nil
}

// editedBody prefers m.new_content.body and falls back to the
// top-level body without its "* " marker.
func editedBody(content map[string]any, body string) string {
	if newContent, ok := content["m.new_content"].(map[string]any); ok {
		if newBody, ok := newContent["body"].(string); ok {
			return newBody
		}
	}
	return strings.TrimPrefix(body, editFallbackPrefix)
}
