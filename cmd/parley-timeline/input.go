// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/parley-chat/parley/lib/ref"
	"github.com/parley-chat/parley/messaging"
)

// inputDocument covers both accepted input shapes: a /messages
// response (chunk) and a /sync response (rooms).
type inputDocument struct {
	Chunk []messaging.Event      `json:"chunk"`
	Rooms messaging.RoomsSection `json:"rooms"`
}

// parseInput extracts one room's events from a /messages or /sync
// response. The input may carry // and /* */ comments and trailing
// commas, so fixtures can be annotated by hand.
//
// For /sync input, roomID selects the room and may be zero when the
// response holds exactly one. For /messages input, a zero roomID is
// taken from the events' room_id fields.
func parseInput(data []byte, roomID ref.RoomID) (ref.RoomID, []messaging.Event, error) {
	var document inputDocument
	if err := json.Unmarshal(jsonc.ToJSON(data), &document); err != nil {
		return ref.RoomID{}, nil, internalError("parsing input: %w", err)
	}

	if document.Chunk != nil {
		if roomID.IsZero() {
			for _, event := range document.Chunk {
				if !event.RoomID.IsZero() {
					roomID = event.RoomID
					break
				}
			}
		}
		if roomID.IsZero() {
			return ref.RoomID{}, nil, usageError("no event in the input names its room").
				WithHint("Pass --room with the room ID the events belong to.")
		}
		return roomID, document.Chunk, nil
	}

	sections := make(map[ref.RoomID][]messaging.Event)
	for id, room := range document.Rooms.Join {
		sections[id] = room.Timeline.Events
	}
	for id, room := range document.Rooms.Leave {
		sections[id] = append(sections[id], room.Timeline.Events...)
	}
	if len(sections) == 0 {
		return ref.RoomID{}, nil, internalError("input is neither a /messages response nor a /sync response with rooms")
	}

	if roomID.IsZero() {
		if len(sections) > 1 {
			return ref.RoomID{}, nil, usageError("input holds %d rooms (%s)", len(sections), roomList(sections)).
				WithHint("Pass --room to choose one.")
		}
		for id := range sections {
			roomID = id
		}
	}
	events, ok := sections[roomID]
	if !ok {
		return ref.RoomID{}, nil, notFoundError("room %s is not in the input (have %s)", roomID, roomList(sections))
	}
	return roomID, events, nil
}

func roomList(sections map[ref.RoomID][]messaging.Event) string {
	ids := slices.SortedFunc(maps.Keys(sections), func(a, b ref.RoomID) int {
		return strings.Compare(a.String(), b.String())
	})
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id.String()
	}
	return strings.Join(names, ", ")
}

// parseRoomFlag parses --room, allowing it to be empty.
func parseRoomFlag(raw string) (ref.RoomID, error) {
	if raw == "" {
		return ref.RoomID{}, nil
	}
	roomID, err := ref.ParseRoomID(raw)
	if err != nil {
		return ref.RoomID{}, usageError("--room: %w", err)
	}
	return roomID, nil
}
