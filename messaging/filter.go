// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"encoding/json"

	"github.com/parley-chat/parley/lib/ref"
)

// SyncFilter narrows what /sync returns.
type SyncFilter struct {
	// Rooms restricts the sync to these rooms. Empty means all rooms.
	Rooms []ref.RoomID
	// TimelineTypes restricts timeline events to these types. Empty
	// means all types.
	TimelineTypes []ref.EventType
	// TimelineLimit caps timeline events per room per response. Zero
	// uses the server default.
	TimelineLimit int
}

// TimelineEventTypes are the event types ToTimelineEvent can convert.
var TimelineEventTypes = []ref.EventType{
	ref.EventTypeMessage,
	ref.EventTypeSticker,
	ref.EventTypeRedaction,
	ref.EventTypeReaction,
}

// Inline returns the filter as inline JSON for SyncOptions.Filter.
// Presence and account data are always excluded.
func (f SyncFilter) Inline() string {
	roomFilter := map[string]any{}
	if len(f.Rooms) > 0 {
		roomFilter["rooms"] = f.Rooms
	}
	timeline := map[string]any{}
	if len(f.TimelineTypes) > 0 {
		timeline["types"] = f.TimelineTypes
	}
	if f.TimelineLimit > 0 {
		timeline["limit"] = f.TimelineLimit
	}
	if len(timeline) > 0 {
		roomFilter["timeline"] = timeline
	}
	top := map[string]any{
		"room":         roomFilter,
		"presence":     map[string]any{"types": []string{}},
		"account_data": map[string]any{"types": []string{}},
	}
	data, _ := json.Marshal(top)
	return string(data)
}
