// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package roomfeed keeps reconciled timelines for live Matrix rooms.
//
// A [Room] owns one [timeline.RoomState] and applies batches of raw
// Matrix events to it: each batch is deduplicated by event ID,
// converted with [messaging.ToTimelineEvent], applied in age order,
// then the stash is trimmed according to the room's
// [timeline.StashPolicy]. When a [snapshot.Store] is configured the
// room is saved after every batch and restored on open.
//
// A [Follower] drives rooms from the /sync stream. It long-polls a
// [messaging.Syncer], routes each room's timeline to its Room, and
// retries transient failures with a short backoff. Credential and
// request errors (see [messaging.IsPermanent]) stop it immediately.
//
// [Metrics] exports counters for applied, skipped, rejected and evicted
// events through a prometheus registry. A nil *Metrics records
// nothing.
package roomfeed
