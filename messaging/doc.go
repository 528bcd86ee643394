// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging is the read side of the Matrix client-server API
// and the bridge from Matrix events to timeline events.
//
// [Client] holds the homeserver URL and HTTP transport; [Session]
// adds an access token (held in a [secret.Buffer]) and performs /sync,
// /messages, /joined_rooms and /whoami. [Syncer] is the one-method
// view of a Session that lib/roomfeed depends on, so tests can feed it
// canned responses.
//
// [ToTimelineEvent] classifies a raw [Event]:
//
//   - m.room.message with an m.replace relation becomes an Edit,
//   - other m.room.message and m.sticker events become Messages,
//   - m.room.redaction becomes a Redact,
//   - m.reaction with an m.annotation relation becomes a Like,
//   - anything else yields [ErrNotTimelineEvent].
//
// Server errors are returned as [*MatrixError].
package messaging
