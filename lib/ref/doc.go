// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides validated, immutable Matrix identifiers used
// throughout parley: [EventID], [UserID], [RoomID], and the [EventType]
// name type.
//
// Identifiers come from the homeserver (or from fixtures shaped like
// homeserver output) and are parsed into these types at the boundary.
// Code past the boundary never re-validates them. The struct-wrapped
// types are comparable and usable as map keys; their zero value means
// "unset" and is reported by IsZero.
//
// All types implement encoding.TextMarshaler and
// encoding.TextUnmarshaler, so JSON and CBOR serialize them as their
// canonical string form.
package ref
