// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package timeline reconciles a room's timeline events into
// materialized view models.
//
// Events arrive from the homeserver in no guaranteed order. A
// [Message] is a root event: it introduces a displayable item. [Edit],
// [Redact], and [Like] are modifiers: they change an existing item,
// addressed by the target event ID. [RoomState] applies both kinds:
//
//   - A Message creates a [MessageViewModel] and is spliced into an
//     index of event IDs kept sorted by [Age].
//   - A modifier whose target is known is applied to the target's view
//     model. An Edit replaces the body, a Like increments the like
//     count, a Redact replaces the item with a [TombstoneViewModel].
//     Tombstones accept no further modifiers.
//   - A modifier whose target has not been seen yet is stashed. When
//     the target Message arrives, its stashed modifiers are replayed
//     oldest first.
//   - An event whose ID is already present is ignored, so redelivery
//     is harmless.
//
// [RoomState.AddEvents] sorts a batch by age before applying it, so the
// outcome of a batch does not depend on the order within it.
//
// The only failure is [ErrInvalidOperation]: a modifier applied to a
// tombstone, or to a view model that is not its target. Failures never
// leave partial state behind for the failing event; events applied
// before the failure stay applied.
//
// [GroupEvents] partitions a flat event sequence into display groups:
// runs of one [Kind], further split by sender for message-like kinds.
//
// RoomState is not safe for concurrent use. A single owner must
// serialize every call (see lib/roomfeed).
package timeline
