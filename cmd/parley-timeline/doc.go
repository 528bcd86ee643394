// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// parley-timeline reconciles Matrix room events into a timeline and
// renders it as terminal text, HTML, or the room's JSON snapshot.
//
// Three modes of operation:
//
// File mode: reads a saved /messages or /sync response (JSON with
// optional comments) and reconciles it. --snapshot-in restores an
// earlier result first and --snapshot-out keeps the new one, so
// batches can be fed one file at a time.
//
// Fetch mode (--room without a file): fetches the room's newest events
// from the configured homeserver, restoring and saving the room
// through the configured snapshot backend.
//
// Follow mode ("follow"): long-polls /sync, applying every joined and
// left room's timeline and persisting each room after every batch.
// With metrics.listen set, prometheus metrics are served at /metrics.
// Interrupt to stop; the sync position is saved to the state
// directory and used on the next start.
package main
