// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package timelineui renders reconciled room timelines for people.
//
// [Items] merges a room's view models with the raw events that did not
// produce one (state changes, encrypted messages) into a single
// age-ordered list. Grouped with [timeline.GroupEvents], the items
// render as:
//
//   - [RenderTerminal]: one sender header per message group, bodies
//     rendered as markdown with lipgloss styles, fenced code
//     highlighted by chroma, lines wrapped to the requested width.
//     Edited messages carry "(edited)", liked messages "♥ N", and
//     redacted messages show as "message deleted". Non-message groups
//     collapse to one faint summary line.
//   - [RenderHTML]: the same structure as an HTML fragment, bodies
//     rendered by goldmark with raw HTML suppressed.
//
// Colour output is controlled by [Options].Profile; termenv.Ascii
// produces plain text.
package timelineui
