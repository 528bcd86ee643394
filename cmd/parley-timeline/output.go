// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/muesli/termenv"

	"github.com/parley-chat/parley/lib/roomfeed"
	"github.com/parley-chat/parley/lib/timeline"
	"github.com/parley-chat/parley/lib/timelineui"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatHTML = "html"
)

// writeRoom renders room to output. Text and HTML show the grouped
// timeline; JSON is the room's snapshot.
func writeRoom(output io.Writer, room *roomfeed.Room, format string, options timelineui.Options) error {
	switch format {
	case formatJSON:
		encoder := json.NewEncoder(output)
		encoder.SetIndent("", "  ")
		return encoder.Encode(room.Snapshot())
	case formatText, formatHTML:
	default:
		return usageError("--format: unknown format %q (want text, json or html)", format)
	}

	items := timelineui.Items(room.Timeline(), room.Events())
	groups := timeline.GroupEvents(items)
	if format == formatHTML {
		page, err := timelineui.RenderHTML(groups, room, options)
		if err != nil {
			return internalError("rendering HTML: %w", err)
		}
		_, err = io.WriteString(output, page)
		return err
	}
	rendered := timelineui.RenderTerminal(groups, room, options)
	if rendered == "" {
		return nil
	}
	_, err := fmt.Fprintln(output, rendered)
	return err
}

// colorProfile maps --color to a termenv profile. "auto" inspects
// stdout and the environment (NO_COLOR, CLICOLOR_FORCE, TERM).
func colorProfile(mode string, stdout io.Writer) (termenv.Profile, error) {
	switch mode {
	case "auto", "":
		return termenv.NewOutput(stdout).EnvColorProfile(), nil
	case "always":
		return termenv.ANSI256, nil
	case "never":
		return termenv.Ascii, nil
	default:
		return termenv.Ascii, usageError("--color: unknown mode %q (want auto, always or never)", mode)
	}
}
