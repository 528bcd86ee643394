// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package timelineui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"github.com/parley-chat/parley/lib/ref"
	"github.com/parley-chat/parley/lib/timeline"
)

// DefaultWidth is used when Options.Width is not positive.
const DefaultWidth = 80

// bodyIndent is the indentation of message rows under their header.
const bodyIndent = "  "

// maxListedMemberships is the most membership changes a summary line
// names individually.
const maxListedMemberships = 4

// ViewModels looks up reconciled view models. *timeline.RoomState and
// *roomfeed.Room implement it.
type ViewModels interface {
	ViewModel(id ref.EventID) (timeline.EventViewModel, bool)
}

// Options controls rendering.
type Options struct {
	// Width is the terminal width in columns.
	Width int
	// Theme zero means DefaultTheme.
	Theme Theme
	// Profile is the terminal colour profile. termenv.Ascii disables
	// styling. The zero value is termenv.TrueColor.
	Profile termenv.Profile
	// Location for timestamps. Nil means UTC.
	Location *time.Location
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Theme == (Theme{}) {
		o.Theme = DefaultTheme
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	return o
}

func (o Options) timestamp(age timeline.Age) time.Time {
	return time.UnixMilli(int64(age)).In(o.Location)
}

// RenderTerminal renders grouped items as styled terminal text.
func RenderTerminal(groups []timeline.Group[Item], viewModels ViewModels, options Options) string {
	options = options.withDefaults()
	styles := lipgloss.NewRenderer(io.Discard, termenv.WithProfile(options.Profile))
	styles.SetColorProfile(options.Profile)
	theme := options.Theme
	faint := styles.NewStyle().Foreground(theme.FaintText)

	var blocks []string
	for _, group := range groups {
		switch {
		case group.Kind.MessageLike():
			var rows []string
			for _, item := range group.Events {
				if row := terminalRow(item, viewModels, options, styles); row != "" {
					rows = append(rows, row)
				}
			}
			if len(rows) == 0 {
				continue
			}
			var block strings.Builder
			if !group.Sender.IsZero() {
				block.WriteString(styles.NewStyle().Bold(true).Foreground(theme.SenderColor(group.Sender)).Render(group.Sender.String()))
				block.WriteString(" ")
				block.WriteString(faint.Render(options.timestamp(group.Events[0].Age).Format("2006-01-02 15:04")))
				block.WriteString("\n")
			}
			block.WriteString(strings.Join(rows, "\n"))
			blocks = append(blocks, block.String())

		case group.Kind == timeline.KindReaction || group.Kind == timeline.KindRedaction:
			// Folded into the view models they modify.

		default:
			line := ansi.Truncate("· "+summarize(group), options.Width, "…")
			blocks = append(blocks, faint.Render(line))
		}
	}
	return strings.Join(blocks, "\n\n")
}

// terminalRow renders one message row indented under its header, or
// "" for items with nothing to show.
func terminalRow(item Item, viewModels ViewModels, options Options, styles *lipgloss.Renderer) string {
	theme := options.Theme
	faint := styles.NewStyle().Foreground(theme.FaintText)

	viewModel, ok := viewModels.ViewModel(item.EventID)
	if !ok {
		if item.Type == ref.EventTypeEncrypted {
			return bodyIndent + faint.Italic(true).Render("encrypted message")
		}
		return ""
	}

	switch viewModel := viewModel.(type) {
	case timeline.TombstoneViewModel:
		return bodyIndent + styles.NewStyle().Foreground(theme.TombstoneForeground).Italic(true).Render("message deleted")

	case timeline.MessageViewModel:
		body := renderBody(viewModel.Body, theme, options.Width-len(bodyIndent), styles)
		if body == "" {
			body = faint.Render("(empty message)")
		}
		var annotations []string
		if viewModel.Edited {
			annotations = append(annotations, faint.Render("(edited)"))
		}
		if viewModel.LikeCount > 0 {
			annotations = append(annotations, styles.NewStyle().Foreground(theme.LikeForeground).Render(fmt.Sprintf("♥ %d", viewModel.LikeCount)))
		}
		if len(annotations) > 0 {
			body += " " + strings.Join(annotations, " ")
		}
		return indent(body, bodyIndent)
	}
	return ""
}

func indent(content, prefix string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}

// summarize describes a non-message group in one line.
func summarize(group timeline.Group[Item]) string {
	last := group.Events[len(group.Events)-1]
	switch group.Kind {
	case timeline.KindMembership:
		if len(group.Events) > maxListedMemberships {
			return fmt.Sprintf("%d membership changes", len(group.Events))
		}
		changes := make([]string, len(group.Events))
		for i, item := range group.Events {
			changes[i] = describeMembership(item)
		}
		return strings.Join(changes, ", ")
	case timeline.KindName:
		if name, ok := last.Content["name"].(string); ok && name != "" {
			return fmt.Sprintf("%s renamed the room to %q", last.Sender, name)
		}
		return fmt.Sprintf("%s removed the room name", last.Sender)
	case timeline.KindTopic:
		return fmt.Sprintf("%s changed the topic", last.Sender)
	case timeline.KindAvatar:
		return fmt.Sprintf("%s changed the room avatar", last.Sender)
	case timeline.KindCreate:
		return fmt.Sprintf("%s created the room", last.Sender)
	case timeline.KindPowerLevels:
		return fmt.Sprintf("%s changed permissions", last.Sender)
	}
	if len(group.Events) == 1 {
		return fmt.Sprintf("%s sent %s", last.Sender, last.Type)
	}
	return fmt.Sprintf("%d other events", len(group.Events))
}

func describeMembership(item Item) string {
	target := item.Sender.String()
	if item.StateKey != nil && *item.StateKey != "" {
		target = *item.StateKey
	}
	membership, _ := item.Content["membership"].(string)
	switch membership {
	case "join":
		return target + " joined"
	case "leave":
		if target == item.Sender.String() {
			return target + " left"
		}
		return target + " was removed"
	case "invite":
		return target + " was invited"
	case "ban":
		return target + " was banned"
	case "knock":
		return target + " asked to join"
	case "":
		return target + " changed membership"
	}
	return target + " " + membership
}
